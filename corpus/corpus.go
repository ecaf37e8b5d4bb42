// Package corpus turns the material handed to a chain for training (message
// batches, text files, PDFs) into the independent text segments it seeds.
package corpus

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	apperrors "markov-persona/errors"

	"go.uber.org/zap"
)

// ReadMessages decodes a JSON array of message texts, the format of a
// per-user message batch.
func ReadMessages(r io.Reader) ([]string, error) {
	var messages []string
	if err := json.NewDecoder(r).Decode(&messages); err != nil {
		return nil, apperrors.WrapErrorf(apperrors.ErrInvalidInput, "decode message batch: %v", err)
	}
	return messages, nil
}

// ReadLines returns every line of r as its own message.
func ReadLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return lines, fmt.Errorf("failed to read lines: %w", err)
	}
	return lines, nil
}

// ReadFile picks a reader by extension: .json message batches, .pdf
// documents, and plain text for everything else.
func ReadFile(path string, logger *zap.Logger) ([]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return ReadPDF(path, logger)
	case ".json":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return ReadMessages(f)
	default:
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return ReadLines(f)
	}
}
