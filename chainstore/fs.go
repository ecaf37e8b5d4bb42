package chainstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	apperrors "markov-persona/errors"
	"markov-persona/markov"
	"markov-persona/utils"

	"go.uber.org/zap"
)

// FSStore keeps one indented JSON file per user under a work directory.
type FSStore struct {
	dir    string
	logger *zap.Logger
}

func NewFSStore(dir string, logger *zap.Logger) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("could not create chain directory: %w", err)
	}
	return &FSStore{dir: dir, logger: logger}, nil
}

func (s *FSStore) Name() string { return "fs" }

// Path returns the file a user's chain is stored in.
func (s *FSStore) Path(user string) string {
	return filepath.Join(s.dir, utils.ChainFileName(user))
}

func (s *FSStore) Load(ctx context.Context, user string) (markov.Database, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name := utils.ChainFileName(user)
	if !utils.VerifyFileExists(s.dir, name) {
		return nil, apperrors.WrapErrorf(apperrors.ErrNotFound, "no chain file for %q", user)
	}

	raw, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return nil, fmt.Errorf("failed to read chain file: %w", err)
	}

	var db markov.Database
	if err := json.Unmarshal(raw, &db); err != nil {
		return nil, apperrors.WrapErrorf(apperrors.ErrMalformedDatabase, "decode %s: %v", name, err)
	}
	if db == nil {
		db = make(markov.Database)
	}
	if err := db.Validate(); err != nil {
		return nil, apperrors.WrapErrorf(err, "chain file %s", name)
	}

	s.logger.Debug("Loaded chain from file",
		zap.String("user", user),
		zap.String("path", name),
		zap.Int("links", len(db)))
	return db, nil
}

// Save writes the chain through a temporary file and a rename so readers
// never see a partial file.
func (s *FSStore) Save(ctx context.Context, user string, db markov.Database) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	raw, err := json.MarshalIndent(db, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode chain: %w", err)
	}

	name := utils.ChainFileName(user)
	tmp, err := os.CreateTemp(s.dir, name+".tmp*")
	if err != nil {
		return fmt.Errorf("failed to create temp chain file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write chain file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close chain file: %w", err)
	}
	if err := os.Rename(tmpPath, filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("failed to replace chain file: %w", err)
	}

	s.logger.Debug("Saved chain to file",
		zap.String("user", user),
		zap.String("path", name),
		zap.Int("links", len(db)),
		zap.Int("bytes", len(raw)))
	return nil
}
