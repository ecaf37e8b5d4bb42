package utils

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9]`)

// SanitizeFilename lowercases name and replaces every character outside
// [a-z0-9] with an underscore, limiting the result to 200 bytes so it can be
// embedded in a larger file name.
func SanitizeFilename(name string) string {
	sanitized := strings.ToLower(unsafeFilenameChars.ReplaceAllString(strings.TrimSpace(name), "_"))
	if len(sanitized) > 200 {
		sanitized = sanitized[:200]
	}
	return sanitized
}

// ChainFileName returns the file name under which a user's chain database is
// stored: the sanitized user name followed by a short hash of the raw name,
// so users that sanitize alike still get separate files.
func ChainFileName(user string) string {
	sum := uuid.NewSHA1(uuid.NameSpaceOID, []byte("markov-chain-file|"+user))
	return "markov_" + SanitizeFilename(user) + "_" + sum.String()[:8] + ".json"
}

// VerifyFileExists checks if file exists at the given path and is not a directory.
// Returns true if the file exists and is a regular file, false otherwise.
func VerifyFileExists(dir, filename string) bool {
	info, err := os.Stat(filepath.Join(dir, filename))
	if err != nil {
		return false
	}
	return !info.IsDir()
}
