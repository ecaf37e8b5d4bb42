// Package errors holds the sentinel errors shared by the chain engine, the
// chain stores and the persona service. Callers wrap a sentinel with context
// and test for it with the Is helpers.
package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound reports that no chain is stored for a user.
	ErrNotFound = errors.New("chain not found")

	// ErrInvalidInput reports a bad argument such as a negative order or a blank user.
	ErrInvalidInput = errors.New("invalid input")

	// ErrServiceUnavailable reports that no chain store could serve the request.
	ErrServiceUnavailable = errors.New("chain store unavailable")

	// ErrDatabaseOperation reports a failed query against a chain store.
	ErrDatabaseOperation = errors.New("chain store operation failed")

	// ErrDegraded reports a lookup that found no chain while at least one
	// provider failed, so the user's stored chain may exist but be unreachable.
	ErrDegraded = errors.New("chain store degraded")

	// ErrMalformedDatabase reports a chain whose links are missing fields or
	// point at links that do not exist.
	ErrMalformedDatabase = errors.New("malformed chain database")
)

// StoreError attributes a failure to one chain store provider.
type StoreError struct {
	Provider string
	Op       string
	User     string
	Err      error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s %s %q: %v", e.Provider, e.Op, e.User, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// WrapError prefixes err with message, keeping it matchable with errors.Is.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// WrapErrorf is WrapError with a formatted message.
func WrapErrorf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return WrapError(err, fmt.Sprintf(format, args...))
}

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

func IsInvalidInput(err error) bool { return errors.Is(err, ErrInvalidInput) }

func IsServiceUnavailable(err error) bool { return errors.Is(err, ErrServiceUnavailable) }

func IsMalformedDatabase(err error) bool { return errors.Is(err, ErrMalformedDatabase) }

func IsDegraded(err error) bool { return errors.Is(err, ErrDegraded) }

// ProviderOf returns the provider named by the outermost StoreError in err's
// chain, or "" when there is none.
func ProviderOf(err error) string {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Provider
	}
	return ""
}
