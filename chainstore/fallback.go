package chainstore

import (
	"context"
	"errors"
	"fmt"
	"io"

	apperrors "markov-persona/errors"
	"markov-persona/markov"

	"go.uber.org/zap"
)

// Fallback tries an ordered list of providers. Load ends with an implicit
// empty chain when every provider reports the chain missing.
type Fallback struct {
	providers []Provider
	logger    *zap.Logger
}

func NewFallback(logger *zap.Logger, providers ...Provider) *Fallback {
	return &Fallback{providers: providers, logger: logger}
}

func (f *Fallback) Name() string { return "fallback" }

// Load returns the chain from the first provider that has it. Failing
// providers are skipped. When no provider has the chain and at least one
// failed, Load still returns an empty chain for read-only callers, together
// with an error wrapping ErrDegraded; that chain must not be saved back.
func (f *Fallback) Load(ctx context.Context, user string) (markov.Database, error) {
	var failures []error
	for _, p := range f.providers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		db, err := p.Load(ctx, user)
		if err == nil {
			f.logger.Debug("Chain loaded",
				zap.String("user", user),
				zap.String("provider", p.Name()),
				zap.Int("links", len(db)))
			return db, nil
		}
		if apperrors.IsNotFound(err) {
			f.logger.Debug("No chain in provider",
				zap.String("user", user),
				zap.String("provider", p.Name()))
			continue
		}
		f.logger.Warn("Chain provider failed, trying next",
			zap.String("user", user),
			zap.String("provider", p.Name()),
			zap.Error(err))
		failures = append(failures, &apperrors.StoreError{Provider: p.Name(), Op: "load", User: user, Err: err})
	}

	if len(failures) > 0 {
		return make(markov.Database), fmt.Errorf("%w: no chain loaded for %q: %w", apperrors.ErrDegraded, user, errors.Join(failures...))
	}
	f.logger.Debug("No stored chain, starting empty", zap.String("user", user))
	return make(markov.Database), nil
}

// Save writes to the first provider that accepts the chain.
func (f *Fallback) Save(ctx context.Context, user string, db markov.Database) error {
	var errs []error
	for _, p := range f.providers {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := p.Save(ctx, user, db)
		if err == nil {
			return nil
		}
		f.logger.Warn("Chain provider rejected save, trying next",
			zap.String("user", user),
			zap.String("provider", p.Name()),
			zap.Error(err))
		errs = append(errs, &apperrors.StoreError{Provider: p.Name(), Op: "save", User: user, Err: err})
	}
	return fmt.Errorf("%w: no provider saved chain for %q: %w", apperrors.ErrServiceUnavailable, user, errors.Join(errs...))
}

// Close releases providers that hold connections.
func (f *Fallback) Close() error {
	var errs []error
	for _, p := range f.providers {
		if c, ok := p.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// BatchLoader is implemented by providers that can fetch many chains at once.
type BatchLoader interface {
	LoadMany(ctx context.Context, users []string) (map[string]markov.Database, error)
}

// LoadMany resolves every user through the providers in order, batching where
// a provider supports it. Users missing from every provider get an empty
// chain. Users that were not found while some provider failed for them are
// left out of the result.
func (f *Fallback) LoadMany(ctx context.Context, users []string) (map[string]markov.Database, error) {
	result := make(map[string]markov.Database, len(users))
	degraded := make(map[string]bool)
	remaining := users
	for _, p := range f.providers {
		if len(remaining) == 0 {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if bl, ok := p.(BatchLoader); ok {
			found, err := bl.LoadMany(ctx, remaining)
			if err != nil {
				f.logger.Warn("Chain provider batch load failed, trying next",
					zap.String("provider", p.Name()),
					zap.Int("users", len(remaining)),
					zap.Error(err))
				for _, user := range remaining {
					degraded[user] = true
				}
				continue
			}
			for user, db := range found {
				result[user] = db
			}
		} else {
			for _, user := range remaining {
				db, err := p.Load(ctx, user)
				switch {
				case err == nil:
					result[user] = db
				case !apperrors.IsNotFound(err):
					f.logger.Warn("Chain provider failed, trying next",
						zap.String("user", user),
						zap.String("provider", p.Name()),
						zap.Error(err))
					degraded[user] = true
				}
			}
		}

		next := remaining[:0:0]
		for _, user := range remaining {
			if _, ok := result[user]; !ok {
				next = append(next, user)
			}
		}
		remaining = next
	}

	for _, user := range remaining {
		if degraded[user] {
			continue
		}
		result[user] = make(markov.Database)
	}
	return result, nil
}

// Users merges the users listed by every provider that can list them, in
// provider order without duplicates. Listing failures are skipped.
func (f *Fallback) Users(ctx context.Context) ([]string, error) {
	var (
		users  []string
		seen   = make(map[string]bool)
		listed bool
	)
	for _, p := range f.providers {
		ul, ok := p.(UserLister)
		if !ok {
			continue
		}
		names, err := ul.Users(ctx)
		if err != nil {
			f.logger.Warn("Chain provider could not list users",
				zap.String("provider", p.Name()),
				zap.Error(err))
			continue
		}
		listed = true
		for _, name := range names {
			if !seen[name] {
				seen[name] = true
				users = append(users, name)
			}
		}
	}
	if !listed {
		return nil, apperrors.WrapError(apperrors.ErrServiceUnavailable, "no chain provider can list users")
	}
	return users, nil
}
