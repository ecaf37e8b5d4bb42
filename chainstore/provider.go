// Package chainstore persists per-user chain databases. Providers are tried
// in order by Fallback, the way the chat service looked for chain data in
// several places before settling for an empty chain.
package chainstore

import (
	"context"

	"markov-persona/markov"
)

// Provider loads and saves the chain database of one user. Load returns an
// error wrapping errors.ErrNotFound when the user has no stored chain.
type Provider interface {
	Name() string
	Load(ctx context.Context, user string) (markov.Database, error)
	Save(ctx context.Context, user string, db markov.Database) error
}

// UserLister is implemented by providers that can enumerate stored chains.
type UserLister interface {
	Users(ctx context.Context) ([]string, error)
}
