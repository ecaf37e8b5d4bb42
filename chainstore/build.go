package chainstore

import (
	"context"
	"fmt"

	"markov-persona/config"
	apperrors "markov-persona/errors"

	"go.uber.org/zap"
)

// Build assembles the providers named by cfg.StoreProviders, in order. A
// postgres provider without DATABASE_URL, or one that cannot be reached, is
// skipped with a warning; the remaining providers still serve.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Fallback, error) {
	var providers []Provider
	for _, name := range cfg.StoreProviders {
		switch name {
		case "fs":
			fs, err := NewFSStore(cfg.WorkDir, logger)
			if err != nil {
				return nil, err
			}
			providers = append(providers, fs)
		case "postgres":
			if cfg.DatabaseURL == "" {
				logger.Debug("DATABASE_URL not set, postgres chain provider disabled")
				continue
			}
			pg, err := connectPostgres(ctx, cfg, logger)
			if err != nil {
				logger.Warn("Postgres chain provider unavailable", zap.Error(err))
				continue
			}
			providers = append(providers, pg)
		default:
			return nil, apperrors.WrapErrorf(apperrors.ErrInvalidInput, "unknown store provider %q", name)
		}
	}

	if len(providers) == 0 {
		return nil, fmt.Errorf("%w: no chain store provider configured", apperrors.ErrServiceUnavailable)
	}
	return NewFallback(logger, providers...), nil
}

func connectPostgres(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*PostgresStore, error) {
	if cfg.StoreTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.StoreTimeout)
		defer cancel()
	}

	pg, err := NewPostgresStore(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return nil, err
	}
	if err := pg.EnsureSchema(ctx); err != nil {
		pg.Close()
		return nil, err
	}
	return pg, nil
}
