package chainstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	apperrors "markov-persona/errors"
	"markov-persona/markov"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

type PostgresStore struct {
	DB     *sql.DB
	logger *zap.Logger
}

func NewPostgresStore(ctx context.Context, connStr string, logger *zap.Logger) (*PostgresStore, error) {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: ping chain database: %v", apperrors.ErrServiceUnavailable, err)
	}
	logger.Info("Successfully connected to the chain database")
	return &PostgresStore{DB: db, logger: logger}, nil
}

// EnsureSchema creates the required tables if they do not already exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS markov_chains (
            id UUID PRIMARY KEY,
            user_name TEXT UNIQUE NOT NULL,
            chain JSONB NOT NULL DEFAULT '{}'::jsonb,
            link_count INTEGER NOT NULL DEFAULT 0,
            created_at TIMESTAMPTZ DEFAULT NOW(),
            updated_at TIMESTAMPTZ DEFAULT NOW()
        )`,
		`CREATE INDEX IF NOT EXISTS idx_markov_chains_updated_at ON markov_chains(updated_at DESC)`,
	}

	for _, stmt := range stmts {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) Name() string { return "postgres" }

func (s *PostgresStore) Close() error { return s.DB.Close() }

// chainID derives a stable row id from the user name.
func chainID(user string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("markov-chain|"+user))
}

func (s *PostgresStore) Load(ctx context.Context, user string) (markov.Database, error) {
	var raw []byte
	err := s.DB.QueryRowContext(ctx, `SELECT chain FROM markov_chains WHERE user_name = $1`, user).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.WrapErrorf(apperrors.ErrNotFound, "no stored chain for %q", user)
		}
		return nil, apperrors.WrapErrorf(apperrors.ErrDatabaseOperation, "load chain for %q: %v", user, err)
	}
	return decodeChain(user, raw)
}

// LoadMany fetches the stored chains of several users in one query. Users
// without a stored chain are absent from the result.
func (s *PostgresStore) LoadMany(ctx context.Context, users []string) (map[string]markov.Database, error) {
	result := make(map[string]markov.Database, len(users))
	if len(users) == 0 {
		return result, nil
	}

	rows, err := s.DB.QueryContext(ctx,
		`SELECT user_name, chain FROM markov_chains WHERE user_name = ANY($1)`,
		pq.Array(users))
	if err != nil {
		return nil, apperrors.WrapErrorf(apperrors.ErrDatabaseOperation, "load chains: %v", err)
	}
	defer rows.Close()

	for rows.Next() {
		var user string
		var raw []byte
		if err := rows.Scan(&user, &raw); err != nil {
			return nil, err
		}
		db, err := decodeChain(user, raw)
		if err != nil {
			s.logger.Warn("Skipping malformed stored chain",
				zap.String("user", user),
				zap.Error(err))
			continue
		}
		result[user] = db
	}
	return result, rows.Err()
}

func decodeChain(user string, raw []byte) (markov.Database, error) {
	var db markov.Database
	if err := json.Unmarshal(raw, &db); err != nil {
		return nil, apperrors.WrapErrorf(apperrors.ErrMalformedDatabase, "decode chain for %q: %v", user, err)
	}
	if db == nil {
		db = make(markov.Database)
	}
	if err := db.Validate(); err != nil {
		return nil, apperrors.WrapErrorf(err, "stored chain for %q", user)
	}
	return db, nil
}

func (s *PostgresStore) Save(ctx context.Context, user string, db markov.Database) error {
	raw, err := json.Marshal(db)
	if err != nil {
		return fmt.Errorf("failed to encode chain: %w", err)
	}

	query := `
		INSERT INTO markov_chains (id, user_name, chain, link_count, updated_at)
		VALUES ($1, $2, $3::jsonb, $4, $5)
		ON CONFLICT (user_name) DO UPDATE
		SET chain = EXCLUDED.chain, link_count = EXCLUDED.link_count, updated_at = EXCLUDED.updated_at
	`
	if _, err := s.DB.ExecContext(ctx, query, chainID(user), user, string(raw), len(db), time.Now()); err != nil {
		return apperrors.WrapErrorf(apperrors.ErrDatabaseOperation, "save chain for %q: %v", user, err)
	}

	s.logger.Debug("Saved chain to postgres",
		zap.String("user", user),
		zap.Int("links", len(db)))
	return nil
}

// Users lists every user with a stored chain, most recently updated first.
func (s *PostgresStore) Users(ctx context.Context) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT user_name FROM markov_chains ORDER BY updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var user string
		if err := rows.Scan(&user); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}
