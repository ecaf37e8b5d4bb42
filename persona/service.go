// Package persona keeps one chain engine per user and serves replies and
// training on top of a chain store.
package persona

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"markov-persona/chainstore"
	"markov-persona/config"
	"markov-persona/corpus"
	apperrors "markov-persona/errors"
	"markov-persona/markov"

	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Reply is one generated response.
type Reply struct {
	User  string   `json:"user"`
	Seed  string   `json:"seed"`
	Words []string `json:"words"`
	Text  string   `json:"response"`
}

// TrainResult summarizes one training pass for a user.
type TrainResult struct {
	User     string `json:"user"`
	Messages int    `json:"messages"`
	Segments int    `json:"segments"`
	Links    int    `json:"links"`
	NewLinks int    `json:"new_links"`
}

// Service maps user identities to chain engines. Engines are loaded from the
// store on first use and kept in an LRU cache. Training a user is serialized
// against every other access to that user's engine.
type Service struct {
	store       chainstore.Provider
	pipeline    corpus.Pipeline
	order       int
	limit       int
	concurrency int
	timeout     time.Duration
	options     []markov.Option
	logger      *zap.Logger

	engines *lru.Cache
	loads   singleflight.Group

	mu    sync.Mutex
	locks map[string]*userLock
}

// userLock serializes training against other access to one user. Entries
// live in Service.locks only while some call holds a reference.
type userLock struct {
	sync.RWMutex
	refs int
}

func NewService(cfg *config.Config, store chainstore.Provider, logger *zap.Logger, opts ...markov.Option) (*Service, error) {
	if cfg.ChainOrder < 0 {
		return nil, apperrors.WrapErrorf(apperrors.ErrInvalidInput, "chain order must be positive, got %d", cfg.ChainOrder)
	}
	engines, err := lru.NewWithEvict(cfg.EngineCacheSize, func(key, _ interface{}) {
		logger.Debug("Evicted chain engine", zap.Any("user", key))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create engine cache: %w", err)
	}

	return &Service{
		store: store,
		pipeline: corpus.Pipeline{
			StripMarkdown:  cfg.StripMarkdown,
			SplitSentences: cfg.SplitSentences,
			Logger:         logger,
		},
		order:       cfg.ChainOrder,
		limit:       cfg.ResponseLimit,
		concurrency: max(cfg.TrainConcurrency, 1),
		timeout:     cfg.StoreTimeout,
		options:     opts,
		logger:      logger,
		engines:     engines,
		locks:       make(map[string]*userLock),
	}, nil
}

func (s *Service) acquire(user string) *userLock {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[user]
	if !ok {
		l = &userLock{}
		s.locks[user] = l
	}
	l.refs++
	return l
}

func (s *Service) release(user string, l *userLock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(s.locks, user)
	}
}

func (s *Service) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func validUser(user string) error {
	if strings.TrimSpace(user) == "" {
		return apperrors.WrapError(apperrors.ErrInvalidInput, "user is required")
	}
	return nil
}

// engine returns the cached engine for user, loading it from the store on a
// miss. Concurrent misses for the same user share one load. A degraded load
// is never cached: readers get a throwaway empty engine, writers get the
// error so a partial view of the store is not saved over the stored chain.
func (s *Service) engine(ctx context.Context, user string, write bool) (*markov.Chain, error) {
	if c, ok := s.engines.Get(user); ok {
		return c.(*markov.Chain), nil
	}

	v, err, _ := s.loads.Do(user, func() (interface{}, error) {
		if c, ok := s.engines.Get(user); ok {
			return c, nil
		}
		loadCtx, cancel := s.storeContext(ctx)
		defer cancel()

		db, err := s.store.Load(loadCtx, user)
		switch {
		case err == nil:
		case apperrors.IsNotFound(err):
			db = nil
		default:
			return nil, apperrors.WrapErrorf(err, "load chain for %q", user)
		}
		return s.install(user, db)
	})
	if err == nil {
		return v.(*markov.Chain), nil
	}
	if write || !apperrors.IsDegraded(err) {
		return nil, err
	}
	s.logger.Warn("Chain store degraded, serving an empty chain",
		zap.String("user", user),
		zap.Error(err))
	return markov.New(s.order, nil, s.options...)
}

func (s *Service) install(user string, db markov.Database) (*markov.Chain, error) {
	chain, err := markov.New(s.order, db, s.options...)
	if err != nil {
		return nil, err
	}
	s.engines.Add(user, chain)
	s.logger.Debug("Chain engine loaded",
		zap.String("user", user),
		zap.Int("links", len(chain.Database())))
	return chain, nil
}

// Respond generates a reply in the voice of user. A limit of zero uses the
// configured default.
func (s *Service) Respond(ctx context.Context, user, seed string, limit int) (Reply, error) {
	if err := validUser(user); err != nil {
		return Reply{}, err
	}
	lock := s.acquire(user)
	defer s.release(user, lock)
	lock.RLock()
	defer lock.RUnlock()

	chain, err := s.engine(ctx, user, false)
	if err != nil {
		return Reply{}, err
	}
	if limit <= 0 {
		limit = s.limit
	}

	seed = strings.TrimSpace(seed)
	words := chain.Respond(seed, limit)
	if len(words) == 0 {
		s.logger.Debug("Empty chain, no reply", zap.String("user", user))
	}
	return Reply{User: user, Seed: seed, Words: words, Text: strings.Join(words, " ")}, nil
}

// Train seeds user's chain with messages, each as its own segment, and
// persists the result.
func (s *Service) Train(ctx context.Context, user string, messages []string) (TrainResult, error) {
	if err := validUser(user); err != nil {
		return TrainResult{}, err
	}
	segments := s.pipeline.Prepare(messages)
	return s.train(ctx, user, len(messages), len(segments), func(c *markov.Chain) {
		c.SeedAll(segments)
	})
}

// TrainLines seeds user's chain with every line of r, bypassing the corpus
// pipeline. Lines seeded before a read failure are still persisted and the
// read failure is returned afterwards.
func (s *Service) TrainLines(ctx context.Context, user string, r io.Reader) (TrainResult, error) {
	if err := validUser(user); err != nil {
		return TrainResult{}, err
	}
	var readErr error
	res, err := s.train(ctx, user, 0, 0, func(c *markov.Chain) {
		readErr = c.SeedLines(r)
	})
	if err != nil {
		return res, err
	}
	return res, readErr
}

func (s *Service) train(ctx context.Context, user string, messages, segments int, seed func(*markov.Chain)) (TrainResult, error) {
	lock := s.acquire(user)
	defer s.release(user, lock)
	lock.Lock()
	defer lock.Unlock()

	chain, err := s.engine(ctx, user, true)
	if err != nil {
		return TrainResult{}, err
	}

	before := len(chain.Database())
	seed(chain)
	result := TrainResult{
		User:     user,
		Messages: messages,
		Segments: segments,
		Links:    len(chain.Database()),
		NewLinks: len(chain.Database()) - before,
	}

	saveCtx, cancel := s.storeContext(ctx)
	defer cancel()
	if err := s.store.Save(saveCtx, user, chain.Database()); err != nil {
		// Drop the unsaved engine so the next access reloads what was stored.
		s.engines.Remove(user)
		s.logger.Error("Failed to persist chain",
			zap.String("user", user),
			zap.Error(err))
		return result, apperrors.WrapErrorf(err, "save chain for %q", user)
	}

	s.logger.Info("Trained chain",
		zap.String("user", user),
		zap.Int("messages", result.Messages),
		zap.Int("segments", result.Segments),
		zap.Int("links", result.Links),
		zap.Int("new_links", result.NewLinks))
	return result, nil
}

// TrainAll trains several users in parallel, bounded by the configured
// concurrency. Each user's chain is still seeded by one goroutine at a time.
func (s *Service) TrainAll(ctx context.Context, batches map[string][]string) ([]TrainResult, error) {
	users := make([]string, 0, len(batches))
	for user := range batches {
		users = append(users, user)
	}
	sort.Strings(users)

	results := make([]TrainResult, len(users))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, user := range users {
		g.Go(func() error {
			res, err := s.Train(gctx, user, batches[user])
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Warm loads the engines of several users ahead of use.
func (s *Service) Warm(ctx context.Context, users []string) error {
	var missing []string
	for _, user := range users {
		if !s.engines.Contains(user) {
			missing = append(missing, user)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	bl, ok := s.store.(chainstore.BatchLoader)
	if !ok {
		for _, user := range missing {
			if _, err := s.engine(ctx, user, false); err != nil {
				return err
			}
		}
		return nil
	}

	loadCtx, cancel := s.storeContext(ctx)
	defer cancel()
	found, err := bl.LoadMany(loadCtx, missing)
	if err != nil {
		return apperrors.WrapError(err, "warm chain engines")
	}
	for _, user := range missing {
		db, ok := found[user]
		if !ok {
			// Unreachable right now; the first access retries the load.
			continue
		}
		lock := s.acquire(user)
		lock.Lock()
		if !s.engines.Contains(user) {
			_, err = s.install(user, db)
		}
		lock.Unlock()
		s.release(user, lock)
		if err != nil {
			return err
		}
	}
	return nil
}

// Stats reports chain statistics for user along with its top links.
func (s *Service) Stats(ctx context.Context, user string, top int) (markov.Stats, []markov.LinkCount, error) {
	if err := validUser(user); err != nil {
		return markov.Stats{}, nil, err
	}
	lock := s.acquire(user)
	defer s.release(user, lock)
	lock.RLock()
	defer lock.RUnlock()

	chain, err := s.engine(ctx, user, false)
	if err != nil {
		return markov.Stats{}, nil, err
	}
	db := chain.Database()
	return db.Stats(), db.TopLinks(top), nil
}

// Users lists the users with a stored chain, when the store can enumerate them.
func (s *Service) Users(ctx context.Context) ([]string, error) {
	ul, ok := s.store.(chainstore.UserLister)
	if !ok {
		return nil, apperrors.WrapErrorf(apperrors.ErrServiceUnavailable, "store %q cannot list users", s.store.Name())
	}
	listCtx, cancel := s.storeContext(ctx)
	defer cancel()
	return ul.Users(listCtx)
}

// Forget drops the cached engine for user; the next access reloads it.
func (s *Service) Forget(user string) {
	s.engines.Remove(user)
}

// Cached reports how many engines are currently held.
func (s *Service) Cached() int {
	return s.engines.Len()
}
