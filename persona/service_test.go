package persona

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"testing/iotest"

	"markov-persona/chainstore"
	"markov-persona/config"
	apperrors "markov-persona/errors"
	"markov-persona/markov"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memStore struct {
	mu      sync.Mutex
	chains  map[string]markov.Database
	loads   int
	saves   int
	saveErr error
	loadErr error
}

func newMemStore() *memStore {
	return &memStore{chains: make(map[string]markov.Database)}
}

func clone(db markov.Database) markov.Database {
	raw, _ := json.Marshal(db)
	var out markov.Database
	_ = json.Unmarshal(raw, &out)
	return out
}

func (m *memStore) Name() string { return "memory" }

func (m *memStore) Load(_ context.Context, user string) (markov.Database, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads++
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	db, ok := m.chains[user]
	if !ok {
		return nil, apperrors.WrapErrorf(apperrors.ErrNotFound, "no chain for %q", user)
	}
	return clone(db), nil
}

func (m *memStore) Save(_ context.Context, user string, db markov.Database) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.chains[user] = clone(db)
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		ChainOrder:       2,
		EngineCacheSize:  8,
		TrainConcurrency: 2,
		StripMarkdown:    true,
	}
}

func newTestService(t *testing.T, cfg *config.Config, store chainstore.Provider) *Service {
	t.Helper()
	s, err := NewService(cfg, store, zap.NewNop())
	require.NoError(t, err)
	return s
}

func TestRespondEmptyChain(t *testing.T) {
	s := newTestService(t, testConfig(), newMemStore())
	reply, err := s.Respond(context.Background(), "gary", "hello", 0)
	require.NoError(t, err)
	require.Empty(t, reply.Words)
	require.Equal(t, "", reply.Text)
	require.Equal(t, "gary", reply.User)
}

func TestTrainThenRespond(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	s := newTestService(t, testConfig(), store)

	res, err := s.Train(ctx, "gary", []string{"the **cat** sat on the mat", "   "})
	require.NoError(t, err)
	require.Equal(t, TrainResult{User: "gary", Messages: 2, Segments: 1, Links: 3, NewLinks: 3}, res)
	require.Contains(t, store.chains["gary"], "the_cat")

	reply, err := s.Respond(ctx, "gary", "  the cat ", 0)
	require.NoError(t, err)
	require.Equal(t, "the cat", reply.Seed)
	require.Equal(t, []string{"the mat", "sat on", "the cat"}, reply.Words)
	require.Equal(t, "the mat sat on the cat", reply.Text)

	limited, err := s.Respond(ctx, "gary", "the cat", 1)
	require.NoError(t, err)
	require.Equal(t, []string{"the cat"}, limited.Words)
}

func TestEngineCache(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	s := newTestService(t, testConfig(), store)

	_, err := s.Respond(ctx, "gary", "", 0)
	require.NoError(t, err)
	_, err = s.Respond(ctx, "gary", "", 0)
	require.NoError(t, err)
	require.Equal(t, 1, store.loads, "second respond must hit the cache")
	require.Equal(t, 1, s.Cached())

	s.Forget("gary")
	_, err = s.Respond(ctx, "gary", "", 0)
	require.NoError(t, err)
	require.Equal(t, 2, store.loads)
}

func TestEngineCacheEvicts(t *testing.T) {
	cfg := testConfig()
	cfg.EngineCacheSize = 1
	store := newMemStore()
	s := newTestService(t, cfg, store)

	ctx := context.Background()
	_, err := s.Train(ctx, "gary", []string{"the cat sat on the mat"})
	require.NoError(t, err)
	_, err = s.Train(ctx, "bob", []string{"a dog sat on the log"})
	require.NoError(t, err)
	require.Equal(t, 1, s.Cached())

	// gary was evicted; the reload must come back with the persisted chain.
	reply, err := s.Respond(ctx, "gary", "the cat", 0)
	require.NoError(t, err)
	require.Equal(t, "the mat sat on the cat", reply.Text)
}

func TestTrainSaveFailureDropsEngine(t *testing.T) {
	store := newMemStore()
	store.saveErr = apperrors.ErrDatabaseOperation
	s := newTestService(t, testConfig(), store)

	_, err := s.Train(context.Background(), "gary", []string{"the cat sat on the mat"})
	require.ErrorIs(t, err, apperrors.ErrDatabaseOperation)
	require.Equal(t, 0, s.Cached())

	store.saveErr = nil
	reply, err := s.Respond(context.Background(), "gary", "the cat", 0)
	require.NoError(t, err)
	require.Empty(t, reply.Words, "unsaved training must not leak into later replies")
}

func TestTrainLines(t *testing.T) {
	store := newMemStore()
	s := newTestService(t, testConfig(), store)
	errBoom := errors.New("boom")

	r := io.MultiReader(strings.NewReader("the cat sat on the mat\n"), iotest.ErrReader(errBoom))
	res, err := s.TrainLines(context.Background(), "gary", r)
	require.ErrorIs(t, err, errBoom)
	require.Equal(t, 3, res.Links)
	require.Len(t, store.chains["gary"], 3, "lines read before the failure are persisted")
}

func TestTrainAll(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	s := newTestService(t, testConfig(), store)

	results, err := s.TrainAll(ctx, map[string][]string{
		"carol": {"one two three four"},
		"alice": {"the cat sat on the mat", "a dog sat on the log"},
		"bob":   {"hello there general kenobi"},
	})
	require.NoError(t, err)
	require.Len(t, results, 3)
	require.Equal(t, "alice", results[0].User)
	require.Equal(t, "bob", results[1].User)
	require.Equal(t, "carol", results[2].User)
	require.Len(t, store.chains, 3)
}

func TestTrainAllStopsOnError(t *testing.T) {
	store := newMemStore()
	store.saveErr = apperrors.ErrDatabaseOperation
	s := newTestService(t, testConfig(), store)

	_, err := s.TrainAll(context.Background(), map[string][]string{"alice": {"a b c d"}})
	require.ErrorIs(t, err, apperrors.ErrDatabaseOperation)
}

func TestInvalidUser(t *testing.T) {
	s := newTestService(t, testConfig(), newMemStore())
	ctx := context.Background()

	_, err := s.Respond(ctx, "  ", "hi", 0)
	require.True(t, apperrors.IsInvalidInput(err))
	_, err = s.Train(ctx, "", []string{"a b c d"})
	require.True(t, apperrors.IsInvalidInput(err))
	_, _, err = s.Stats(ctx, "", 5)
	require.True(t, apperrors.IsInvalidInput(err))
}

func TestNewServiceRejectsNegativeOrder(t *testing.T) {
	cfg := testConfig()
	cfg.ChainOrder = -1
	_, err := NewService(cfg, newMemStore(), zap.NewNop())
	require.True(t, apperrors.IsInvalidInput(err))
}

func TestWarmUsesBatchLoader(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	fs, err := chainstore.NewFSStore(dir, zap.NewNop())
	require.NoError(t, err)

	seeder := newTestService(t, testConfig(), fs)
	_, err = seeder.Train(ctx, "gary", []string{"the cat sat on the mat"})
	require.NoError(t, err)

	s := newTestService(t, testConfig(), chainstore.NewFallback(zap.NewNop(), fs))
	require.NoError(t, s.Warm(ctx, []string{"gary", "nobody"}))
	require.Equal(t, 2, s.Cached())

	stats, top, err := s.Stats(ctx, "gary", 1)
	require.NoError(t, err)
	require.Equal(t, 3, stats.Links)
	require.Len(t, top, 1)

	stats, _, err = s.Stats(ctx, "nobody", 1)
	require.NoError(t, err)
	require.Equal(t, 0, stats.Links)
}

func TestConcurrentTrainAndRespond(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, testConfig(), newMemStore())
	_, err := s.Train(ctx, "gary", []string{"the cat sat on the mat"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				if _, err := s.Train(ctx, "gary", []string{"a dog sat on the cat today"}); err != nil {
					t.Error(err)
					return
				}
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				reply, err := s.Respond(ctx, "gary", "the cat", 10)
				if err != nil || len(reply.Words) == 0 {
					t.Errorf("respond failed: %v %v", reply, err)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestTrainRefusesDegradedLoad(t *testing.T) {
	ctx := context.Background()
	primary := newMemStore()
	spare := newMemStore()
	store := chainstore.NewFallback(zap.NewNop(), primary, spare)

	_, err := newTestService(t, testConfig(), store).Train(ctx, "gary", []string{"alpha beta gamma delta epsilon zeta eta"})
	require.NoError(t, err)
	stored := clone(primary.chains["gary"])
	require.Len(t, stored, 4)

	primary.loadErr = apperrors.ErrDatabaseOperation
	s := newTestService(t, testConfig(), store)

	_, err = s.Train(ctx, "gary", []string{"one two three four"})
	require.True(t, apperrors.IsDegraded(err), "got %v", err)
	require.ErrorIs(t, err, apperrors.ErrDatabaseOperation)
	require.Equal(t, stored, primary.chains["gary"], "stored chain must survive")
	require.Zero(t, spare.saves, "nothing may be written while the primary is unreachable")
	require.Equal(t, 0, s.Cached())

	reply, err := s.Respond(ctx, "gary", "alpha", 0)
	require.NoError(t, err, "replies degrade to an empty chain")
	require.Empty(t, reply.Words)
	require.Equal(t, 0, s.Cached(), "a degraded load is never cached")

	primary.loadErr = nil
	res, err := s.Train(ctx, "gary", []string{"one two three four"})
	require.NoError(t, err)
	require.Equal(t, 6, res.Links)
	require.Contains(t, primary.chains["gary"], "alpha_beta")
}

func TestTrainRefusesFailedLoad(t *testing.T) {
	store := newMemStore()
	store.chains["gary"] = markov.Database{}
	store.loadErr = apperrors.ErrDatabaseOperation
	s := newTestService(t, testConfig(), store)

	_, err := s.Train(context.Background(), "gary", []string{"one two three four"})
	require.ErrorIs(t, err, apperrors.ErrDatabaseOperation)
	require.Zero(t, store.saves)
}

func TestUserLocksReleased(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.EngineCacheSize = 1
	s := newTestService(t, cfg, newMemStore())

	for _, user := range []string{"alice", "bob", "carol"} {
		_, err := s.Train(ctx, user, []string{"the cat sat on the mat"})
		require.NoError(t, err)
		_, err = s.Respond(ctx, user, "the cat", 0)
		require.NoError(t, err)
	}
	require.NoError(t, s.Warm(ctx, []string{"alice", "bob"}))

	s.mu.Lock()
	defer s.mu.Unlock()
	require.Empty(t, s.locks)
}

type listingStore struct {
	*memStore
}

func (l listingStore) Users(context.Context) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	users := make([]string, 0, len(l.chains))
	for user := range l.chains {
		users = append(users, user)
	}
	sort.Strings(users)
	return users, nil
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	store := listingStore{newMemStore()}
	s := newTestService(t, testConfig(), store)
	_, err := s.Train(ctx, "gary", []string{"the cat sat on the mat"})
	require.NoError(t, err)
	_, err = s.Train(ctx, "bob", []string{"a dog sat on the log"})
	require.NoError(t, err)

	users, err := s.Users(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"bob", "gary"}, users)

	_, err = newTestService(t, testConfig(), newMemStore()).Users(ctx)
	require.True(t, apperrors.IsServiceUnavailable(err), "got %v", err)
}
