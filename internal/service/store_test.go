package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/sakif/storefront/internal/repository"
	"github.com/sakif/storefront/internal/repository/memory"
)

// =========================================================================
// FLAKY STORE
// =========================================================================
//
// flakyStore wraps the in-memory store and can be told to fail reads or
// writes, which is how the persistence-failure paths are exercised without a
// real backend falling over.

var errDiskFull = errors.New("disk full")

type flakyStore struct {
	*memory.Store

	mu      sync.Mutex
	failGet bool
	failSet bool
	sets    int
}

func newFlakyStore() *flakyStore {
	return &flakyStore{Store: memory.New()}
}

func (f *flakyStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	fail := f.failGet
	f.mu.Unlock()
	if fail {
		return nil, false, errDiskFull
	}
	return f.Store.Get(ctx, key)
}

func (f *flakyStore) Set(ctx context.Context, key string, value []byte) error {
	f.mu.Lock()
	fail := f.failSet
	f.sets++
	f.mu.Unlock()
	if fail {
		return errDiskFull
	}
	return f.Store.Set(ctx, key, value)
}

func (f *flakyStore) setFailures(get, set bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failGet, f.failSet = get, set
}

var _ repository.KeyValueStore = (*flakyStore)(nil)

// =========================================================================
// TEST HELPERS
// =========================================================================

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func rawValue(t *testing.T, kv repository.KeyValueStore, key string) string {
	t.Helper()
	raw, ok, err := kv.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("Get(%q) error = %v", key, err)
	}
	if !ok {
		return ""
	}
	return string(raw)
}
