// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package baseline

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/perfgate/services/perfgate/config"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()

	file, err := NewFileStore(filepath.Join(t.TempDir(), "baselines"))
	require.NoError(t, err)

	db, err := OpenBadgerStore(BadgerConfig{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"file":   file,
		"badger": db,
	}
}

func testRecord() *Record {
	return &Record{
		Unit:          "ms",
		Configuration: map[string]string{"gpu": "rtx4090", "resolution": "4k"},
		Samples:       []float64{10.0, 10.1, 9.9},
		Auxiliary:     map[string][]float64{"gpu_utilization": {50, 51}},
		Metadata:      map[string]string{"commit": "abc123"},
	}
}

// -----------------------------------------------------------------------------
// Store Conformance Tests
// -----------------------------------------------------------------------------

func TestStore_SaveLoad(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, store.Save(ctx, "render/frame", testRecord()))

			got, err := store.Load(ctx, "render/frame")
			require.NoError(t, err)
			assert.Equal(t, "render/frame", got.Key)
			assert.Equal(t, "ms", got.Unit)
			assert.Equal(t, []float64{10.0, 10.1, 9.9}, got.Samples)
			assert.Equal(t, []float64{50, 51}, got.Auxiliary["gpu_utilization"])
			assert.Equal(t, "rtx4090", got.Configuration["gpu"])
			assert.Equal(t, "abc123", got.Metadata["commit"])
			assert.False(t, got.CreatedAt.IsZero())
			assert.False(t, got.UpdatedAt.IsZero())
		})
	}
}

func TestStore_NotFound(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := store.Load(ctx, "missing")
			assert.True(t, errors.Is(err, ErrBaselineNotFound), "got %v", err)

			err = store.Delete(ctx, "missing")
			assert.True(t, errors.Is(err, ErrBaselineNotFound), "got %v", err)
		})
	}
}

func TestStore_ListAndDelete(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			keys, err := store.List(ctx)
			require.NoError(t, err)
			assert.Empty(t, keys)

			for _, k := range []string{"b", "a/1", "c d"} {
				require.NoError(t, store.Save(ctx, k, testRecord()))
			}

			keys, err = store.List(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"a/1", "b", "c d"}, keys)

			require.NoError(t, store.Delete(ctx, "b"))
			keys, err = store.List(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"a/1", "c d"}, keys)
		})
	}
}

func TestStore_PreservesCreatedAt(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, store.Save(ctx, "k", testRecord()))
			first, err := store.Load(ctx, "k")
			require.NoError(t, err)

			time.Sleep(2 * time.Millisecond)
			next := testRecord()
			next.Samples = []float64{20}
			require.NoError(t, store.Save(ctx, "k", next))

			second, err := store.Load(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, []float64{20}, second.Samples)
			assert.True(t, first.CreatedAt.Equal(second.CreatedAt))
			assert.True(t, second.UpdatedAt.After(first.UpdatedAt))
		})
	}
}

func TestStore_RejectsInvalid(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			tests := map[string]struct {
				key string
				rec *Record
			}{
				"nil record":    {"k", nil},
				"empty key":     {"", testRecord()},
				"no samples":    {"k", &Record{}},
				"nan sample":    {"k", &Record{Samples: []float64{1, math.NaN()}}},
				"inf auxiliary": {"k", &Record{Samples: []float64{1}, Auxiliary: map[string][]float64{"x": {math.Inf(1)}}}},
			}
			for tname, tt := range tests {
				err := store.Save(ctx, tt.key, tt.rec)
				assert.True(t, errors.Is(err, ErrInvalidBaseline), "%s: got %v", tname, err)
			}
		})
	}
}

func TestStore_CancelledContext(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			_, err := store.Load(ctx, "k")
			assert.ErrorIs(t, err, context.Canceled)
			assert.ErrorIs(t, store.Save(ctx, "k", testRecord()), context.Canceled)
		})
	}
}

func TestStore_ConcurrentAccess(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					rec := testRecord()
					rec.Samples = []float64{float64(i)}
					assert.NoError(t, store.Save(ctx, "shared", rec))
					_, err := store.Load(ctx, "shared")
					assert.NoError(t, err)
				}(i)
			}
			wg.Wait()
		})
	}
}

// -----------------------------------------------------------------------------
// Backend-specific Tests
// -----------------------------------------------------------------------------

func TestMemoryStore_CopyOnReadWrite(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	rec := testRecord()
	require.NoError(t, store.Save(ctx, "k", rec))
	rec.Samples[0] = 999

	got, err := store.Load(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 10.0, got.Samples[0])

	got.Auxiliary["gpu_utilization"][0] = -1
	again, err := store.Load(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 50.0, again.Auxiliary["gpu_utilization"][0])
}

func TestFileStore_Layout(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "render/frame", testRecord()))
	_, err = os.Stat(filepath.Join(dir, "render%2Fframe.json"))
	require.NoError(t, err)

	// stray files are ignored
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))
	keys, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"render/frame"}, keys)
}

func TestFileStore_Corrupt(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{not json"), 0644))
	_, err = store.Load(context.Background(), "bad")
	assert.True(t, errors.Is(err, ErrInvalidBaseline))
}

func TestBadgerStore_Persistent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "db")
	ctx := context.Background()

	store, err := OpenBadgerStore(BadgerConfig{Path: dir, SyncWrites: true})
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, "k", testRecord()))
	require.NoError(t, store.Close())

	reopened, err := OpenBadgerStore(BadgerConfig{Path: dir})
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Load(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []float64{10.0, 10.1, 9.9}, got.Samples)
}

func TestOpenBadgerStore_RequiresPath(t *testing.T) {
	_, err := OpenBadgerStore(BadgerConfig{})
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		cfg     config.Store
		want    Store
		wantErr bool
	}{
		{config.Store{Backend: config.BackendMemory}, &MemoryStore{}, false},
		{config.Store{Backend: config.BackendFile, Path: filepath.Join(dir, "files")}, &FileStore{}, false},
		{config.Store{Backend: config.BackendBadger, Path: filepath.Join(dir, "badger")}, &BadgerStore{}, false},
		{config.Store{Backend: "sqlite"}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.cfg.Backend, func(t *testing.T) {
			store, err := Open(tt.cfg, nil)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer store.Close()
			assert.IsType(t, tt.want, store)
		})
	}
}
