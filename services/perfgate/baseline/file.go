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
	"encoding/json"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
)

const fileExt = ".json"

// FileStore stores baselines as JSON files, one per key.
//
// Description:
//
//	Keys are path-escaped to form file names, so "render/frame" is stored
//	as {dir}/render%2Fframe.json. Writes go to a temporary file that is
//	renamed into place.
//
// Thread Safety: Safe for concurrent use within one process.
type FileStore struct {
	dir string
	mu  sync.RWMutex
	now func() time.Time
}

// NewFileStore creates a FileStore rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("baseline directory must not be empty")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "create baseline directory %s", dir)
	}
	return &FileStore{dir: dir, now: time.Now}, nil
}

// Dir returns the root directory.
func (f *FileStore) Dir() string {
	return f.dir
}

// Load implements Store.
func (f *FileStore) Load(ctx context.Context, key string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	return f.read(key)
}

func (f *FileStore) read(key string) (*Record, error) {
	data, err := os.ReadFile(f.filePath(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrapf(ErrBaselineNotFound, "key %q", key)
		}
		return nil, errors.Wrapf(err, "read baseline %q", key)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, errors.Wrapf(ErrInvalidBaseline, "decode baseline %q: %v", key, err)
	}
	if rec.Key == "" {
		rec.Key = key
	}
	return &rec, nil
}

// Save implements Store.
func (f *FileStore) Save(ctx context.Context, key string, rec *Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	stored, err := stamp(key, rec, f.now())
	if err != nil {
		return err
	}
	if rec.CreatedAt.IsZero() {
		if prev, err := f.read(key); err == nil {
			stored.CreatedAt = prev.CreatedAt
		}
	}

	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "encode baseline %q", key)
	}

	tmp, err := os.CreateTemp(f.dir, ".baseline-*")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return errors.Wrapf(err, "write baseline %q", key)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return errors.Wrapf(err, "write baseline %q", key)
	}
	if err := os.Rename(tmpName, f.filePath(key)); err != nil {
		_ = os.Remove(tmpName)
		return errors.Wrapf(err, "write baseline %q", key)
	}
	return nil
}

// List implements Store.
func (f *FileStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, errors.Wrapf(err, "list %s", f.dir)
	}

	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".baseline-") || filepath.Ext(name) != fileExt {
			continue
		}
		key, err := url.PathUnescape(strings.TrimSuffix(name, fileExt))
		if err != nil {
			continue
		}
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys, nil
}

// Delete implements Store.
func (f *FileStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.filePath(key)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return errors.Wrapf(ErrBaselineNotFound, "key %q", key)
		}
		return errors.Wrapf(err, "delete baseline %q", key)
	}
	return nil
}

// Close implements Store.
func (f *FileStore) Close() error {
	return nil
}

func (f *FileStore) filePath(key string) string {
	return filepath.Join(f.dir, url.PathEscape(key)+fileExt)
}
