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
	"log/slog"

	"github.com/cockroachdb/errors"

	"github.com/AleutianAI/perfgate/services/perfgate/config"
)

// Open returns the Store selected by cfg.Backend.
func Open(cfg config.Store, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Backend {
	case config.BackendMemory:
		return NewMemoryStore(), nil
	case config.BackendFile, "":
		store, err := NewFileStore(cfg.Path)
		if err != nil {
			return nil, err
		}
		logger.Debug("opened file baseline store", slog.String("dir", cfg.Path))
		return store, nil
	case config.BackendBadger:
		store, err := OpenBadgerStore(BadgerConfig{
			Path:       cfg.Path,
			SyncWrites: cfg.SyncWrites,
			Logger:     logger.With(slog.String("component", "badger")),
		})
		if err != nil {
			return nil, err
		}
		logger.Debug("opened badger baseline store", slog.String("dir", cfg.Path))
		return store, nil
	default:
		return nil, errors.Newf("unknown baseline backend %q", cfg.Backend)
	}
}
