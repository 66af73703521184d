// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package provider creates kv.Store instances from a declarative
// configuration, as used by tools selecting the storage backend at runtime.
package provider

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Fantom-foundation/monotree/backend/kv"
	"github.com/Fantom-foundation/monotree/backend/kv/cache"
	"github.com/Fantom-foundation/monotree/backend/kv/ldb"
	"github.com/Fantom-foundation/monotree/backend/kv/memory"
	"github.com/Fantom-foundation/monotree/backend/kv/pebble"
	"github.com/Fantom-foundation/monotree/backend/kv/sqlite"
)

// Backend names a supported store implementation.
type Backend string

const (
	Memory  Backend = "memory"
	LevelDb Backend = "leveldb"
	Pebble  Backend = "pebble"
	Sqlite  Backend = "sqlite"
)

// GetAllBackends returns all supported backends.
func GetAllBackends() []Backend {
	return []Backend{Memory, LevelDb, Pebble, Sqlite}
}

// Config describes the store to be opened.
type Config struct {
	Backend   Backend `toml:"backend"`
	Directory string  `toml:"directory,omitempty"`
	// CacheSize is the size of a fastcache put in front of the store in
	// bytes. Zero disables caching.
	CacheSize int  `toml:"cache_size,omitempty"`
	Sync      bool `toml:"sync,omitempty"`
}

// DefaultConfig returns an in-memory configuration without cache.
func DefaultConfig() Config {
	return Config{Backend: Memory}
}

// Open creates the store described by the given configuration. Persistent
// backends require a directory, which is created if missing.
func Open(config Config) (kv.Store, error) {
	var store kv.Store
	switch config.Backend {
	case Memory, "":
		store = memory.NewStore()
	case LevelDb, Pebble, Sqlite:
		if config.Directory == "" {
			return nil, fmt.Errorf("backend %s requires a directory", config.Backend)
		}
		if err := os.MkdirAll(config.Directory, 0700); err != nil {
			return nil, fmt.Errorf("failed to create directory %s; %w", config.Directory, err)
		}
		var err error
		store, err = openPersistent(config)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown backend: %s", config.Backend)
	}
	if config.CacheSize > 0 {
		store = cache.NewStore(store, config.CacheSize)
	}
	return store, nil
}

func openPersistent(config Config) (kv.Store, error) {
	switch config.Backend {
	case LevelDb:
		var options []ldb.Option
		if config.Sync {
			options = append(options, ldb.WithSync())
		}
		return ldb.OpenStore(config.Directory, options...)
	case Pebble:
		return pebble.OpenStore(config.Directory, config.Sync)
	case Sqlite:
		return sqlite.OpenStore(filepath.Join(config.Directory, "nodes.sqlite"))
	}
	return nil, fmt.Errorf("unknown backend: %s", config.Backend)
}
