// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/Fantom-foundation/monotree/backend/kv"
	"github.com/Fantom-foundation/monotree/backend/kv/provider"
	"github.com/Fantom-foundation/monotree/common"
	"github.com/Fantom-foundation/monotree/common/logger"
	"github.com/Fantom-foundation/monotree/database/smt"
	"github.com/pbnjay/memory"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

var (
	configFlag = cli.StringFlag{
		Name:  "config",
		Usage: "a TOML file providing the configuration, overridden by explicit flags",
	}
	dirFlag = cli.StringFlag{
		Name:  "dir",
		Usage: "the directory storing the trie",
	}
	backendFlag = cli.StringFlag{
		Name:  "backend",
		Usage: "the store backend, one of memory, leveldb, pebble, sqlite",
		Value: string(provider.LevelDb),
	}
	trieFlag = cli.StringFlag{
		Name:  "trie",
		Usage: "the name of the trie configuration, e.g. Keccak256, Sha256, Blake2b",
		Value: smt.DefaultConfig.Name,
	}
	cacheSizeFlag = cli.IntFlag{
		Name:  "cache-size",
		Usage: "the size of the store cache in bytes, 0 to disable",
		Value: defaultCacheSize(),
	}
	logEnvFlag = cli.StringFlag{
		Name:  "log",
		Usage: "the logging environment, development or production",
		Value: logger.Production,
	}
)

// defaultCacheSize uses 64 MiB for the store cache, or a sixteenth of the
// system memory on smaller machines.
func defaultCacheSize() int {
	const size = 64 << 20
	if total := memory.TotalMemory(); total > 0 && total/16 < size {
		return int(total / 16)
	}
	return size
}

// Config is the configuration of the tool as read from TOML files.
type Config struct {
	Trie  string          `toml:"trie"`
	Store provider.Config `toml:"store"`
	Log   logger.Config   `toml:"log"`
}

func defaultConfig() Config {
	return Config{
		Trie: smt.DefaultConfig.Name,
		Store: provider.Config{
			Backend:   provider.LevelDb,
			CacheSize: cacheSizeFlag.Value,
		},
		Log: logger.DefaultConfig(),
	}
}

// loadConfig reads the configuration file, if any, and applies the
// command line flags set explicitly.
func loadConfig(context *cli.Context) (Config, error) {
	config := defaultConfig()
	if file := context.String(configFlag.Name); file != "" {
		if _, err := toml.DecodeFile(file, &config); err != nil {
			return config, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}
	if context.IsSet(dirFlag.Name) {
		config.Store.Directory = context.String(dirFlag.Name)
	}
	if context.IsSet(backendFlag.Name) {
		config.Store.Backend = provider.Backend(context.String(backendFlag.Name))
	}
	if context.IsSet(trieFlag.Name) {
		config.Trie = context.String(trieFlag.Name)
	}
	if context.IsSet(cacheSizeFlag.Name) {
		config.Store.CacheSize = context.Int(cacheSizeFlag.Name)
	}
	if context.IsSet(logEnvFlag.Name) {
		config.Log.Environment = context.String(logEnvFlag.Name)
	}
	return config, nil
}

// session bundles the resources opened for running a command.
type session struct {
	config Config
	trie   *smt.Trie
	store  kv.Store
	lock   common.LockFile
	log    *zap.Logger
}

func openSession(context *cli.Context) (*session, error) {
	config, err := loadConfig(context)
	if err != nil {
		return nil, err
	}
	if config.Store.Directory == "" {
		return nil, fmt.Errorf("missing directory storing the trie")
	}
	trieConfig, found := smt.GetConfigByName(config.Trie)
	if !found {
		return nil, fmt.Errorf("unknown trie configuration: %s", config.Trie)
	}
	if err := os.MkdirAll(config.Store.Directory, 0700); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	lock, err := common.LockDirectory(config.Store.Directory)
	if err != nil {
		return nil, err
	}
	log, err := logger.New(config.Log)
	if err != nil {
		return nil, errors.Join(err, lock.Release())
	}
	// nodes are kept in a sub-directory, next to the root file
	storeConfig := config.Store
	storeConfig.Directory = filepath.Join(config.Store.Directory, "nodes")
	store, err := provider.Open(storeConfig)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("failed to open store: %w", err), lock.Release())
	}
	trie, err := smt.NewTrie(trieConfig, store, smt.WithLogger(log))
	if err != nil {
		return nil, errors.Join(err, store.Close(), lock.Release())
	}
	log.Debug("opened trie",
		zap.String("dir", config.Store.Directory),
		zap.String("backend", string(config.Store.Backend)),
		zap.String("config", trieConfig.Name),
	)
	return &session{
		config: config,
		trie:   trie,
		store:  store,
		lock:   lock,
		log:    log,
	}, nil
}

func (s *session) getRoot() (*common.Hash, error) {
	return readRoot(s.config.Store.Directory)
}

func (s *session) setRoot(root *common.Hash) error {
	return writeRoot(s.config.Store.Directory, root)
}

func (s *session) Close() error {
	// syncing stderr reports an error on some platforms, which is ignored
	_ = s.log.Sync()
	return errors.Join(s.store.Flush(), s.store.Close(), s.lock.Release())
}

// runInSession opens a session for the duration of the given action.
func runInSession(action func(*cli.Context, *session) error) cli.ActionFunc {
	return addPerformanceDiagnoses(func(context *cli.Context) (err error) {
		s, err := openSession(context)
		if err != nil {
			return err
		}
		defer func() {
			err = errors.Join(err, s.Close())
		}()
		return action(context, s)
	})
}
