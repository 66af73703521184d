// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package ldb

import (
	"errors"

	"github.com/Fantom-foundation/monotree/backend/kv"
	"github.com/Fantom-foundation/monotree/common"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

// TableSpace divides a LevelDB instance into spaces by adding a prefix to
// each key. This way multiple stores may share a single database.
type TableSpace byte

const (
	// NodeKey is the table space of trie nodes.
	NodeKey TableSpace = 'N'
)

// DbKey is a key in the database consisting of a table space prefix followed
// by a digest.
type DbKey [1 + common.HashSize]byte

// ToDBKey converts the digest to its respective table space key.
func (t TableSpace) ToDBKey(key common.Hash) DbKey {
	var res DbKey
	res[0] = byte(t)
	copy(res[1:], key[:])
	return res
}

func (d *DbKey) ToBytes() []byte {
	return d[:]
}

// Store is a LevelDB backed kv.Store implementation.
type Store struct {
	db           *leveldb.DB
	table        TableSpace
	writeOptions *opt.WriteOptions
	ownsDb       bool
}

// Option customizes a Store.
type Option func(*Store)

// WithSync makes all writes synchronous. By default, writes are only
// guaranteed to be persisted on Close.
func WithSync() Option {
	return func(s *Store) {
		s.writeOptions = &opt.WriteOptions{Sync: true}
	}
}

// WithTableSpace overrides the table space used for prefixing keys.
func WithTableSpace(table TableSpace) Option {
	return func(s *Store) {
		s.table = table
	}
}

// OpenStore opens or creates a LevelDB database in the given directory.
// The database is closed when the store is closed.
func OpenStore(directory string, options ...Option) (*Store, error) {
	db, err := leveldb.OpenFile(directory, nil)
	if err != nil {
		return nil, err
	}
	res := NewStore(db, options...)
	res.ownsDb = true
	return res, nil
}

// NewStore wraps an already opened database. The database remains owned by
// the caller and is not closed when the store is closed.
func NewStore(db *leveldb.DB, options ...Option) *Store {
	res := &Store{db: db, table: NodeKey}
	for _, option := range options {
		option(res)
	}
	return res
}

func (s *Store) Get(key common.Hash) ([]byte, bool, error) {
	dbKey := s.table.ToDBKey(key)
	value, err := s.db.Get(dbKey.ToBytes(), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (s *Store) Put(key common.Hash, value []byte) error {
	dbKey := s.table.ToDBKey(key)
	return s.db.Put(dbKey.ToBytes(), value, s.writeOptions)
}

func (s *Store) Delete(key common.Hash) error {
	dbKey := s.table.ToDBKey(key)
	return s.db.Delete(dbKey.ToBytes(), s.writeOptions)
}

func (s *Store) NewBatch() kv.Batch {
	return &batch{table: s.table}
}

func (s *Store) Write(b kv.Batch) error {
	wb, ok := b.(*batch)
	if !ok {
		return kv.UnsupportedBatchError("leveldb", b)
	}
	return s.db.Write(&wb.batch, s.writeOptions)
}

func (s *Store) Flush() error {
	return nil // LevelDB persists writes in its journal
}

func (s *Store) Close() error {
	if !s.ownsDb {
		return nil
	}
	return s.db.Close()
}

// batch records operations in a native LevelDB batch.
type batch struct {
	batch leveldb.Batch
	table TableSpace
}

func (b *batch) Put(key common.Hash, value []byte) {
	dbKey := b.table.ToDBKey(key)
	b.batch.Put(dbKey.ToBytes(), value)
}

func (b *batch) Delete(key common.Hash) {
	dbKey := b.table.ToDBKey(key)
	b.batch.Delete(dbKey.ToBytes())
}

func (b *batch) Len() int {
	return b.batch.Len()
}

func (b *batch) Reset() {
	b.batch.Reset()
}
