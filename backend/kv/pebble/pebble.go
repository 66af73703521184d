// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package pebble

import (
	"bytes"
	"errors"

	"github.com/Fantom-foundation/monotree/backend/kv"
	"github.com/Fantom-foundation/monotree/common"
	"github.com/cockroachdb/pebble"
)

// Store is a Pebble backed kv.Store implementation.
type Store struct {
	db           *pebble.DB
	writeOptions *pebble.WriteOptions
}

// OpenStore opens or creates a Pebble database in the given directory. If
// sync is enabled, every write is synced to disk before returning.
func OpenStore(directory string, sync bool) (*Store, error) {
	db, err := pebble.Open(directory, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	options := pebble.NoSync
	if sync {
		options = pebble.Sync
	}
	return &Store{db: db, writeOptions: options}, nil
}

func (s *Store) Get(key common.Hash) ([]byte, bool, error) {
	value, closer, err := s.db.Get(key[:])
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	// the returned value is only valid until the closer is called
	res := bytes.Clone(value)
	if res == nil {
		res = []byte{}
	}
	return res, true, closer.Close()
}

func (s *Store) Put(key common.Hash, value []byte) error {
	return s.db.Set(key[:], value, s.writeOptions)
}

func (s *Store) Delete(key common.Hash) error {
	return s.db.Delete(key[:], s.writeOptions)
}

func (s *Store) NewBatch() kv.Batch {
	return &batch{batch: s.db.NewBatch()}
}

// Write applies the given batch. Pebble batches can only be applied once,
// a batch needs to be reset before it can be reused.
func (s *Store) Write(b kv.Batch) error {
	wb, ok := b.(*batch)
	if !ok {
		return kv.UnsupportedBatchError("pebble", b)
	}
	if wb.err != nil {
		return wb.err
	}
	return s.db.Apply(wb.batch, s.writeOptions)
}

func (s *Store) Flush() error {
	return s.db.Flush()
}

func (s *Store) Close() error {
	return s.db.Close()
}

// batch wraps a native Pebble batch. Pebble reports errors on individual
// operations which are retained and reported when writing the batch.
type batch struct {
	batch *pebble.Batch
	count int
	err   error
}

func (b *batch) Put(key common.Hash, value []byte) {
	b.count++
	b.err = errors.Join(b.err, b.batch.Set(key[:], value, nil))
}

func (b *batch) Delete(key common.Hash) {
	b.count++
	b.err = errors.Join(b.err, b.batch.Delete(key[:], nil))
}

func (b *batch) Len() int {
	return b.count
}

func (b *batch) Reset() {
	b.batch.Reset()
	b.count = 0
	b.err = nil
}
