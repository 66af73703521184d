// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package memory

import (
	"bytes"
	"sync"

	"github.com/Fantom-foundation/monotree/backend/kv"
	"github.com/Fantom-foundation/monotree/common"
)

// Store is an in-memory kv.Store implementation backed by a map.
type Store struct {
	data  map[common.Hash][]byte
	mutex sync.RWMutex
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{data: map[common.Hash][]byte{}}
}

func (s *Store) Get(key common.Hash) ([]byte, bool, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	value, found := s.data[key]
	if !found {
		return nil, false, nil
	}
	return bytes.Clone(value), true, nil
}

func (s *Store) Put(key common.Hash, value []byte) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.data[key] = bytes.Clone(value)
	return nil
}

func (s *Store) Delete(key common.Hash) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.data, key)
	return nil
}

func (s *Store) NewBatch() kv.Batch {
	return &kv.OpBatch{}
}

func (s *Store) Write(batch kv.Batch) error {
	ops, ok := batch.(*kv.OpBatch)
	if !ok {
		return kv.UnsupportedBatchError("memory", batch)
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	for _, op := range ops.Ops() {
		if op.IsDelete() {
			delete(s.data, op.Key)
		} else {
			s.data[op.Key] = bytes.Clone(op.Value)
		}
	}
	return nil
}

// Len returns the number of stored entries.
func (s *Store) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.data)
}

func (s *Store) Flush() error {
	return nil // nothing to flush for an in-memory store
}

func (s *Store) Close() error {
	return nil
}
