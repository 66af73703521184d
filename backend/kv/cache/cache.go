// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package cache

import (
	"github.com/Fantom-foundation/monotree/backend/kv"
	"github.com/Fantom-foundation/monotree/common"
	"github.com/VictoriaMetrics/fastcache"
)

// Store is a write-through cache wrapping another kv.Store. Cached values
// are kept off-heap in a fastcache instance bounded by a maximum byte size.
// Since stored values are content addressed, a key is never associated with
// two different values and cached entries never become stale.
type Store struct {
	store kv.Store
	cache *fastcache.Cache
}

// NewStore wraps the given store with a cache holding up to maxBytes bytes.
func NewStore(store kv.Store, maxBytes int) *Store {
	return &Store{
		store: store,
		cache: fastcache.New(maxBytes),
	}
}

func (s *Store) Get(key common.Hash) ([]byte, bool, error) {
	if value, found := s.cache.HasGet(nil, key[:]); found {
		if value == nil {
			value = []byte{}
		}
		return value, true, nil
	}
	value, found, err := s.store.Get(key)
	if err != nil || !found {
		return nil, found, err
	}
	s.cache.Set(key[:], value)
	return value, true, nil
}

func (s *Store) Put(key common.Hash, value []byte) error {
	if err := s.store.Put(key, value); err != nil {
		return err
	}
	s.cache.Set(key[:], value)
	return nil
}

func (s *Store) Delete(key common.Hash) error {
	s.cache.Del(key[:])
	return s.store.Delete(key)
}

func (s *Store) NewBatch() kv.Batch {
	return &batch{inner: s.store.NewBatch()}
}

// Write forwards the batch to the wrapped store. The cache is only updated
// once the wrapped store accepted the full batch.
func (s *Store) Write(b kv.Batch) error {
	wb, ok := b.(*batch)
	if !ok {
		return kv.UnsupportedBatchError("cache", b)
	}
	if err := s.store.Write(wb.inner); err != nil {
		// Deleted entries may already be gone in the wrapped store.
		for _, op := range wb.ops.Ops() {
			if op.IsDelete() {
				s.cache.Del(op.Key[:])
			}
		}
		return err
	}
	for _, op := range wb.ops.Ops() {
		if op.IsDelete() {
			s.cache.Del(op.Key[:])
		} else {
			s.cache.Set(op.Key[:], op.Value)
		}
	}
	return nil
}

// Stats returns the number of cache hits and misses so far.
func (s *Store) Stats() (hits, misses uint64) {
	var stats fastcache.Stats
	s.cache.UpdateStats(&stats)
	return stats.GetCalls - stats.Misses, stats.Misses
}

func (s *Store) Flush() error {
	return s.store.Flush()
}

func (s *Store) Close() error {
	s.cache.Reset()
	return s.store.Close()
}

// batch records all operations for updating the cache in addition to
// forwarding them to the batch of the wrapped store.
type batch struct {
	inner kv.Batch
	ops   kv.OpBatch
}

func (b *batch) Put(key common.Hash, value []byte) {
	b.inner.Put(key, value)
	b.ops.Put(key, value)
}

func (b *batch) Delete(key common.Hash) {
	b.inner.Delete(key)
	b.ops.Delete(key)
}

func (b *batch) Len() int {
	return b.inner.Len()
}

func (b *batch) Reset() {
	b.inner.Reset()
	b.ops.Reset()
}
