// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package kv defines the key/value store abstraction used for persisting
// content addressed trie nodes. Keys are digests, values are the serialized
// nodes. Implementations are located in sub-packages.
package kv

//go:generate mockgen -source store.go -destination store_mocks.go -package kv

import (
	"fmt"

	"github.com/Fantom-foundation/monotree/common"
)

// Store is a mutable mapping from digests to byte strings. Besides individual
// updates it supports batches of updates which are applied atomically: either
// all operations of a batch become visible or none of them.
//
// All operations are safe for concurrent use.
type Store interface {
	// Get returns the value associated with the key. The second result is
	// false if there is no such value.
	Get(key common.Hash) ([]byte, bool, error)

	// Put associates the value with the key, replacing any present value.
	Put(key common.Hash, value []byte) error

	// Delete removes the value associated with the key, if present.
	Delete(key common.Hash) error

	// NewBatch creates an empty batch of operations for this store. Batches
	// created by one store may not be written to another store.
	NewBatch() Batch

	// Write atomically applies all operations of the given batch in the
	// order they have been recorded. The batch is not modified.
	Write(batch Batch) error

	// Stores need to be flushed and closed.
	common.FlushAndCloser
}

// Batch is a sequence of Put and Delete operations waiting to be written to
// a Store. Batches are not thread safe.
type Batch interface {
	// Put records the association of the value with the key.
	Put(key common.Hash, value []byte)
	// Delete records the removal of the key.
	Delete(key common.Hash)
	// Len returns the number of recorded operations.
	Len() int
	// Reset drops all recorded operations.
	Reset()
}

// Op is a single operation recorded in an OpBatch. A nil value marks a
// delete operation.
type Op struct {
	Key   common.Hash
	Value []byte
}

// IsDelete is true if this operation removes its key.
func (o Op) IsDelete() bool {
	return o.Value == nil
}

// OpBatch is a generic Batch implementation recording operations in a list.
// It is used by stores without a native batch format.
type OpBatch struct {
	ops []Op
}

func (b *OpBatch) Put(key common.Hash, value []byte) {
	if value == nil {
		value = []byte{}
	}
	b.ops = append(b.ops, Op{Key: key, Value: value})
}

func (b *OpBatch) Delete(key common.Hash) {
	b.ops = append(b.ops, Op{Key: key})
}

func (b *OpBatch) Len() int {
	return len(b.ops)
}

func (b *OpBatch) Reset() {
	b.ops = b.ops[:0]
}

// Ops returns the recorded operations in insertion order. The result must not
// be modified.
func (b *OpBatch) Ops() []Op {
	return b.ops
}

// UnsupportedBatchError creates the error reported by stores receiving a
// batch created by some other store.
func UnsupportedBatchError(store string, batch Batch) error {
	return fmt.Errorf("%s store can not write batches of type %T", store, batch)
}
