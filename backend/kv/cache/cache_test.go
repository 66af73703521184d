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
	"errors"
	"testing"

	"github.com/Fantom-foundation/monotree/backend/kv"
	"github.com/Fantom-foundation/monotree/backend/kv/memory"
	"github.com/Fantom-foundation/monotree/common"
	"go.uber.org/mock/gomock"
)

func TestCache_CachedValuesAreNotFetchedAgain(t *testing.T) {
	ctrl := gomock.NewController(t)
	inner := kv.NewMockStore(ctrl)
	key := common.Hash{1}

	inner.EXPECT().Get(key).Return([]byte{1, 2}, true, nil).Times(1)

	store := NewStore(inner, 1<<20)
	for i := 0; i < 3; i++ {
		value, found, err := store.Get(key)
		if err != nil || !found {
			t.Fatalf("failed to fetch value, found %t, err %v", found, err)
		}
		if want, got := []byte{1, 2}, value; string(want) != string(got) {
			t.Errorf("unexpected value, wanted %v, got %v", want, got)
		}
	}

	hits, misses := store.Stats()
	if hits != 2 || misses != 1 {
		t.Errorf("unexpected stats, wanted 2 hits and 1 miss, got %d and %d", hits, misses)
	}
}

func TestCache_MissingValuesAreNotCached(t *testing.T) {
	ctrl := gomock.NewController(t)
	inner := kv.NewMockStore(ctrl)
	key := common.Hash{1}

	inner.EXPECT().Get(key).Return(nil, false, nil).Times(2)

	store := NewStore(inner, 1<<20)
	for i := 0; i < 2; i++ {
		if _, found, err := store.Get(key); err != nil || found {
			t.Fatalf("unexpected result, found %t, err %v", found, err)
		}
	}
}

func TestCache_ErrorsOfWrappedStoreAreForwarded(t *testing.T) {
	ctrl := gomock.NewController(t)
	inner := kv.NewMockStore(ctrl)
	key := common.Hash{1}
	injected := errors.New("injected")

	inner.EXPECT().Get(key).Return(nil, false, injected)
	inner.EXPECT().Put(key, []byte{1}).Return(injected)

	store := NewStore(inner, 1<<20)
	if _, _, err := store.Get(key); !errors.Is(err, injected) {
		t.Errorf("unexpected error, wanted %v, got %v", injected, err)
	}
	if err := store.Put(key, []byte{1}); !errors.Is(err, injected) {
		t.Errorf("unexpected error, wanted %v, got %v", injected, err)
	}
}

func TestCache_FailedBatchesDoNotUpdateCache(t *testing.T) {
	ctrl := gomock.NewController(t)
	inner := kv.NewMockStore(ctrl)
	innerBatch := kv.NewMockBatch(ctrl)
	key := common.Hash{1}
	injected := errors.New("injected")

	inner.EXPECT().NewBatch().Return(innerBatch)
	innerBatch.EXPECT().Put(key, []byte{1})
	inner.EXPECT().Write(innerBatch).Return(injected)
	inner.EXPECT().Get(key).Return(nil, false, nil)

	store := NewStore(inner, 1<<20)
	batch := store.NewBatch()
	batch.Put(key, []byte{1})
	if err := store.Write(batch); !errors.Is(err, injected) {
		t.Fatalf("unexpected error, wanted %v, got %v", injected, err)
	}

	if _, found, err := store.Get(key); err != nil || found {
		t.Errorf("value of failed batch should not be cached, found %t, err %v", found, err)
	}
}

func TestCache_BatchUpdatesAreVisibleThroughCache(t *testing.T) {
	inner := memory.NewStore()
	store := NewStore(inner, 1<<20)

	if err := store.Put(common.Hash{1}, []byte{1}); err != nil {
		t.Fatalf("failed to put value: %v", err)
	}
	// warm up cache
	if _, _, err := store.Get(common.Hash{1}); err != nil {
		t.Fatalf("failed to get value: %v", err)
	}

	batch := store.NewBatch()
	batch.Delete(common.Hash{1})
	batch.Put(common.Hash{2}, []byte{2})
	if err := store.Write(batch); err != nil {
		t.Fatalf("failed to write batch: %v", err)
	}

	if _, found, _ := store.Get(common.Hash{1}); found {
		t.Errorf("deleted value should not be found")
	}
	if _, found, _ := inner.Get(common.Hash{2}); !found {
		t.Errorf("batch should have been forwarded to wrapped store")
	}
	value, found, err := store.Get(common.Hash{2})
	if err != nil || !found || len(value) != 1 || value[0] != 2 {
		t.Errorf("unexpected result, value %v, found %t, err %v", value, found, err)
	}
}

func TestCache_FlushAndCloseAreForwarded(t *testing.T) {
	ctrl := gomock.NewController(t)
	inner := kv.NewMockStore(ctrl)
	inner.EXPECT().Flush().Return(nil)
	inner.EXPECT().Close().Return(nil)

	store := NewStore(inner, 1<<20)
	if err := store.Flush(); err != nil {
		t.Errorf("failed to flush: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Errorf("failed to close: %v", err)
	}
}
