// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package common

import "sync"

// LruCache is a fixed capacity key/value cache evicting the least recently
// used entry when full. All operations are thread safe.
type LruCache[K comparable, V any] struct {
	index    map[K]*entry[K, V]
	capacity int
	head     *entry[K, V] // most recently used
	tail     *entry[K, V] // least recently used
	mutex    sync.Mutex
	hits     uint64
	misses   uint64
}

// NewLruCache creates a cache retaining up to the given number of entries.
// A capacity below 1 is raised to 1.
func NewLruCache[K comparable, V any](capacity int) *LruCache[K, V] {
	if capacity < 1 {
		capacity = 1
	}
	return &LruCache[K, V]{
		index:    make(map[K]*entry[K, V], capacity),
		capacity: capacity,
	}
}

// Get returns the value cached for the key, if present, and marks the entry
// as used.
func (c *LruCache[K, V]) Get(key K) (V, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	item, exists := c.index[key]
	if !exists {
		c.misses++
		var res V
		return res, false
	}
	c.hits++
	c.moveToFront(item)
	return item.val, true
}

// Set associates the value with the key. If the cache is full, the least
// recently used entry is evicted and reported to the caller.
func (c *LruCache[K, V]) Set(key K, val V) (evictedKey K, evictedValue V, evicted bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if item, exists := c.index[key]; exists {
		item.val = val
		c.moveToFront(item)
		return
	}

	var item *entry[K, V]
	if len(c.index) >= c.capacity {
		item = c.tail
		c.unlink(item)
		delete(c.index, item.key)
		evictedKey, evictedValue, evicted = item.key, item.val, true
	} else {
		item = new(entry[K, V])
	}
	item.key = key
	item.val = val
	c.index[key] = item
	c.pushFront(item)
	return
}

// Remove drops the entry for the given key, returning the removed value.
func (c *LruCache[K, V]) Remove(key K) (V, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	item, exists := c.index[key]
	if !exists {
		var res V
		return res, false
	}
	c.unlink(item)
	delete(c.index, key)
	return item.val, true
}

// Len returns the number of cached entries.
func (c *LruCache[K, V]) Len() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.index)
}

// Clear drops all entries.
func (c *LruCache[K, V]) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.index = make(map[K]*entry[K, V], c.capacity)
	c.head = nil
	c.tail = nil
}

// Stats returns the number of hits and misses observed by Get.
func (c *LruCache[K, V]) Stats() (hits, misses uint64) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.hits, c.misses
}

func (c *LruCache[K, V]) moveToFront(item *entry[K, V]) {
	if item == c.head {
		return
	}
	c.unlink(item)
	c.pushFront(item)
}

func (c *LruCache[K, V]) pushFront(item *entry[K, V]) {
	item.prev = nil
	item.next = c.head
	if c.head != nil {
		c.head.prev = item
	}
	c.head = item
	if c.tail == nil {
		c.tail = item
	}
}

func (c *LruCache[K, V]) unlink(item *entry[K, V]) {
	if item.prev != nil {
		item.prev.next = item.next
	} else {
		c.head = item.next
	}
	if item.next != nil {
		item.next.prev = item.prev
	} else {
		c.tail = item.prev
	}
	item.prev = nil
	item.next = nil
}

// entry is a cache item wrapping a key, a value and references to its
// neighbours in the LRU list.
type entry[K comparable, V any] struct {
	key  K
	val  V
	prev *entry[K, V]
	next *entry[K, V]
}
