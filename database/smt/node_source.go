// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package smt

import (
	"errors"
	"fmt"

	"github.com/Fantom-foundation/monotree/common"
)

// nodeSource provides access to nodes by their digest.
type nodeSource interface {
	getNode(hash common.Hash) (Node, error)
}

// getNode loads the node with the given digest, consulting the node cache
// before the store. Nodes are immutable, so cached nodes are never stale.
func (t *Trie) getNode(hash common.Hash) (Node, error) {
	if t.cache != nil {
		if node, found := t.cache.Get(hash); found {
			return node, nil
		}
	}
	data, found, err := t.store.Get(hash)
	if err != nil {
		return nil, errors.Join(ErrStoreFailure, fmt.Errorf("failed to load node %v: %w", hash, err))
	}
	if !found {
		return nil, fmt.Errorf("%w: node %v not found in store", ErrCorruptNode, hash)
	}
	node, err := DecodeNode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode node %v: %w", hash, err)
	}
	if t.cache != nil {
		t.cache.Set(hash, node)
	}
	return node, nil
}

type pendingNode struct {
	node    Node
	encoded []byte
}

// update collects the nodes created by a mutation of the trie. Nodes are
// kept in memory until the update is committed. Before that, pending nodes
// shadow the nodes in the store.
type update struct {
	trie    *Trie
	pending map[common.Hash]pendingNode
}

func (t *Trie) newUpdate() *update {
	return &update{
		trie:    t,
		pending: map[common.Hash]pendingNode{},
	}
}

func (u *update) getNode(hash common.Hash) (Node, error) {
	if pending, found := u.pending[hash]; found {
		return pending.node, nil
	}
	return u.trie.getNode(hash)
}

// addNode registers a new node and returns its digest.
func (u *update) addNode(node Node) common.Hash {
	encoded := node.Encode()
	hash := u.trie.hasher.Digest(encoded)
	u.pending[hash] = pendingNode{node: node, encoded: encoded}
	return hash
}

// commit writes all pending nodes reachable from the given root to the store
// using a single batch. Pending nodes not reachable from the root have been
// replaced by subsequent changes and are dropped. On success, the number of
// written nodes is returned.
func (u *update) commit(root *common.Hash) (int, error) {
	if root == nil || len(u.pending) == 0 {
		return 0, nil
	}
	batch := u.trie.store.NewBatch()
	written := make([]pendingNode, 0, len(u.pending))
	hashes := make([]common.Hash, 0, len(u.pending))
	stack := []common.Hash{*root}
	for len(stack) > 0 {
		hash := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		pending, found := u.pending[hash]
		if !found {
			continue // already in the store, and so is its subtree
		}
		delete(u.pending, hash)
		batch.Put(hash, pending.encoded)
		written = append(written, pending)
		hashes = append(hashes, hash)
		if branch, ok := pending.node.(*BranchNode); ok {
			if branch.Left != nil {
				stack = append(stack, *branch.Left)
			}
			if branch.Right != nil {
				stack = append(stack, *branch.Right)
			}
		}
	}
	if batch.Len() == 0 {
		return 0, nil
	}
	if err := u.trie.store.Write(batch); err != nil {
		return 0, errors.Join(ErrStoreFailure, fmt.Errorf("failed to write %d nodes: %w", len(written), err))
	}
	if u.trie.cache != nil {
		for i, pending := range written {
			u.trie.cache.Set(hashes[i], pending.node)
		}
	}
	return len(written), nil
}
