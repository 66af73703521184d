// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package smt implements an authenticated key/value index based on a path
// compressed sparse Merkle trie.
//
// Keys are fixed length byte strings, interpreted as sequences of bits with
// the most significant bit first. Starting at the root, a 0 bit leads to the
// left child of a branch node, a 1 bit to the right child. Chains of branch
// nodes with a single child are not materialized; instead, each branch node
// records the number of bits skipped since its parent's branching bit. Thus,
// the trie has exactly one leaf node per key and one branch node less than
// leaves, and its shape depends only on the set of keys it contains.
//
// Nodes are identified by the digest of their encoding and stored in a
// kv.Store. Since nodes are never modified, every mutation creates a new
// root digest while all previous roots remain accessible. For each key, a
// proof of its presence or absence can be created, which can be verified
// against a root digest without access to the store.
package smt
