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
	"bytes"
	"fmt"

	"github.com/Fantom-foundation/monotree/common"
)

// EmptyHash is the digest of an empty subtree. It is never stored but used
// in place of absent children when encoding branch nodes.
var EmptyHash = common.Hash{}

// Node is the common interface of all nodes in the trie. Nodes are immutable
// once created and identified by the digest of their encoding.
type Node interface {
	// Encode produces the canonical binary representation of this node.
	Encode() []byte
	String() string
}

// LeafNode holds a single key/value pair. Leaves retain their full key, thus
// the same leaf may be placed at any depth of the trie.
type LeafNode struct {
	Key   []byte
	Value common.Hash
}

func newLeafNode(key []byte, value common.Hash) *LeafNode {
	return &LeafNode{Key: bytes.Clone(key), Value: value}
}

func (n *LeafNode) Encode() []byte {
	return encodeLeaf(n)
}

func (n *LeafNode) String() string {
	return fmt.Sprintf("Leaf{key: %x, value: %v}", n.Key, n.Value)
}

// BranchNode splits the key space of its subtree into the keys with a 0 and
// the keys with a 1 at its branching bit. Skip is the number of key bits
// between the parent's branching bit and the branching bit of this node,
// shared by all keys in the subtree. Absent children are nil.
type BranchNode struct {
	Skip  uint16
	Left  *common.Hash
	Right *common.Hash
}

// branchingBit computes the position of the bit this node is branching on,
// given the position of its parent's branching bit. For the root node, the
// parent position is -1.
func (n *BranchNode) branchingBit(parent int) int {
	return parent + 1 + int(n.Skip)
}

// getChild returns the child in the given direction, where 0 is left and 1
// is right.
func (n *BranchNode) getChild(direction byte) *common.Hash {
	if direction == 0 {
		return n.Left
	}
	return n.Right
}

// withChild creates a copy of this node with the child in the given
// direction replaced.
func (n *BranchNode) withChild(direction byte, child *common.Hash) *BranchNode {
	res := *n
	if direction == 0 {
		res.Left = cloneHash(child)
	} else {
		res.Right = cloneHash(child)
	}
	return &res
}

func (n *BranchNode) numChildren() int {
	res := 0
	if n.Left != nil {
		res++
	}
	if n.Right != nil {
		res++
	}
	return res
}

func (n *BranchNode) Encode() []byte {
	return encodeBranch(n)
}

func (n *BranchNode) String() string {
	return fmt.Sprintf("Branch{skip: %d, left: %s, right: %s}", n.Skip, formatChild(n.Left), formatChild(n.Right))
}

func formatChild(hash *common.Hash) string {
	if hash == nil {
		return "-"
	}
	return hash.ShortString()
}

func cloneHash(hash *common.Hash) *common.Hash {
	if hash == nil {
		return nil
	}
	res := *hash
	return &res
}
