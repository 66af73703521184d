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
	"fmt"
	"io"
	"strings"

	"github.com/Fantom-foundation/monotree/common"
)

// NodeInfo summarizes the position of a node visited by Visit.
type NodeInfo struct {
	Hash  common.Hash
	Depth int
	// Position is the branching bit for branch nodes, and the bit the leaf
	// is located after for leaf nodes. The root is located after bit -1.
	Position int
	// Direction is the bit followed from the parent, or -1 for the root.
	Direction int
}

// Visit calls the given function for all nodes of the trie with the given
// root in pre-order, left children before right children. Visiting stops
// with the first error reported by the function.
func (t *Trie) Visit(root *common.Hash, visitor func(Node, NodeInfo) error) error {
	if root == nil {
		return nil
	}
	return t.visit(NodeInfo{Hash: *root, Position: -1, Direction: -1}, visitor)
}

func (t *Trie) visit(info NodeInfo, visitor func(Node, NodeInfo) error) error {
	node, err := t.getNode(info.Hash)
	if err != nil {
		return err
	}
	branch, isBranch := node.(*BranchNode)
	if isBranch {
		info.Position = branch.branchingBit(info.Position)
	}
	if err := visitor(node, info); err != nil {
		return err
	}
	if !isBranch {
		return nil
	}
	for direction, child := range []*common.Hash{branch.Left, branch.Right} {
		if child == nil {
			continue
		}
		err := t.visit(NodeInfo{
			Hash:      *child,
			Depth:     info.Depth + 1,
			Position:  info.Position,
			Direction: direction,
		}, visitor)
		if err != nil {
			return err
		}
	}
	return nil
}

// NodeStatistics summarizes the shape of a trie.
type NodeStatistics struct {
	Leaves   int
	Branches int
	MaxDepth int
}

func (s NodeStatistics) String() string {
	return fmt.Sprintf("leaves: %d, branches: %d, max depth: %d", s.Leaves, s.Branches, s.MaxDepth)
}

// CountNodes collects statistics on the nodes of the trie with the given root.
func (t *Trie) CountNodes(root *common.Hash) (NodeStatistics, error) {
	res := NodeStatistics{}
	err := t.Visit(root, func(node Node, info NodeInfo) error {
		switch node.(type) {
		case *LeafNode:
			res.Leaves++
		case *BranchNode:
			res.Branches++
		}
		res.MaxDepth = max(res.MaxDepth, info.Depth)
		return nil
	})
	return res, err
}

// Dump prints the trie with the given root in a human readable form.
func (t *Trie) Dump(root *common.Hash, out io.Writer) error {
	if root == nil {
		_, err := fmt.Fprintln(out, "-empty-")
		return err
	}
	return t.Visit(root, func(node Node, info NodeInfo) error {
		prefix := ""
		if info.Direction >= 0 {
			prefix = fmt.Sprintf("%d: ", info.Direction)
		}
		var err error
		switch n := node.(type) {
		case *BranchNode:
			_, err = fmt.Fprintf(out, "%s%sBranch %v - skip %d, bit %d\n", strings.Repeat("  ", info.Depth), prefix, info.Hash.ShortString(), n.Skip, info.Position)
		case *LeafNode:
			_, err = fmt.Fprintf(out, "%s%sLeaf %v - key %x, value %v\n", strings.Repeat("  ", info.Depth), prefix, info.Hash.ShortString(), n.Key, n.Value)
		}
		return err
	})
}

// Check verifies the structural invariants of the trie with the given root:
// node digests match their content, leaf keys have the configured length and
// are located where their bits lead, and every branch node has two children
// and branches on the first bit its subtrees differ in. If all checks pass,
// the trie is the canonical trie for its set of keys.
func (t *Trie) Check(root *common.Hash) error {
	if root == nil {
		return nil
	}
	_, err := t.check(*root, -1)
	return err
}

// check verifies the subtree with the given root, located below a branch on
// the given bit. It returns an arbitrary key of the subtree.
func (t *Trie) check(hash common.Hash, parent int) ([]byte, error) {
	node, err := t.getNode(hash)
	if err != nil {
		return nil, err
	}
	if got := t.hasher.Digest(node.Encode()); got != hash {
		return nil, fmt.Errorf("%w: node %v has digest %v", ErrCorruptNode, hash, got)
	}
	switch n := node.(type) {
	case *LeafNode:
		if len(n.Key) != t.config.KeyLength {
			return nil, fmt.Errorf("%w: leaf %v has key of length %d, wanted %d", ErrCorruptNode, hash, len(n.Key), t.config.KeyLength)
		}
		return n.Key, nil
	case *BranchNode:
		position := n.branchingBit(parent)
		if position >= t.config.keyBits() {
			return nil, fmt.Errorf("%w: branch %v is branching on bit %d of %d bit keys", ErrCorruptNode, hash, position, t.config.keyBits())
		}
		if n.Left == nil || n.Right == nil {
			return nil, fmt.Errorf("%w: branch %v has %d children", ErrCorruptNode, hash, n.numChildren())
		}
		left, err := t.check(*n.Left, position)
		if err != nil {
			return nil, err
		}
		right, err := t.check(*n.Right, position)
		if err != nil {
			return nil, err
		}
		if got := firstDifferingBit(left, right); got != position {
			return nil, fmt.Errorf("%w: branch %v is branching on bit %d, but subtrees differ at bit %d", ErrCorruptNode, hash, position, got)
		}
		if getBit(left, position) != 0 {
			return nil, fmt.Errorf("%w: children of branch %v are swapped", ErrCorruptNode, hash)
		}
		return left, nil
	}
	return nil, fmt.Errorf("%w: unsupported node type %T", ErrCorruptNode, node)
}
