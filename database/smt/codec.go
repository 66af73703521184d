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
	"encoding/binary"
	"fmt"

	"github.com/Fantom-foundation/monotree/common"
)

// Nodes are encoded as a tag byte followed by the variant specific payload:
//
//	Leaf:   0x01 | key length (1 byte) | key | value (32 bytes)
//	Branch: 0x02 | skip (2 bytes, big endian) | flags (1 byte) | left (32 bytes) | right (32 bytes)
//
// Bit 0 of the branch flags marks the presence of the left child, bit 1 the
// presence of the right child. Absent children are encoded as EmptyHash.
// The encoding is the input of the node's digest and must remain stable.
const (
	leafTag   = 0x01
	branchTag = 0x02

	leftPresent  = 0x01
	rightPresent = 0x02

	leafOverhead = 2 + common.HashSize
	branchSize   = 4 + 2*common.HashSize
)

func encodeLeaf(n *LeafNode) []byte {
	res := make([]byte, 0, leafOverhead+len(n.Key))
	res = append(res, leafTag, byte(len(n.Key)))
	res = append(res, n.Key...)
	return append(res, n.Value[:]...)
}

func encodeBranch(n *BranchNode) []byte {
	res := make([]byte, branchSize)
	res[0] = branchTag
	binary.BigEndian.PutUint16(res[1:3], n.Skip)
	if n.Left != nil {
		res[3] |= leftPresent
		copy(res[4:], n.Left[:])
	}
	if n.Right != nil {
		res[3] |= rightPresent
		copy(res[4+common.HashSize:], n.Right[:])
	}
	return res
}

// EncodeNode produces the canonical encoding of the given node.
func EncodeNode(node Node) []byte {
	return node.Encode()
}

// DecodeNode parses a node from its encoding. Any malformed input is
// reported as ErrCorruptNode.
func DecodeNode(data []byte) (Node, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrCorruptNode)
	}
	switch data[0] {
	case leafTag:
		return decodeLeaf(data)
	case branchTag:
		return decodeBranch(data)
	}
	return nil, fmt.Errorf("%w: unknown node tag 0x%02x", ErrCorruptNode, data[0])
}

func decodeLeaf(data []byte) (*LeafNode, error) {
	if len(data) < leafOverhead {
		return nil, fmt.Errorf("%w: leaf encoding too short, got %d bytes", ErrCorruptNode, len(data))
	}
	keyLength := int(data[1])
	if want := leafOverhead + keyLength; len(data) != want {
		return nil, fmt.Errorf("%w: invalid leaf encoding length, wanted %d, got %d", ErrCorruptNode, want, len(data))
	}
	res := &LeafNode{Key: make([]byte, keyLength)}
	copy(res.Key, data[2:2+keyLength])
	copy(res.Value[:], data[2+keyLength:])
	return res, nil
}

func decodeBranch(data []byte) (*BranchNode, error) {
	if len(data) != branchSize {
		return nil, fmt.Errorf("%w: invalid branch encoding length, wanted %d, got %d", ErrCorruptNode, branchSize, len(data))
	}
	flags := data[3]
	if flags&^(leftPresent|rightPresent) != 0 {
		return nil, fmt.Errorf("%w: invalid branch flags 0x%02x", ErrCorruptNode, flags)
	}
	left, err := decodeChild(data[4:4+common.HashSize], flags&leftPresent != 0)
	if err != nil {
		return nil, err
	}
	right, err := decodeChild(data[4+common.HashSize:], flags&rightPresent != 0)
	if err != nil {
		return nil, err
	}
	return &BranchNode{
		Skip:  binary.BigEndian.Uint16(data[1:3]),
		Left:  left,
		Right: right,
	}, nil
}

func decodeChild(data []byte, present bool) (*common.Hash, error) {
	var res common.Hash
	copy(res[:], data)
	if present {
		return &res, nil
	}
	if res != EmptyHash {
		return nil, fmt.Errorf("%w: absent child with non-empty digest %v", ErrCorruptNode, res)
	}
	return nil, nil
}
