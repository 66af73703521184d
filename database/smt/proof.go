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
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/Fantom-foundation/monotree/common"
	"github.com/Fantom-foundation/monotree/common/digest"
)

// Proof is a witness for the presence or absence of a key in a trie with a
// given root. It lists the branch nodes on the path from the root towards the
// key, each described by its skip and the digest of the child not followed.
// Steps are ordered from the root to the leaf.
//
// Leaf is the leaf reached at the end of the path. If it holds the proven
// key, the proof shows the presence of the key. If it holds a different key,
// the proof shows the absence of the key, since the key would have to be
// located in its place. A nil leaf proves absence by an empty subtree, which
// is only the case for the empty trie.
type Proof struct {
	Steps []ProofStep
	Leaf  *LeafNode
}

// ProofStep describes a branch node on the path of a proof.
type ProofStep struct {
	Skip    uint16
	Sibling *common.Hash
}

// Prove creates a proof for the presence or absence of the given key in the
// trie with the given root.
func (t *Trie) Prove(root *common.Hash, key []byte) (Proof, error) {
	if err := t.checkKey(key); err != nil {
		return Proof{}, err
	}
	if root == nil {
		return Proof{}, nil
	}
	path, err := descend(t, t.config.keyBits(), *root, key)
	if err != nil {
		return Proof{}, err
	}
	res := Proof{Steps: make([]ProofStep, 0, len(path.frames))}
	for _, f := range path.frames {
		res.Steps = append(res.Steps, ProofStep{
			Skip:    f.branch.Skip,
			Sibling: cloneHash(f.branch.getChild(1 - f.direction)),
		})
	}
	if path.leaf != nil {
		res.Leaf = newLeafNode(path.leaf.Key, path.leaf.Value)
	}
	return res, nil
}

// Verify checks the given proof using the hasher of this trie. See
// VerifyProof for details.
func (t *Trie) Verify(proof Proof, root *common.Hash, key []byte, value *common.Hash) bool {
	return VerifyProof(t.hasher, proof, root, key, value)
}

// VerifyProof checks that the proof shows the given key to be associated with
// the given value in the trie with the given root. A nil value claims the
// absence of the key, a nil root denotes the empty trie. The verification is
// a pure function of its inputs.
func VerifyProof(hasher digest.Hasher, proof Proof, root *common.Hash, key []byte, value *common.Hash) bool {
	if len(key) == 0 || len(key) > maxKeyLength {
		return false
	}

	// The skips of the steps determine the bits of the key tested on the path.
	keyBits := len(key) * 8
	positions := make([]int, len(proof.Steps))
	position := -1
	for i, step := range proof.Steps {
		position += 1 + int(step.Skip)
		if position >= keyBits {
			return false
		}
		positions[i] = position
	}

	var cur *common.Hash
	if leaf := proof.Leaf; leaf != nil {
		if len(leaf.Key) != len(key) {
			return false
		}
		for _, position := range positions {
			if getBit(leaf.Key, position) != getBit(key, position) {
				return false
			}
		}
		matches := bytes.Equal(leaf.Key, key)
		if value != nil && (!matches || leaf.Value != *value) {
			return false
		}
		if value == nil && matches {
			return false
		}
		hash := hasher.Digest(leaf.Encode())
		cur = &hash
	} else if value != nil {
		return false
	}

	for i := len(proof.Steps) - 1; i >= 0; i-- {
		step := proof.Steps[i]
		direction := getBit(key, positions[i])
		branch := (&BranchNode{Skip: step.Skip}).
			withChild(direction, cur).
			withChild(1-direction, step.Sibling)
		if branch.numChildren() == 0 {
			return false
		}
		hash := hasher.Digest(branch.Encode())
		cur = &hash
	}
	return common.HashPtrEqual(cur, root)
}

// Proofs are serialized as the number of steps (2 bytes, big endian) followed
// by the steps and the leaf. Each step is encoded as its skip (2 bytes, big
// endian), a presence flag and the sibling digest if present. The leaf is
// encoded as a presence flag followed by the leaf's node encoding.

func (p Proof) MarshalBinary() ([]byte, error) {
	if len(p.Steps) > 0xFFFF {
		return nil, fmt.Errorf("%w: too many steps, got %d", ErrInvalidProof, len(p.Steps))
	}
	res := binary.BigEndian.AppendUint16(nil, uint16(len(p.Steps)))
	for _, step := range p.Steps {
		res = binary.BigEndian.AppendUint16(res, step.Skip)
		if step.Sibling == nil {
			res = append(res, 0)
		} else {
			res = append(res, 1)
			res = append(res, step.Sibling[:]...)
		}
	}
	if p.Leaf == nil {
		return append(res, 0), nil
	}
	if len(p.Leaf.Key) > maxKeyLength {
		return nil, fmt.Errorf("%w: leaf key too long, got %d bytes", ErrInvalidProof, len(p.Leaf.Key))
	}
	res = append(res, 1)
	return append(res, p.Leaf.Encode()...), nil
}

func (p *Proof) UnmarshalBinary(data []byte) error {
	if len(data) < 2 {
		return fmt.Errorf("%w: missing step count", ErrInvalidProof)
	}
	numSteps := int(binary.BigEndian.Uint16(data))
	data = data[2:]
	steps := make([]ProofStep, 0, numSteps)
	for i := 0; i < numSteps; i++ {
		if len(data) < 3 {
			return fmt.Errorf("%w: truncated step %d", ErrInvalidProof, i)
		}
		step := ProofStep{Skip: binary.BigEndian.Uint16(data)}
		switch data[2] {
		case 0:
			data = data[3:]
		case 1:
			if len(data) < 3+common.HashSize {
				return fmt.Errorf("%w: truncated sibling of step %d", ErrInvalidProof, i)
			}
			var sibling common.Hash
			copy(sibling[:], data[3:])
			step.Sibling = &sibling
			data = data[3+common.HashSize:]
		default:
			return fmt.Errorf("%w: invalid sibling flag in step %d", ErrInvalidProof, i)
		}
		steps = append(steps, step)
	}
	if len(data) == 0 {
		return fmt.Errorf("%w: missing leaf flag", ErrInvalidProof)
	}
	var leaf *LeafNode
	switch data[0] {
	case 0:
		if len(data) != 1 {
			return fmt.Errorf("%w: %d trailing bytes", ErrInvalidProof, len(data)-1)
		}
	case 1:
		node, err := DecodeNode(data[1:])
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidProof, err)
		}
		res, ok := node.(*LeafNode)
		if !ok {
			return fmt.Errorf("%w: proof does not end in a leaf", ErrInvalidProof)
		}
		leaf = res
	default:
		return fmt.Errorf("%w: invalid leaf flag", ErrInvalidProof)
	}
	p.Steps = steps
	p.Leaf = leaf
	return nil
}

// Equal is true if both proofs contain the same steps and leaf.
func (p Proof) Equal(other Proof) bool {
	if len(p.Steps) != len(other.Steps) {
		return false
	}
	for i, step := range p.Steps {
		if step.Skip != other.Steps[i].Skip || !common.HashPtrEqual(step.Sibling, other.Steps[i].Sibling) {
			return false
		}
	}
	if p.Leaf == nil || other.Leaf == nil {
		return p.Leaf == nil && other.Leaf == nil
	}
	return bytes.Equal(p.Leaf.Key, other.Leaf.Key) && p.Leaf.Value == other.Leaf.Value
}

func (p Proof) String() string {
	var builder strings.Builder
	for i, step := range p.Steps {
		fmt.Fprintf(&builder, "%d: skip %d, sibling %s\n", i, step.Skip, formatChild(step.Sibling))
	}
	if p.Leaf == nil {
		builder.WriteString("no leaf\n")
	} else {
		fmt.Fprintf(&builder, "%v\n", p.Leaf)
	}
	return builder.String()
}
