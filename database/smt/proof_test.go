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
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/Fantom-foundation/monotree/common"
	"github.com/Fantom-foundation/monotree/common/digest"
	"go.uber.org/mock/gomock"
)

func TestProof_PresentKeysCanBeProven(t *testing.T) {
	for _, keyLength := range []int{1, 32} {
		t.Run(fmt.Sprintf("keyLength=%d", keyLength), func(t *testing.T) {
			trie, _ := newTestTrie(t, keyLength)
			entries := makeEntries(keyLength, 100)
			root := insertAll(t, trie, nil, entries, sortedKeys(entries))

			for key, value := range entries {
				proof, err := trie.Prove(root, []byte(key))
				if err != nil {
					t.Fatalf("failed to create proof: %v", err)
				}
				if !trie.Verify(proof, root, []byte(key), &value) {
					t.Errorf("proof for key %x should be valid", key)
				}
				other := common.Hash{0x12, 0x34}
				if trie.Verify(proof, root, []byte(key), &other) {
					t.Errorf("proof for key %x should not be valid for a different value", key)
				}
				if trie.Verify(proof, root, []byte(key), nil) {
					t.Errorf("proof for present key %x should not prove absence", key)
				}
			}
		})
	}
}

func TestProof_AbsentKeysCanBeProven(t *testing.T) {
	trie, _ := newTestTrie(t, 32)
	entries := makeEntries(32, 100)
	root := insertAll(t, trie, nil, entries, sortedKeys(entries))

	for i := 100; i < 200; i++ {
		key := makeKey(32, i)
		proof, err := trie.Prove(root, key)
		if err != nil {
			t.Fatalf("failed to create proof: %v", err)
		}
		if !trie.Verify(proof, root, key, nil) {
			t.Errorf("absence proof for key %x should be valid", key)
		}
		value := makeValue(i)
		if trie.Verify(proof, root, key, &value) {
			t.Errorf("absence proof for key %x should not prove presence", key)
		}
		if proof.Leaf == nil {
			t.Errorf("absence proofs in non-empty tries should end in a leaf")
		}
	}
}

func TestProof_AbsenceCanBeProvenInEmptyTrie(t *testing.T) {
	trie, _ := newTestTrie(t, 32)
	key := makeKey(32, 1)
	proof, err := trie.Prove(nil, key)
	if err != nil {
		t.Fatalf("failed to create proof: %v", err)
	}
	if len(proof.Steps) != 0 || proof.Leaf != nil {
		t.Errorf("proof for empty trie should be empty, got %v", proof)
	}
	if !trie.Verify(proof, nil, key, nil) {
		t.Errorf("absence in empty trie should be provable")
	}
	value := common.Hash{1}
	if trie.Verify(proof, nil, key, &value) {
		t.Errorf("presence in empty trie should not be provable")
	}
	root := common.Hash{1}
	if trie.Verify(proof, &root, key, nil) {
		t.Errorf("empty proof should not be valid for non-empty trie")
	}
}

func TestProof_ProofsAreBoundToTheirRoot(t *testing.T) {
	trie, _ := newTestTrie(t, 32)
	entries := makeEntries(32, 20)
	root := insertAll(t, trie, nil, entries, sortedKeys(entries))
	key := makeKey(32, 5)
	value := makeValue(5)

	proof, err := trie.Prove(root, key)
	if err != nil {
		t.Fatalf("failed to create proof: %v", err)
	}
	modified, err := trie.Insert(root, makeKey(32, 100), makeValue(100))
	if err != nil {
		t.Fatalf("failed to insert key: %v", err)
	}
	if trie.Verify(proof, &modified, key, &value) {
		t.Errorf("proof should not be valid for a different root")
	}
	if trie.Verify(proof, nil, key, &value) {
		t.Errorf("proof should not be valid for the empty trie")
	}
}

func TestProof_ProofsAreBoundToTheirKey(t *testing.T) {
	trie, _ := newTestTrie(t, 32)
	entries := makeEntries(32, 20)
	root := insertAll(t, trie, nil, entries, sortedKeys(entries))

	proof, err := trie.Prove(root, makeKey(32, 5))
	if err != nil {
		t.Fatalf("failed to create proof: %v", err)
	}
	for i := 0; i < 20; i++ {
		if i == 5 {
			continue
		}
		value := makeValue(i)
		if trie.Verify(proof, root, makeKey(32, i), &value) {
			t.Errorf("proof for key 5 should not prove presence of key %d", i)
		}
		if trie.Verify(proof, root, makeKey(32, i), nil) {
			t.Errorf("proof for key 5 should not prove absence of present key %d", i)
		}
	}
}

func TestProof_ManipulatedProofsAreRejected(t *testing.T) {
	trie, _ := newTestTrie(t, 32)
	entries := makeEntries(32, 50)
	root := insertAll(t, trie, nil, entries, sortedKeys(entries))
	key := makeKey(32, 7)
	value := makeValue(7)

	proof, err := trie.Prove(root, key)
	if err != nil {
		t.Fatalf("failed to create proof: %v", err)
	}
	if len(proof.Steps) < 2 {
		t.Fatalf("proof is too short for this test: %v", proof)
	}

	clone := func() Proof {
		var res Proof
		data, err := proof.MarshalBinary()
		if err != nil {
			t.Fatalf("failed to encode proof: %v", err)
		}
		if err := res.UnmarshalBinary(data); err != nil {
			t.Fatalf("failed to decode proof: %v", err)
		}
		return res
	}

	manipulations := map[string]func(*Proof){
		"modified sibling": func(p *Proof) {
			p.Steps[0].Sibling[0]++
		},
		"removed sibling": func(p *Proof) {
			p.Steps[len(p.Steps)-1].Sibling = nil
		},
		"increased skip": func(p *Proof) {
			p.Steps[0].Skip++
		},
		"skip beyond key": func(p *Proof) {
			p.Steps[len(p.Steps)-1].Skip = 0xFFFF
		},
		"dropped first step": func(p *Proof) {
			p.Steps = p.Steps[1:]
		},
		"dropped last step": func(p *Proof) {
			p.Steps = p.Steps[:len(p.Steps)-1]
		},
		"additional step": func(p *Proof) {
			p.Steps = append(p.Steps, ProofStep{Sibling: &common.Hash{1}})
		},
		"swapped steps": func(p *Proof) {
			p.Steps[0], p.Steps[1] = p.Steps[1], p.Steps[0]
		},
		"modified leaf value": func(p *Proof) {
			p.Leaf.Value[0]++
		},
		"modified leaf key": func(p *Proof) {
			p.Leaf.Key[31]++
		},
		"shortened leaf key": func(p *Proof) {
			p.Leaf.Key = p.Leaf.Key[:31]
		},
		"missing leaf": func(p *Proof) {
			p.Leaf = nil
		},
	}
	for name, manipulate := range manipulations {
		t.Run(name, func(t *testing.T) {
			manipulated := clone()
			manipulate(&manipulated)
			if trie.Verify(manipulated, root, key, &value) {
				t.Errorf("manipulated proof should be rejected")
			}
		})
	}

	if !trie.Verify(clone(), root, key, &value) {
		t.Errorf("unmodified clone should be accepted")
	}
}

func TestProof_LeavesDisagreeingWithPathAreRejected(t *testing.T) {
	trie, _ := newTestTrie(t, 1)
	entries := map[string]common.Hash{"\x00": {1}, "\x80": {2}}
	root := insertAll(t, trie, nil, entries, sortedKeys(entries))

	// a proof for 0x00 claimed to be a proof for 0x01 routing to the right
	proof, err := trie.Prove(root, []byte{0x00})
	if err != nil {
		t.Fatalf("failed to create proof: %v", err)
	}
	if trie.Verify(proof, root, []byte{0x80}, nil) {
		t.Errorf("leaf on the wrong side of the branch should not prove absence")
	}
	if !trie.Verify(proof, root, []byte{0x01}, nil) {
		t.Errorf("proof should show absence of keys sharing the path")
	}
}

func TestProof_BranchesWithoutChildrenAreRejected(t *testing.T) {
	hasher := digest.Sha256.NewHasher()
	branch := hasher.Digest(EncodeNode(&BranchNode{}))
	proof := Proof{Steps: []ProofStep{{}}}
	if VerifyProof(hasher, proof, &branch, []byte{0}, nil) {
		t.Errorf("proof with empty branch should be rejected")
	}
}

func TestProof_InvalidKeysAreRejected(t *testing.T) {
	hasher := digest.Sha256.NewHasher()
	if VerifyProof(hasher, Proof{}, nil, nil, nil) {
		t.Errorf("empty key should be rejected")
	}
	if VerifyProof(hasher, Proof{}, nil, make([]byte, maxKeyLength+1), nil) {
		t.Errorf("too long key should be rejected")
	}
}

func TestProof_VerificationOnlyUsesHasher(t *testing.T) {
	trie, _ := newTestTrie(t, 32)
	entries := makeEntries(32, 20)
	root := insertAll(t, trie, nil, entries, sortedKeys(entries))
	key := makeKey(32, 3)
	value := makeValue(3)
	proof, err := trie.Prove(root, key)
	if err != nil {
		t.Fatalf("failed to create proof: %v", err)
	}

	ctrl := gomock.NewController(t)
	hasher := digest.NewMockHasher(ctrl)
	actual := trie.Hasher()
	hasher.EXPECT().Digest(gomock.Any()).DoAndReturn(actual.Digest).Times(len(proof.Steps) + 1)
	if !VerifyProof(hasher, proof, root, key, &value) {
		t.Errorf("proof should be valid")
	}
}

func TestProof_SerializedProofsCanBeRestored(t *testing.T) {
	trie, _ := newTestTrie(t, 32)
	entries := makeEntries(32, 50)
	root := insertAll(t, trie, nil, entries, sortedKeys(entries))

	proofs := []Proof{{}}
	for i := 0; i < 100; i++ {
		proof, err := trie.Prove(root, makeKey(32, i))
		if err != nil {
			t.Fatalf("failed to create proof: %v", err)
		}
		proofs = append(proofs, proof)
	}
	sibling := common.Hash{1}
	proofs = append(proofs, Proof{Steps: []ProofStep{{Skip: 3}, {Skip: 1, Sibling: &sibling}}})

	for _, proof := range proofs {
		data, err := proof.MarshalBinary()
		if err != nil {
			t.Fatalf("failed to encode proof: %v", err)
		}
		var restored Proof
		if err := restored.UnmarshalBinary(data); err != nil {
			t.Fatalf("failed to decode proof: %v", err)
		}
		if !proof.Equal(restored) {
			t.Errorf("restored proof differs, wanted %v, got %v", proof, restored)
		}
	}
}

func TestProof_InvalidEncodingsAreDetected(t *testing.T) {
	sibling := common.Hash{1}
	proof := Proof{
		Steps: []ProofStep{{Skip: 3, Sibling: &sibling}},
		Leaf:  &LeafNode{Key: []byte{1, 2}, Value: common.Hash{2}},
	}
	valid, err := proof.MarshalBinary()
	if err != nil {
		t.Fatalf("failed to encode proof: %v", err)
	}

	invalidSiblingFlag := bytes.Clone(valid)
	invalidSiblingFlag[4] = 2
	invalidLeafFlag := bytes.Clone(valid)
	invalidLeafFlag[5+common.HashSize] = 2
	branchAsLeaf := append(bytes.Clone(valid[:6+common.HashSize]), EncodeNode(&BranchNode{Left: &sibling})...)

	tests := map[string][]byte{
		"empty":                {},
		"truncated count":      {0},
		"missing steps":        {0, 1},
		"truncated sibling":    valid[:10],
		"missing leaf flag":    valid[:5+common.HashSize],
		"truncated leaf":       valid[:len(valid)-1],
		"trailing bytes":       append(bytes.Clone(valid), 0),
		"trailing after none":  {0, 0, 0, 1},
		"invalid sibling flag": invalidSiblingFlag,
		"invalid leaf flag":    invalidLeafFlag,
		"branch instead leaf":  branchAsLeaf,
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			var restored Proof
			if err := restored.UnmarshalBinary(data); !errors.Is(err, ErrInvalidProof) {
				t.Errorf("expected invalid proof error, got %v", err)
			}
		})
	}
}

func TestProof_Equal(t *testing.T) {
	a := common.Hash{1}
	b := common.Hash{2}
	proofs := []Proof{
		{},
		{Steps: []ProofStep{{Skip: 1}}},
		{Steps: []ProofStep{{Skip: 1, Sibling: &a}}},
		{Steps: []ProofStep{{Skip: 1, Sibling: &b}}},
		{Steps: []ProofStep{{Skip: 2, Sibling: &b}}},
		{Leaf: &LeafNode{Key: []byte{1}}},
		{Leaf: &LeafNode{Key: []byte{1}, Value: a}},
		{Leaf: &LeafNode{Key: []byte{2}, Value: a}},
	}
	for i, p := range proofs {
		for j, q := range proofs {
			if want, got := i == j, p.Equal(q); want != got {
				t.Errorf("unexpected result for %v and %v, wanted %t, got %t", p, q, want, got)
			}
		}
	}
}

func TestProof_String(t *testing.T) {
	trie, _ := newTestTrie(t, 1)
	entries := map[string]common.Hash{"\x00": {1}, "\x80": {2}}
	root := insertAll(t, trie, nil, entries, sortedKeys(entries))
	proof, err := trie.Prove(root, []byte{0x00})
	if err != nil {
		t.Fatalf("failed to create proof: %v", err)
	}
	out := proof.String()
	if !strings.Contains(out, "0: skip 0, sibling 0x") || !strings.Contains(out, "Leaf{key: 00") {
		t.Errorf("unexpected print: %s", out)
	}
	if got := (Proof{}).String(); got != "no leaf\n" {
		t.Errorf("unexpected print of empty proof: %s", got)
	}
}

func FuzzProof_UnmarshalBinary(f *testing.F) {
	sibling := common.Hash{1}
	proof := Proof{
		Steps: []ProofStep{{Skip: 3, Sibling: &sibling}, {Skip: 0}},
		Leaf:  &LeafNode{Key: []byte{1, 2}, Value: common.Hash{2}},
	}
	data, err := proof.MarshalBinary()
	if err != nil {
		f.Fatalf("failed to encode proof: %v", err)
	}
	f.Add(data)
	f.Add([]byte{0, 0, 0})

	f.Fuzz(func(t *testing.T, data []byte) {
		var proof Proof
		if err := proof.UnmarshalBinary(data); err != nil {
			if !errors.Is(err, ErrInvalidProof) {
				t.Errorf("unexpected error type: %v", err)
			}
			return
		}
		encoded, err := proof.MarshalBinary()
		if err != nil {
			t.Fatalf("failed to encode decoded proof: %v", err)
		}
		if !bytes.Equal(data, encoded) {
			t.Errorf("encoding is not canonical, decoded %x, re-encoded as %x", data, encoded)
		}
	})
}
