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
	"strings"
	"testing"

	"github.com/Fantom-foundation/monotree/backend/kv/memory"
	"github.com/Fantom-foundation/monotree/common"
)

func storeNode(t *testing.T, trie *Trie, store *memory.Store, node Node) common.Hash {
	t.Helper()
	encoded := EncodeNode(node)
	hash := trie.Hasher().Digest(encoded)
	if err := store.Put(hash, encoded); err != nil {
		t.Fatalf("failed to store node: %v", err)
	}
	return hash
}

func TestDiagnostics_DumpPrintsAllNodes(t *testing.T) {
	trie, _ := newTestTrie(t, 1)
	entries := map[string]common.Hash{"\x00": {1}, "\x01": {2}, "\xFF": {3}}
	root := insertAll(t, trie, nil, entries, sortedKeys(entries))

	var out bytes.Buffer
	if err := trie.Dump(root, &out); err != nil {
		t.Fatalf("failed to dump trie: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 5 {
		t.Fatalf("unexpected number of lines, wanted 5, got %d:\n%s", len(lines), out.String())
	}
	prefixes := []string{
		"Branch ",
		"  0: Branch ",
		"    0: Leaf ",
		"    1: Leaf ",
		"  1: Leaf ",
	}
	for i, prefix := range prefixes {
		if !strings.HasPrefix(lines[i], prefix) {
			t.Errorf("line %d should start with %q, got %q", i, prefix, lines[i])
		}
	}
	if !strings.Contains(lines[1], "skip 6, bit 7") {
		t.Errorf("unexpected branch description: %s", lines[1])
	}
	if !strings.Contains(lines[4], "key ff") {
		t.Errorf("unexpected leaf description: %s", lines[4])
	}
}

func TestDiagnostics_DumpOfEmptyTrie(t *testing.T) {
	trie, _ := newTestTrie(t, 1)
	var out bytes.Buffer
	if err := trie.Dump(nil, &out); err != nil {
		t.Fatalf("failed to dump trie: %v", err)
	}
	if got := out.String(); got != "-empty-\n" {
		t.Errorf("unexpected output: %q", got)
	}
}

func TestDiagnostics_VisitStopsAtFirstError(t *testing.T) {
	trie, _ := newTestTrie(t, 32)
	entries := makeEntries(32, 10)
	root := insertAll(t, trie, nil, entries, sortedKeys(entries))

	injected := errors.New("injected")
	visited := 0
	err := trie.Visit(root, func(Node, NodeInfo) error {
		visited++
		if visited == 3 {
			return injected
		}
		return nil
	})
	if !errors.Is(err, injected) {
		t.Errorf("unexpected error, got %v", err)
	}
	if visited != 3 {
		t.Errorf("visiting should stop at first error, visited %d nodes", visited)
	}
}

func TestDiagnostics_CountNodesOfEmptyTrie(t *testing.T) {
	trie, _ := newTestTrie(t, 32)
	stats, err := trie.CountNodes(nil)
	if err != nil || stats != (NodeStatistics{}) {
		t.Errorf("unexpected statistics, got %v, err %v", stats, err)
	}
}

func TestDiagnostics_CheckDetectsViolations(t *testing.T) {
	tests := map[string]func(*testing.T, *Trie, *memory.Store) common.Hash{
		"branch with single child": func(t *testing.T, trie *Trie, store *memory.Store) common.Hash {
			leaf := storeNode(t, trie, store, &LeafNode{Key: []byte{0x00}})
			return storeNode(t, trie, store, &BranchNode{Left: &leaf})
		},
		"swapped children": func(t *testing.T, trie *Trie, store *memory.Store) common.Hash {
			left := storeNode(t, trie, store, &LeafNode{Key: []byte{0x00}})
			right := storeNode(t, trie, store, &LeafNode{Key: []byte{0x80}})
			return storeNode(t, trie, store, &BranchNode{Left: &right, Right: &left})
		},
		"wrong skip": func(t *testing.T, trie *Trie, store *memory.Store) common.Hash {
			left := storeNode(t, trie, store, &LeafNode{Key: []byte{0x00}})
			right := storeNode(t, trie, store, &LeafNode{Key: []byte{0x01}})
			return storeNode(t, trie, store, &BranchNode{Skip: 3, Left: &left, Right: &right})
		},
		"skip beyond key": func(t *testing.T, trie *Trie, store *memory.Store) common.Hash {
			left := storeNode(t, trie, store, &LeafNode{Key: []byte{0x00}})
			right := storeNode(t, trie, store, &LeafNode{Key: []byte{0x01}})
			return storeNode(t, trie, store, &BranchNode{Skip: 8, Left: &left, Right: &right})
		},
		"leaf with wrong key length": func(t *testing.T, trie *Trie, store *memory.Store) common.Hash {
			return storeNode(t, trie, store, &LeafNode{Key: []byte{0x00, 0x01}})
		},
		"wrong digest": func(t *testing.T, trie *Trie, store *memory.Store) common.Hash {
			hash := common.Hash{1, 2, 3}
			if err := store.Put(hash, EncodeNode(&LeafNode{Key: []byte{0x00}})); err != nil {
				t.Fatalf("failed to store node: %v", err)
			}
			return hash
		},
		"missing child": func(t *testing.T, trie *Trie, store *memory.Store) common.Hash {
			left := storeNode(t, trie, store, &LeafNode{Key: []byte{0x00}})
			right := common.Hash{1}
			return storeNode(t, trie, store, &BranchNode{Left: &left, Right: &right})
		},
	}
	for name, setup := range tests {
		t.Run(name, func(t *testing.T) {
			trie, store := newTestTrie(t, 1)
			root := setup(t, trie, store)
			if err := trie.Check(&root); !errors.Is(err, ErrCorruptNode) {
				t.Errorf("expected corrupt node error, got %v", err)
			}
		})
	}
}

func TestDiagnostics_CheckAcceptsManuallyBuiltCanonicalTrie(t *testing.T) {
	trie, store := newTestTrie(t, 1)
	left := storeNode(t, trie, store, &LeafNode{Key: []byte{0x00}, Value: common.Hash{1}})
	right := storeNode(t, trie, store, &LeafNode{Key: []byte{0x01}, Value: common.Hash{2}})
	root := storeNode(t, trie, store, &BranchNode{Skip: 7, Left: &left, Right: &right})
	if err := trie.Check(&root); err != nil {
		t.Errorf("trie should be consistent: %v", err)
	}
}
