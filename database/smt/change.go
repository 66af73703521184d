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
	"slices"

	"github.com/Fantom-foundation/monotree/common"
)

// Change describes a single modification of a trie. A nil value removes the
// key from the trie.
type Change struct {
	Key   []byte
	Value *common.Hash
}

// Insertion creates a change associating the key with the value.
func Insertion(key []byte, value common.Hash) Change {
	return Change{Key: key, Value: &value}
}

// Removal creates a change removing the key.
func Removal(key []byte) Change {
	return Change{Key: key}
}

func (c Change) IsRemoval() bool {
	return c.Value == nil
}

// normalizeChanges sorts the changes by their key and drops all but the last
// change of each key. The input is not modified.
func normalizeChanges(changes []Change) []Change {
	res := slices.Clone(changes)
	slices.SortStableFunc(res, func(a, b Change) int {
		return bytes.Compare(a.Key, b.Key)
	})
	// keep the last change of each run of equal keys
	out := res[:0]
	for i := range res {
		if i+1 < len(res) && bytes.Equal(res[i].Key, res[i+1].Key) {
			continue
		}
		out = append(out, res[i])
	}
	return out
}
