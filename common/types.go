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

import (
	"encoding/hex"
	"fmt"
)

// HashSize is the number of bytes of a digest produced by any of the
// supported hash algorithms.
const HashSize = 32

// Hash is a digest of some content. It is used as the identity of trie nodes,
// as the key under which they are persisted, and for values stored in tries.
type Hash [HashSize]byte

// HashFromBytes converts the given slice into a hash. The slice must have
// exactly HashSize bytes.
func HashFromBytes(data []byte) (Hash, error) {
	var res Hash
	if len(data) != HashSize {
		return res, fmt.Errorf("invalid hash length, wanted %d, got %d", HashSize, len(data))
	}
	copy(res[:], data)
	return res, nil
}

// IsZero is true if all bytes of the hash are zero.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

func (h Hash) String() string {
	return fmt.Sprintf("0x%s", hex.EncodeToString(h[:]))
}

// ShortString returns an abbreviated form of the hash for logging and
// debugging outputs.
func (h Hash) ShortString() string {
	return fmt.Sprintf("0x%s..", hex.EncodeToString(h[:4]))
}

// ConstError is a error type that can be used to define immutable
// error constants.
type ConstError string

func (e ConstError) Error() string {
	return string(e)
}

// HashPtrEqual compares two optional hashes. Two absent hashes are equal.
func HashPtrEqual(a, b *Hash) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
