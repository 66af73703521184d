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

import "github.com/Fantom-foundation/monotree/common"

const (
	// ErrKeyLengthMismatch is reported for keys not matching the configured
	// key length. The trie is not modified.
	ErrKeyLengthMismatch = common.ConstError("key length does not match configured key length")

	// ErrCorruptNode is reported if the store holds data that can not be
	// decoded into a node, or if nodes do not form a valid trie.
	ErrCorruptNode = common.ConstError("corrupt node")

	// ErrStoreFailure is joined with errors reported by the underlying store.
	ErrStoreFailure = common.ConstError("store failure")

	// ErrInvalidProof is reported when decoding malformed proofs. Verifying
	// proofs reports failures as a boolean verdict instead.
	ErrInvalidProof = common.ConstError("invalid proof")
)
