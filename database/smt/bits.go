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

import "math/bits"

// getBit returns the bit of the key at the given position. Bits are numbered
// starting with the most significant bit of the first byte.
func getBit(key []byte, pos int) byte {
	return (key[pos/8] >> (7 - pos%8)) & 1
}

// firstDifferingBit returns the position of the first bit in which the given
// keys of equal length differ, or -1 if they are equal.
func firstDifferingBit(a, b []byte) int {
	for i := range a {
		if diff := a[i] ^ b[i]; diff != 0 {
			return i*8 + bits.LeadingZeros8(diff)
		}
	}
	return -1
}
