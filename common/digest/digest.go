// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package digest provides the cryptographic hash functions that may be used
// to address and authenticate trie nodes. All algorithms produce digests of
// common.HashSize bytes.
package digest

//go:generate mockgen -source digest.go -destination digest_mocks.go -package digest

import (
	"hash"
	"sync"

	"github.com/Fantom-foundation/monotree/common"
	"github.com/minio/sha256-simd"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/blake2s"
	"golang.org/x/crypto/sha3"
)

// Hasher computes fixed-length digests of byte sequences. Implementations
// must be deterministic and safe for concurrent use.
type Hasher interface {
	// Digest computes the hash of the given data.
	Digest(data []byte) common.Hash
	// Algorithm identifies the hash function implemented by this hasher.
	Algorithm() Algorithm
}

// Algorithm is a configuration token selecting a hash function.
type Algorithm struct {
	Name      string
	newHasher func() hash.Hash
}

var (
	// Keccak256 is the legacy Keccak variant used throughout Ethereum.
	Keccak256 = Algorithm{Name: "keccak256", newHasher: sha3.NewLegacyKeccak256}
	// Sha3_256 is the NIST standardized SHA3 variant with 256 bit outputs.
	Sha3_256 = Algorithm{Name: "sha3-256", newHasher: sha3.New256}
	// Sha256 is SHA2 with 256 bit outputs, using SIMD instructions if available.
	Sha256 = Algorithm{Name: "sha256", newHasher: sha256.New}
	// Blake2b256 is BLAKE2b configured for 256 bit outputs.
	Blake2b256 = Algorithm{Name: "blake2b-256", newHasher: newBlake2b256}
	// Blake2s256 is BLAKE2s with its native 256 bit outputs.
	Blake2s256 = Algorithm{Name: "blake2s-256", newHasher: newBlake2s256}
)

var allAlgorithms = []Algorithm{
	Keccak256, Sha3_256, Sha256, Blake2b256, Blake2s256,
}

// GetAllAlgorithms lists all supported hash algorithms.
func GetAllAlgorithms() []Algorithm {
	return append([]Algorithm(nil), allAlgorithms...)
}

// GetAlgorithmByName attempts to locate an algorithm with the given name.
func GetAlgorithmByName(name string) (Algorithm, bool) {
	for _, algorithm := range allAlgorithms {
		if algorithm.Name == name {
			return algorithm, true
		}
	}
	return Algorithm{}, false
}

func (a Algorithm) String() string {
	return a.Name
}

// NewHasher creates a Hasher implementing this algorithm.
func (a Algorithm) NewHasher() Hasher {
	return &pooledHasher{
		algorithm: a,
		pool:      sync.Pool{New: func() any { return a.newHasher() }},
	}
}

// pooledHasher recycles hash states between Digest calls since creating
// fresh states is a dominant cost for the small inputs of trie nodes.
type pooledHasher struct {
	algorithm Algorithm
	pool      sync.Pool
}

func (h *pooledHasher) Digest(data []byte) common.Hash {
	state := h.pool.Get().(hash.Hash)
	state.Reset()
	state.Write(data)
	var res common.Hash
	state.Sum(res[:0])
	h.pool.Put(state)
	return res
}

func (h *pooledHasher) Algorithm() Algorithm {
	return h.algorithm
}

func newBlake2b256() hash.Hash {
	res, err := blake2b.New256(nil)
	if err != nil {
		panic(err) // only fails for oversized keys
	}
	return res
}

func newBlake2s256() hash.Hash {
	res, err := blake2s.New256(nil)
	if err != nil {
		panic(err) // only fails for oversized keys
	}
	return res
}
