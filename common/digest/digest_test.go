// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package digest

import (
	"encoding/hex"
	"fmt"
	"sync"
	"testing"

	"github.com/Fantom-foundation/monotree/common"
)

func TestAlgorithms_HashEmptyInput(t *testing.T) {
	tests := []struct {
		algorithm Algorithm
		want      string
	}{
		{Keccak256, "c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470"},
		{Sha3_256, "a7ffc6f8bf1ed76651c14756a061d662f580ff4de43b49fa82d80a4b80f8434a"},
		{Sha256, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
		{Blake2b256, "0e5751c026e543b2e8ab2eb06099daa1d1e5df47778f7787faab45cdf12fe3a8"},
		{Blake2s256, "69217a3079908094e11121d042354a7c1f55b6482ca1a51e1b250dfd1ed0eef9"},
	}

	for _, test := range tests {
		t.Run(test.algorithm.Name, func(t *testing.T) {
			hasher := test.algorithm.NewHasher()
			got := hasher.Digest(nil)
			if want := test.want; hex.EncodeToString(got[:]) != want {
				t.Errorf("unexpected hash, wanted %s, got %x", want, got)
			}
			if got := hasher.Algorithm().Name; got != test.algorithm.Name {
				t.Errorf("unexpected algorithm, wanted %s, got %s", test.algorithm.Name, got)
			}
		})
	}
}

func TestAlgorithms_HashesAreDeterministicAndDistinct(t *testing.T) {
	for _, algorithm := range GetAllAlgorithms() {
		t.Run(algorithm.Name, func(t *testing.T) {
			hasher := algorithm.NewHasher()
			seen := map[common.Hash]int{}
			for i := 0; i < 100; i++ {
				data := []byte(fmt.Sprintf("input-%d", i))
				first := hasher.Digest(data)
				if second := hasher.Digest(data); first != second {
					t.Fatalf("hash of %s is not deterministic", data)
				}
				if prev, found := seen[first]; found {
					t.Fatalf("collision between input %d and %d", prev, i)
				}
				seen[first] = i
			}
		})
	}
}

func TestAlgorithms_DifferentAlgorithmsProduceDifferentHashes(t *testing.T) {
	seen := map[common.Hash]string{}
	for _, algorithm := range GetAllAlgorithms() {
		hash := algorithm.NewHasher().Digest([]byte("monotree"))
		if other, found := seen[hash]; found {
			t.Errorf("%s and %s produce the same hash", algorithm, other)
		}
		seen[hash] = algorithm.Name
	}
}

func TestAlgorithms_HashersCanBeUsedConcurrently(t *testing.T) {
	for _, algorithm := range GetAllAlgorithms() {
		hasher := algorithm.NewHasher()
		want := hasher.Digest([]byte("concurrent"))
		var wg sync.WaitGroup
		errs := make(chan error, 8)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 1000; j++ {
					if got := hasher.Digest([]byte("concurrent")); got != want {
						errs <- fmt.Errorf("%s: unexpected hash %v", algorithm, got)
						return
					}
				}
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Error(err)
		}
	}
}

func TestGetAlgorithmByName(t *testing.T) {
	for _, algorithm := range GetAllAlgorithms() {
		got, found := GetAlgorithmByName(algorithm.Name)
		if !found || got.Name != algorithm.Name {
			t.Errorf("failed to locate algorithm %s", algorithm)
		}
	}
	if _, found := GetAlgorithmByName("md5"); found {
		t.Errorf("unsupported algorithm should not be found")
	}
}

func BenchmarkDigest(b *testing.B) {
	data := make([]byte, 68)
	for _, algorithm := range GetAllAlgorithms() {
		hasher := algorithm.NewHasher()
		b.Run(algorithm.Name, func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				hasher.Digest(data)
			}
		})
	}
}
