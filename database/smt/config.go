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
	"fmt"

	"github.com/Fantom-foundation/monotree/common/digest"
)

// maxKeyLength is the longest supported key in bytes. Leaf nodes encode the
// length of their key in a single byte.
const maxKeyLength = 255

// Config defines a set of configuration options for customizing the trie.
type Config struct {
	// A descriptive name for this configuration. It has no effect except for
	// logging and debugging purposes.
	Name string

	// The hashing algorithm used for deriving node digests. Root digests of
	// tries with the same content but different hash algorithms differ.
	Hashing digest.Algorithm

	// The length of keys in bytes. All keys inserted into a trie must have
	// exactly this length.
	KeyLength int

	// The number of decoded nodes retained in memory. Zero disables caching.
	NodeCacheSize int
}

var Keccak256Config = Config{
	Name:          "Keccak256",
	Hashing:       digest.Keccak256,
	KeyLength:     32,
	NodeCacheSize: 100_000,
}

var Sha3Config = Config{
	Name:          "Sha3",
	Hashing:       digest.Sha3_256,
	KeyLength:     32,
	NodeCacheSize: 100_000,
}

var Sha256Config = Config{
	Name:          "Sha256",
	Hashing:       digest.Sha256,
	KeyLength:     32,
	NodeCacheSize: 100_000,
}

var Blake2bConfig = Config{
	Name:          "Blake2b",
	Hashing:       digest.Blake2b256,
	KeyLength:     32,
	NodeCacheSize: 100_000,
}

var Blake2sConfig = Config{
	Name:          "Blake2s",
	Hashing:       digest.Blake2s256,
	KeyLength:     32,
	NodeCacheSize: 100_000,
}

// DefaultConfig is the configuration used unless stated otherwise.
var DefaultConfig = Keccak256Config

var allConfigs = []Config{
	Keccak256Config, Sha3Config, Sha256Config, Blake2bConfig, Blake2sConfig,
}

// GetAllConfigs returns all predefined configurations.
func GetAllConfigs() []Config {
	return append([]Config(nil), allConfigs...)
}

// GetConfigByName attempts to locate a configuration with the given name.
func GetConfigByName(name string) (Config, bool) {
	for _, config := range allConfigs {
		if config.Name == name {
			return config, true
		}
	}
	return Config{}, false
}

// Validate checks that the configuration describes a usable trie.
func (c Config) Validate() error {
	if c.KeyLength <= 0 || c.KeyLength > maxKeyLength {
		return fmt.Errorf("invalid key length %d, must be in range [1,%d]", c.KeyLength, maxKeyLength)
	}
	if _, found := digest.GetAlgorithmByName(c.Hashing.Name); !found {
		return fmt.Errorf("unsupported hash algorithm %q", c.Hashing.Name)
	}
	if c.NodeCacheSize < 0 {
		return fmt.Errorf("invalid node cache size %d", c.NodeCacheSize)
	}
	return nil
}

func (c Config) keyBits() int {
	return c.KeyLength * 8
}
