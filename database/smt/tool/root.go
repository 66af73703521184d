// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Fantom-foundation/monotree/common"
	"github.com/Fantom-foundation/monotree/common/digest"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// The root of the current trie is tracked in a file next to the store.
const rootFileName = "ROOT"

const emptyRoot = "empty"

func readRoot(dir string) (*common.Hash, error) {
	data, err := os.ReadFile(filepath.Join(dir, rootFileName))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read root: %w", err)
	}
	content := strings.TrimSpace(string(data))
	if content == emptyRoot {
		return nil, nil
	}
	root, err := parseHash(content)
	if err != nil {
		return nil, fmt.Errorf("invalid root file content: %w", err)
	}
	return &root, nil
}

func writeRoot(dir string, root *common.Hash) error {
	content := emptyRoot
	if root != nil {
		content = root.String()
	}
	// write to a temporary file first to never leave a partial root behind
	file := filepath.Join(dir, rootFileName)
	if err := os.WriteFile(file+".tmp", []byte(content+"\n"), 0600); err != nil {
		return fmt.Errorf("failed to write root: %w", err)
	}
	if err := os.Rename(file+".tmp", file); err != nil {
		return fmt.Errorf("failed to write root: %w", err)
	}
	return nil
}

func parseHash(s string) (common.Hash, error) {
	data, err := hexutil.Decode(s)
	if err != nil {
		return common.Hash{}, fmt.Errorf("invalid hex string %q: %w", s, err)
	}
	return common.HashFromBytes(data)
}

// parseKey interprets the argument as a hex encoded key of the given length,
// or digests the argument if hashKeys is set.
func parseKey(s string, keyLength int, hashKeys bool, hasher digest.Hasher) ([]byte, error) {
	if hashKeys {
		hash := hasher.Digest([]byte(s))
		if keyLength > len(hash) {
			return nil, fmt.Errorf("hashed keys can not be used with keys of %d bytes", keyLength)
		}
		return hash[:keyLength], nil
	}
	key, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex key %q: %w", s, err)
	}
	if len(key) != keyLength {
		return nil, fmt.Errorf("invalid key length, wanted %d bytes, got %d", keyLength, len(key))
	}
	return key, nil
}
