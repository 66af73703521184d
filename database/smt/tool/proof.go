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
	"fmt"
	"os"

	"github.com/Fantom-foundation/monotree/common"
	"github.com/Fantom-foundation/monotree/database/smt"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/urfave/cli/v2"
)

var Prove = cli.Command{
	Action:    runInSession(prove),
	Name:      "prove",
	Usage:     "creates a proof for the presence or absence of a key in the current trie",
	ArgsUsage: "<key>",
	Flags: []cli.Flag{
		&hashKeysFlag,
		&outFlag,
	},
}

var Verify = cli.Command{
	Action:    addPerformanceDiagnoses(verify),
	Name:      "verify",
	Usage:     "verifies a proof for the presence or absence of a key, without accessing the store",
	ArgsUsage: "<proof-file> <key> [<value>]",
	Flags: []cli.Flag{
		&hashKeysFlag,
		&rootFlag,
	},
}

var (
	outFlag = cli.StringFlag{
		Name:  "out",
		Usage: "the file to write the binary encoded proof to; if empty, the proof is printed",
	}
	rootFlag = cli.StringFlag{
		Name:  "root",
		Usage: "the root to verify the proof against; if not set, the current root is used",
	}
)

func prove(context *cli.Context, s *session) error {
	if context.Args().Len() != 1 {
		return fmt.Errorf("expected key argument")
	}
	key, err := s.parseKey(context, context.Args().Get(0))
	if err != nil {
		return err
	}
	root, err := s.getRoot()
	if err != nil {
		return err
	}
	proof, err := s.trie.Prove(root, key)
	if err != nil {
		return err
	}
	data, err := proof.MarshalBinary()
	if err != nil {
		return err
	}
	if out := context.String(outFlag.Name); out != "" {
		if err := os.WriteFile(out, data, 0600); err != nil {
			return fmt.Errorf("failed to write proof: %w", err)
		}
		fmt.Fprintf(context.App.Writer, "proof with %d steps written to %s\n", len(proof.Steps), out)
		return nil
	}
	fmt.Fprint(context.App.Writer, proof.String())
	fmt.Fprintln(context.App.Writer, hexutil.Encode(data))
	return nil
}

func verify(context *cli.Context) error {
	args := context.Args()
	if args.Len() != 2 && args.Len() != 3 {
		return fmt.Errorf("expected proof file, key and optional value arguments")
	}
	config, err := loadConfig(context)
	if err != nil {
		return err
	}
	trieConfig, found := smt.GetConfigByName(config.Trie)
	if !found {
		return fmt.Errorf("unknown trie configuration: %s", config.Trie)
	}
	hasher := trieConfig.Hashing.NewHasher()

	data, err := os.ReadFile(args.Get(0))
	if err != nil {
		return fmt.Errorf("failed to read proof: %w", err)
	}
	var proof smt.Proof
	if err := proof.UnmarshalBinary(data); err != nil {
		return err
	}

	key, err := parseKey(args.Get(1), trieConfig.KeyLength, context.Bool(hashKeysFlag.Name), hasher)
	if err != nil {
		return err
	}
	var value *common.Hash
	if args.Len() == 3 {
		v, err := parseHash(args.Get(2))
		if err != nil {
			return fmt.Errorf("invalid value: %w", err)
		}
		value = &v
	}

	var root *common.Hash
	if context.IsSet(rootFlag.Name) {
		if r := context.String(rootFlag.Name); r != emptyRoot {
			hash, err := parseHash(r)
			if err != nil {
				return fmt.Errorf("invalid root: %w", err)
			}
			root = &hash
		}
	} else {
		if config.Store.Directory == "" {
			return fmt.Errorf("either a root or the directory storing the trie is required")
		}
		root, err = readRoot(config.Store.Directory)
		if err != nil {
			return err
		}
	}

	if !smt.VerifyProof(hasher, proof, root, key, value) {
		return fmt.Errorf("proof is invalid")
	}
	if value == nil {
		fmt.Fprintf(context.App.Writer, "proof is valid, key is absent in trie %s\n", formatRoot(root))
	} else {
		fmt.Fprintf(context.App.Writer, "proof is valid, key is present in trie %s\n", formatRoot(root))
	}
	return nil
}
