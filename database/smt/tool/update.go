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

	"github.com/Fantom-foundation/monotree/common"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

var Insert = cli.Command{
	Action:    runInSession(insert),
	Name:      "insert",
	Usage:     "associates a value with a key in the current trie",
	ArgsUsage: "<key> <value>",
	Flags: []cli.Flag{
		&hashKeysFlag,
	},
}

var Get = cli.Command{
	Action:    runInSession(get),
	Name:      "get",
	Usage:     "prints the value associated with a key in the current trie",
	ArgsUsage: "<key>",
	Flags: []cli.Flag{
		&hashKeysFlag,
	},
}

var Remove = cli.Command{
	Action:    runInSession(remove),
	Name:      "remove",
	Usage:     "removes a key from the current trie",
	ArgsUsage: "<key>",
	Flags: []cli.Flag{
		&hashKeysFlag,
	},
}

var (
	hashKeysFlag = cli.BoolFlag{
		Name:  "hash-keys",
		Usage: "use the digest of the given key string as the key instead of parsing it as hex",
	}
)

func (s *session) parseKey(context *cli.Context, arg string) ([]byte, error) {
	config := s.trie.Config()
	return parseKey(arg, config.KeyLength, context.Bool(hashKeysFlag.Name), s.trie.Hasher())
}

func insert(context *cli.Context, s *session) error {
	if context.Args().Len() != 2 {
		return fmt.Errorf("expected key and value arguments")
	}
	key, err := s.parseKey(context, context.Args().Get(0))
	if err != nil {
		return err
	}
	value, err := parseHash(context.Args().Get(1))
	if err != nil {
		return fmt.Errorf("invalid value: %w", err)
	}
	root, err := s.getRoot()
	if err != nil {
		return err
	}
	newRoot, err := s.trie.Insert(root, key, value)
	if err != nil {
		return err
	}
	if err := s.setRoot(&newRoot); err != nil {
		return err
	}
	s.log.Info("inserted key", zap.String("key", fmt.Sprintf("%x", key)), zap.Stringer("root", newRoot))
	fmt.Fprintf(context.App.Writer, "%v\n", newRoot)
	return nil
}

func get(context *cli.Context, s *session) error {
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
	value, found, err := s.trie.Get(root, key)
	if err != nil {
		return err
	}
	if !found {
		fmt.Fprintln(context.App.Writer, "not found")
		return nil
	}
	fmt.Fprintf(context.App.Writer, "%v\n", value)
	return nil
}

func remove(context *cli.Context, s *session) error {
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
	newRoot, err := s.trie.Remove(root, key)
	if err != nil {
		return err
	}
	if common.HashPtrEqual(root, newRoot) {
		fmt.Fprintln(context.App.Writer, "not found")
		return nil
	}
	if err := s.setRoot(newRoot); err != nil {
		return err
	}
	s.log.Info("removed key", zap.String("key", fmt.Sprintf("%x", key)), zap.String("root", formatRoot(newRoot)))
	fmt.Fprintln(context.App.Writer, formatRoot(newRoot))
	return nil
}

func formatRoot(root *common.Hash) string {
	if root == nil {
		return emptyRoot
	}
	return root.String()
}
