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

	"github.com/urfave/cli/v2"
)

var Info = cli.Command{
	Action: runInSession(info),
	Name:   "info",
	Usage:  "lists information about the current trie",
	Flags: []cli.Flag{
		&statsFlag,
	},
}

var Check = cli.Command{
	Action: runInSession(check),
	Name:   "check",
	Usage:  "performs extensive invariants checks on the current trie",
}

var (
	statsFlag = cli.BoolFlag{
		Name:  "stats",
		Usage: "Compute and print node statistics",
	}
)

type cacheStats interface {
	Stats() (hits, misses uint64)
}

func info(context *cli.Context, s *session) error {
	root, err := s.getRoot()
	if err != nil {
		return err
	}
	out := context.App.Writer
	config := s.trie.Config()
	fmt.Fprintf(out, "Directory contains a trie with the following properties:\n")
	fmt.Fprintf(out, "\tConfiguration: %v\n", config.Name)
	fmt.Fprintf(out, "\tHashing:       %v\n", config.Hashing)
	fmt.Fprintf(out, "\tKey length:    %d bytes\n", config.KeyLength)
	fmt.Fprintf(out, "\tBackend:       %v\n", s.config.Store.Backend)
	fmt.Fprintf(out, "\tRoot:          %v\n", formatRoot(root))

	if context.Bool(statsFlag.Name) {
		fmt.Fprintf(out, "\nCollecting Node Statistics ...\n")
		stats, err := s.trie.CountNodes(root)
		if err != nil {
			return err
		}
		fmt.Fprint(out, "\n--- Node Statistics ---\n")
		fmt.Fprintln(out, stats.String())
		if cache, ok := s.store.(cacheStats); ok {
			hits, misses := cache.Stats()
			fmt.Fprintf(out, "store cache hits: %d, misses: %d\n", hits, misses)
		}
	}
	return nil
}

func check(context *cli.Context, s *session) error {
	root, err := s.getRoot()
	if err != nil {
		return err
	}
	if err := s.trie.Check(root); err != nil {
		return err
	}
	fmt.Fprintln(context.App.Writer, "All checks passed!")
	return nil
}
