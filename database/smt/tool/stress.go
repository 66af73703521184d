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
	"bytes"
	"fmt"
	"math/rand"
	"time"

	"github.com/Fantom-foundation/monotree/common"
	"github.com/Fantom-foundation/monotree/common/interrupt"
	"github.com/Fantom-foundation/monotree/database/smt"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/exp/maps"
)

var Stress = cli.Command{
	Action: runInSession(stress),
	Name:   "stress",
	Usage:  "stress tests the trie by applying random updates and validating the results",
	Flags: []cli.Flag{
		&numKeysFlag,
		&batchSizeFlag,
		&reportIntervalFlag,
		&seedFlag,
	},
}

var (
	numKeysFlag = cli.IntFlag{
		Name:  "keys",
		Usage: "the number of keys to be inserted",
		Value: 10_000,
	}
	batchSizeFlag = cli.IntFlag{
		Name:  "batch-size",
		Usage: "the number of changes applied per batch",
		Value: 100,
	}
	reportIntervalFlag = cli.IntFlag{
		Name:  "report-interval",
		Usage: "the number of batches between progress reports",
		Value: 10,
	}
	seedFlag = cli.Int64Flag{
		Name:  "seed",
		Usage: "the seed for the random number generator, 0 for a random seed",
		Value: 0,
	}
)

func stress(context *cli.Context, s *session) error {
	numKeys := context.Int(numKeysFlag.Name)
	batchSize := max(context.Int(batchSizeFlag.Name), 1)
	reportInterval := max(context.Int(reportIntervalFlag.Name), 1)
	seed := context.Int64(seedFlag.Name)
	if seed <= 0 {
		seed = time.Now().UnixNano()
	}
	s.log.Info("starting stress test",
		zap.Int("keys", numKeys),
		zap.Int("batch-size", batchSize),
		zap.Int64("seed", seed),
	)
	rand := rand.New(rand.NewSource(seed))
	ctx, cancel := interrupt.CancelOnInterrupt(context.Context, s.log)
	defer cancel()

	root, err := s.getRoot()
	if err != nil {
		return err
	}
	keyLength := s.trie.Config().KeyLength

	// keys touched by this run, with nil marking removed keys
	state := map[string]*common.Hash{}
	start := time.Now()
	inserted := 0
	interrupted := false
	for batch := 0; inserted < numKeys; batch++ {
		if interrupt.IsCancelled(ctx) {
			interrupted = true
			break
		}
		changes := make([]smt.Change, 0, batchSize)
		for i := 0; i < batchSize && inserted < numKeys; i++ {
			// 20% of the changes remove a previously inserted key
			if len(state) > 0 && rand.Float32() < 0.2 {
				for key := range state { // iteration order is random, we pick the first one
					changes = append(changes, smt.Removal([]byte(key)))
					break
				}
				continue
			}
			key := make([]byte, keyLength)
			rand.Read(key)
			var value common.Hash
			rand.Read(value[:])
			changes = append(changes, smt.Insertion(key, value))
			inserted++
		}
		root, err = s.trie.Apply(root, changes)
		if err != nil {
			return fmt.Errorf("failed to apply batch %d: %w", batch, err)
		}
		for _, change := range changes {
			state[string(change.Key)] = change.Value
		}
		if err := validate(s.trie, root, rand, changes, state); err != nil {
			return fmt.Errorf("validation of batch %d failed: %w", batch, err)
		}
		for _, change := range changes {
			if change.IsRemoval() {
				delete(state, string(change.Key))
			}
		}

		if (batch+1)%reportInterval == 0 {
			s.log.Info("progress",
				zap.Int("batch", batch+1),
				zap.Int("inserted", inserted),
				zap.Int("present", len(state)),
				zap.Duration("elapsed", time.Since(start)),
				zap.String("root", formatRoot(root)),
			)
		}
	}

	if err := s.trie.Check(root); err != nil {
		return fmt.Errorf("final trie is inconsistent: %w", err)
	}
	if err := s.setRoot(root); err != nil {
		return err
	}
	if interrupted {
		s.log.Warn("stress test interrupted", zap.Int("inserted", inserted), zap.String("root", formatRoot(root)))
		return interrupt.ErrCanceled
	}
	fmt.Fprintf(context.App.Writer, "inserted %d keys in %v, %d keys remain, root %s\n", inserted, time.Since(start).Round(time.Millisecond), len(state), formatRoot(root))
	return nil
}

// validate checks the values and proofs of the changed keys and a random
// sample of the other keys touched so far.
func validate(trie *smt.Trie, root *common.Hash, rand *rand.Rand, changes []smt.Change, state map[string]*common.Hash) error {
	keys := make([][]byte, 0, 2*len(changes))
	for _, change := range changes {
		keys = append(keys, change.Key)
	}
	all := maps.Keys(state)
	for i := 0; i < len(changes) && len(all) > 0; i++ {
		keys = append(keys, []byte(all[rand.Intn(len(all))]))
	}
	for _, key := range keys {
		want := state[string(key)]
		value, found, err := trie.Get(root, key)
		if err != nil {
			return err
		}
		if found != (want != nil) || (found && value != *want) {
			return fmt.Errorf("unexpected value for key %x, wanted %v, got %v (found: %t)", key, want, value, found)
		}
		proof, err := trie.Prove(root, key)
		if err != nil {
			return err
		}
		if !trie.Verify(proof, root, key, want) {
			return fmt.Errorf("invalid proof for key %x", key)
		}
		if proof.Leaf != nil && want != nil && !bytes.Equal(proof.Leaf.Key, key) {
			return fmt.Errorf("proof for present key %x ends in leaf %x", key, proof.Leaf.Key)
		}
	}
	return nil
}
