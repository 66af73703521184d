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
	"runtime/pprof"
	"runtime/trace"
	"strings"

	"github.com/urfave/cli/v2"
)

// Run using
//  go run ./database/smt/tool <flags> <command> <arguments>

var (
	cpuProfileFlag = cli.StringFlag{
		Name:  "cpuprofile",
		Usage: "sets the target file for storing CPU profiles to, disabled if empty",
		Value: "",
	}
	traceFlag = cli.StringFlag{
		Name:  "tracefile",
		Usage: "sets the target file for traces to, disabled if empty",
		Value: "",
	}
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:      "tool",
		Usage:     "Monotree sparse Merkle trie toolbox",
		Copyright: "(c) 2024 Fantom Foundation",
		Flags: []cli.Flag{
			&configFlag,
			&dirFlag,
			&backendFlag,
			&trieFlag,
			&cacheSizeFlag,
			&logEnvFlag,
			&cpuProfileFlag,
			&traceFlag,
		},
		Commands: []*cli.Command{
			&Insert,
			&Get,
			&Remove,
			&Prove,
			&Verify,
			&Info,
			&Check,
			&Stress,
		},
	}
}

func addPerformanceDiagnoses(action cli.ActionFunc) cli.ActionFunc {
	return func(context *cli.Context) error {
		// Start CPU profiling.
		cpuProfileFileName := context.String(cpuProfileFlag.Name)
		if strings.TrimSpace(cpuProfileFileName) != "" {
			if err := startCpuProfiler(cpuProfileFileName); err != nil {
				return err
			}
			defer stopCpuProfiler()
		}

		// Start recording a trace.
		traceFileName := context.String(traceFlag.Name)
		if strings.TrimSpace(traceFileName) != "" {
			if err := startTracer(traceFileName); err != nil {
				return err
			}
			defer stopTracer()
		}

		return action(context)
	}
}

func startCpuProfiler(filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("could not create CPU profile: %w", err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		return fmt.Errorf("could not start CPU profile: %w", err)
	}
	return nil
}

func stopCpuProfiler() {
	pprof.StopCPUProfile()
}

func startTracer(filename string) error {
	traceFile, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create trace file: %w", err)
	}
	if err := trace.Start(traceFile); err != nil {
		return fmt.Errorf("failed to start trace: %w", err)
	}
	return nil
}

func stopTracer() {
	trace.Stop()
}
