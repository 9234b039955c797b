package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/joshuapare/execmem/mem"
)

var (
	simPool    string
	simOps     int
	simSeed    int64
	simMaxSize string
	simKeep    bool
)

func init() {
	cmd := newSimulateCmd()
	cmd.Flags().StringVar(&simPool, "pool", "default", "Pool to allocate from")
	cmd.Flags().IntVar(&simOps, "ops", 10000, "Number of operations")
	cmd.Flags().Int64Var(&simSeed, "seed", 1, "Random seed")
	cmd.Flags().StringVar(&simMaxSize, "max-size", "2KiB", "Largest request size")
	cmd.Flags().BoolVar(&simKeep, "keep", false, "Do not free outstanding blocks at the end")
	rootCmd.AddCommand(cmd)
}

func newSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a random allocation workload",
		Long: `The simulate command runs a random mix of pooled and plain allocations
and frees against a layout. A low-memory handler releases outstanding
blocks when memory runs out. Every free list touched is verified after
each operation; an allocator alert stops the run.

Example:
  memctl simulate --ops 50000
  memctl simulate --layout debug --pool default --max-size 512 --seed 7
  memctl simulate -c layout.yaml --pool chip --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate()
		},
	}
	return cmd
}

func runSimulate() (err error) {
	maxSize, err := humanize.ParseBytes(simMaxSize)
	if err != nil {
		return fmt.Errorf("invalid --max-size: %w", err)
	}
	l, err := loadLayout()
	if err != nil {
		return err
	}
	sys, err := l.Build()
	if err != nil {
		return fmt.Errorf("failed to build layout: %w", err)
	}
	defer sys.Close()

	w, err := newWorkload(sys, simPool, simSeed, maxSize)
	if err != nil {
		return err
	}

	defer func() {
		if v := recover(); v != nil {
			a, ok := mem.AsAlert(v)
			if !ok {
				panic(v)
			}
			err = fmt.Errorf("allocator alert after %d steps: %s", w.steps, a)
		}
	}()

	printVerbose("Running %d operations on pool %s\n", simOps, simPool)
	for range simOps {
		if err := w.step(); err != nil {
			return err
		}
	}
	if !simKeep {
		w.drain()
		if err := w.verify(); err != nil {
			return err
		}
	}

	st := w.stats()
	if jsonOut {
		return printJSON(st)
	}

	printInfo("\nSimulation (%s, pool %s, seed %d):\n", l.Name, simPool, simSeed)
	printInfo("  Steps:            %d\n", st.Steps)
	printInfo("  Failed requests:  %d\n", st.Failures)
	printInfo("  Released:         %d\n", st.Released)
	printInfo("  Outstanding:      %d\n", st.Live)

	printInfo("\nPool:\n")
	printInfo("  Allocations:      %d\n", st.Pool.Allocs)
	printInfo("  Frees:            %d\n", st.Pool.Frees)
	printInfo("  Failures:         %d\n", st.Pool.Failures)
	printInfo("  Bytes allocated:  %s\n", humanize.IBytes(st.Pool.BytesAllocated))
	printInfo("  Puddles created:  %d\n", st.Pool.PuddlesCreated)
	printInfo("  Puddles freed:    %d\n", st.Pool.PuddlesFreed)
	printInfo("  Puddle reorders:  %d\n", st.Pool.Reorders)
	printInfo("  Puddles now:      %d (%s free of %s)\n",
		st.Pool.Puddles, humanize.IBytes(st.Pool.FreeBytes), humanize.IBytes(st.Pool.Capacity))

	printInfo("\nPlain allocator:\n")
	printInfo("  Allocations:      %d (%d failed)\n", st.Space.AllocCalls, st.Space.AllocFailures)
	printInfo("  Frees:            %d\n", st.Space.FreeCalls)
	printInfo("  Low-memory checks: %d (%d retries)\n", st.LowMem.Checks, st.LowMem.Retries)

	printInfo("\nRegions:\n")
	for _, r := range st.Regions {
		printInfo("  %-8s %10s free of %s\n", r.Name, humanize.IBytes(r.Free), humanize.IBytes(r.Size))
	}
	return nil
}
