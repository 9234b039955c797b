package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/joshuapare/execmem/mem"
)

var regionsPools bool

func init() {
	cmd := newRegionsCmd()
	cmd.Flags().BoolVar(&regionsPools, "pools", false, "Also list the pools of the layout")
	rootCmd.AddCommand(cmd)
}

func newRegionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "regions",
		Short: "List the system regions of a layout",
		Long: `The regions command builds the memory space described by a layout and
lists its system regions in allocation order: address range, capacity,
free space, attributes and priority.

Example:
  memctl regions
  memctl regions -c layout.yaml --pools
  memctl regions --layout flat --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegions()
		},
	}
	return cmd
}

type regionsReport struct {
	Layout  string           `json:"layout"`
	Walls   bool             `json:"walls"`
	Regions []mem.RegionInfo `json:"regions"`
	Pools   []poolReport     `json:"pools,omitempty"`
}

type poolReport struct {
	Name         string `json:"name"`
	PuddleSize   uint64 `json:"puddle_size"`
	Requirements string `json:"requirements"`
}

func runRegions() error {
	l, err := loadLayout()
	if err != nil {
		return err
	}
	sys, err := l.Build()
	if err != nil {
		return fmt.Errorf("failed to build layout: %w", err)
	}
	defer sys.Close()

	report := regionsReport{
		Layout:  l.Name,
		Walls:   sys.Space.Walls(),
		Regions: sys.Space.Snapshot(),
	}
	if regionsPools {
		for _, p := range sys.Pools {
			report.Pools = append(report.Pools, poolReport{
				Name:         p.Name(),
				PuddleSize:   p.PuddleSize(),
				Requirements: p.Requirements().String(),
			})
		}
	}

	if jsonOut {
		return printJSON(report)
	}

	printInfo("\nLayout: %s\n", report.Layout)
	if report.Walls {
		printInfo("  Boundary walls enabled\n")
	}
	printInfo("\nRegions:\n")
	for _, r := range report.Regions {
		printInfo("  %-8s %s-%s  %10s  free %10s  pri %4d  %s\n",
			r.Name, r.Lower, r.Upper,
			humanize.IBytes(r.Size), humanize.IBytes(r.Free),
			r.Priority, r.Attributes)
	}
	printInfo("\n  Total: %s in %d region(s)\n",
		humanize.IBytes(sys.Space.AvailTotal(0)), len(report.Regions))

	if regionsPools {
		printInfo("\nPools:\n")
		for _, p := range report.Pools {
			printInfo("  %-8s puddle %10s  %s\n", p.Name, humanize.IBytes(p.PuddleSize), p.Requirements)
		}
	}
	return nil
}
