package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/joshuapare/execmem/internal/config"
	"github.com/joshuapare/execmem/internal/logger"
)

var (
	// Global flags
	verbose    bool
	quiet      bool
	jsonOut    bool
	configPath string
	layoutName string
)

// stdout is where command output goes.
var stdout io.Writer = os.Stdout

var rootCmd = &cobra.Command{
	Use:   "memctl",
	Short: "Inspect memory layouts and exercise the allocators",
	Long: `memctl builds a memory space from a layout (a YAML file or one of the
predefined layouts) and lets you inspect its regions, run allocation
workloads against its pools, and export allocator metrics.`,
	Version: "0.1.0",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Init(logger.Options{
			Enabled: verbose || logger.DebugEnabled(),
			Output:  os.Stderr,
			Level:   logLevel(),
		})
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", "", "Layout file (YAML)")
	rootCmd.PersistentFlags().
		StringVar(&layoutName, "layout", config.Default.Name, "Predefined layout to use when no file is given")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func logLevel() slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// loadLayout returns the layout named by the global flags.
func loadLayout() (*config.Layout, error) {
	if configPath != "" {
		printVerbose("Loading layout: %s\n", configPath)
		return config.Load(configPath)
	}
	l, ok := config.Named(layoutName)
	if !ok {
		return nil, fmt.Errorf("unknown layout %q (want flat, amiga or debug)", layoutName)
	}
	return &l, nil
}

// Helper functions for output

var printer = message.NewPrinter(language.English)

// printInfo prints an info message if not in quiet mode
func printInfo(format string, args ...any) {
	if !quiet {
		printer.Fprintf(stdout, format, args...)
	}
}

// printVerbose prints a verbose message if verbose mode is enabled
func printVerbose(format string, args ...any) {
	if verbose && !quiet {
		printer.Fprintf(stdout, format, args...)
	}
}

// printJSON outputs data as JSON
func printJSON(v any) error {
	encoder := json.NewEncoder(stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
