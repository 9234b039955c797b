package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// resetFlags restores every command flag to its default.
func resetFlags() {
	verbose, quiet, jsonOut = false, false, false
	configPath, layoutName = "", "amiga"
	regionsPools = false
	simPool, simOps, simSeed, simMaxSize, simKeep = "default", 500, 1, "1KiB", false
	serveAddr, servePool, serveInterval, serveBatch, serveMaxSize = "127.0.0.1:0", "default", 10*time.Millisecond, 50, "1KiB"
}

// captureOutput collects everything printed while running fn.
func captureOutput(t *testing.T, fn func() error) (string, error) {
	t.Helper()
	orig := stdout
	var buf bytes.Buffer
	stdout = &buf
	defer func() { stdout = orig }()
	err := fn()
	return buf.String(), err
}

// writeLayout writes a layout file into a temporary directory.
func writeLayout(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "layout.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("failed to write layout: %v", err)
	}
	return path
}

// assertJSON checks that output is valid JSON
func assertJSON(t *testing.T, output string) {
	t.Helper()
	var result any
	if err := json.Unmarshal([]byte(output), &result); err != nil {
		t.Errorf("invalid JSON output: %v\nOutput: %s", err, output)
	}
}

// assertContains checks that output contains all expected strings
func assertContains(t *testing.T, output string, expected []string) {
	t.Helper()
	for _, want := range expected {
		if !strings.Contains(output, want) {
			t.Errorf("output missing expected string %q\nGot: %s", want, output)
		}
	}
}
