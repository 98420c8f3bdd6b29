package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/kong"
)

func TestDtbExtract_OutdirRequired(t *testing.T) {
	input := filepath.Join(t.TempDir(), "dtb.img")
	if err := os.WriteFile(input, []byte("data"), 0644); err != nil {
		t.Fatalf("Couldn't write test input: %s", err)
	}
	parser, err := kong.New(&cli, kong.Vars{"version": AppVersion})
	if err != nil {
		t.Fatalf("Couldn't build parser: %s", err)
	}
	if _, err := parser.Parse([]string{"dtb", "extract", input}); err == nil {
		t.Fatalf("Expected an error without --outdir")
	}
	if _, err := parser.Parse([]string{"dtb", "extract", input, "--outdir", t.TempDir()}); err != nil {
		t.Fatalf("Expected parse to succeed with --outdir: %s", err)
	}
}
