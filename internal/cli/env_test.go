package cli

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
)

func TestEnvLoaderLoadsRequestedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "opsdash.env")
	if err := os.WriteFile(path, []byte("OPSDASH_CLI_TEST_VALUE=from-file\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv(OverrideEnvVar, "")
	t.Setenv("OPSDASH_CLI_TEST_VALUE", "")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	loader := AddEnvFlag(fs, filepath.Join(dir, "missing.env"), "")
	if err := fs.Parse([]string{"--env", path}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	loaded, err := loader.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded != path {
		t.Fatalf("unexpected loaded path: got %q want %q", loaded, path)
	}
	if got := os.Getenv("OPSDASH_CLI_TEST_VALUE"); got != "from-file" {
		t.Fatalf("unexpected env value: %q", got)
	}
}

func TestEnvLoaderReportsMissingFiles(t *testing.T) {
	t.Setenv(OverrideEnvVar, "")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	loader := AddEnvFlag(fs, filepath.Join(t.TempDir(), "nope.env"), "")
	if _, err := loader.Load(); err == nil {
		t.Fatalf("expected error for missing env file")
	}
}
