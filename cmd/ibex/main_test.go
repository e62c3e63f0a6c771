package main

import (
	"archive/zip"
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yuanying/ibex/internal/config"
	"howett.net/plist"
)

func testConfig() *config.Config {
	return &config.Config{
		Manifest:  config.DefaultManifestPath,
		Reader:    "plist",
		LogLevel:  "info",
		LogFormat: "text",
	}
}

func readOptionsForTest(t *testing.T, flagArgs ...string) (*cliOptions, error) {
	t.Helper()
	cmd := newRootCmd(testConfig())
	if err := cmd.ParseFlags(flagArgs); err != nil {
		return nil, err
	}
	return readCLIOptions(cmd, []string{"./Books.plist", "./out"})
}

func TestReadCLIOptions_Defaults(t *testing.T) {
	opts, err := readOptionsForTest(t)
	if err != nil {
		t.Fatalf("readCLIOptions() error = %v", err)
	}

	if opts.ManifestPath != "./Books.plist" {
		t.Fatalf("ManifestPath = %q", opts.ManifestPath)
	}
	if opts.Destination != "./out" {
		t.Fatalf("Destination = %q", opts.Destination)
	}
	if opts.Reader != "plist" {
		t.Fatalf("Reader = %q", opts.Reader)
	}
	if opts.Verify {
		t.Fatal("Verify = true, want false")
	}
	if !opts.Logger.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("Logger should be enabled at INFO level by default")
	}
	if opts.Logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("Logger should not be enabled at DEBUG level by default")
	}
}

func TestReadCLIOptions_CustomFlags(t *testing.T) {
	opts, err := readOptionsForTest(t, "--log-level", "WARN", "--verify", "--verbose")
	if err != nil {
		t.Fatalf("readCLIOptions() error = %v", err)
	}
	if !opts.Verify {
		t.Fatal("Verify = false, want true")
	}
	// --verbose overrides log-level to debug
	if !opts.Logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("Logger should be enabled at DEBUG level when --verbose is set")
	}
}

func TestReadCLIOptions_ConfigDefaults(t *testing.T) {
	cfg := testConfig()
	cfg.LogLevel = "error"
	cfg.Verify = true

	cmd := newRootCmd(cfg)
	if err := cmd.ParseFlags(nil); err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}
	opts, err := readCLIOptions(cmd, []string{"m", "d"})
	if err != nil {
		t.Fatalf("readCLIOptions() error = %v", err)
	}
	if !opts.Verify {
		t.Fatal("Verify = false, want true from config")
	}
	if opts.Logger.Enabled(context.Background(), slog.LevelWarn) {
		t.Fatal("Logger should only be enabled at ERROR level")
	}
}

func TestReadCLIOptions_InvalidLogLevel(t *testing.T) {
	_, err := readOptionsForTest(t, "--log-level", "trace")
	if err == nil || !strings.Contains(err.Error(), "--log-level") {
		t.Fatalf("expected log-level validation error, got %v", err)
	}
}

func TestReadCLIOptions_InvalidLogFormat(t *testing.T) {
	_, err := readOptionsForTest(t, "--log-format", "yaml")
	if err == nil || !strings.Contains(err.Error(), "--log-format") {
		t.Fatalf("expected log-format validation error, got %v", err)
	}
}

func TestBuildLogger_FormatNormalization(t *testing.T) {
	var buf bytes.Buffer
	logger := buildLogger(&buf, "info", "JSON")
	logger.Info("test message")
	output := buf.String()
	if len(output) == 0 || output[0] != '{' {
		t.Fatalf("expected JSON output for format 'JSON', got: %s", output)
	}
}

// writeLibrary creates an EPUB directory, a PDF and a Books.plist
// describing them, returning the manifest path.
func writeLibrary(t *testing.T, root string) string {
	t.Helper()
	epubDir := filepath.Join(root, "books", "Book.epub")
	files := map[string]string{
		"mimetype":               "application/epub+zip",
		"META-INF/container.xml": "<container/>",
		"content.opf":            "<package/>",
	}
	for name, body := range files {
		p := filepath.Join(epubDir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	pdf := filepath.Join(root, "books", "notes.pdf")
	if err := os.WriteFile(pdf, []byte("%PDF"), 0o644); err != nil {
		t.Fatal(err)
	}

	doc := map[string]any{
		"Books": []any{
			map[string]any{"BKDisplayName": "Book.epub", "path": epubDir, "artistName": "A. Author"},
			map[string]any{"BKDisplayName": "Notes.pdf", "path": pdf},
		},
	}
	data, err := plist.Marshal(doc, plist.BinaryFormat)
	if err != nil {
		t.Fatalf("failed to marshal manifest: %v", err)
	}
	manifest := filepath.Join(root, "Books.plist")
	if err := os.WriteFile(manifest, data, 0o600); err != nil {
		t.Fatal(err)
	}
	return manifest
}

func TestRootCmd_Export(t *testing.T) {
	root := t.TempDir()
	manifest := writeLibrary(t, root)
	dest := filepath.Join(root, "export")

	cmd := newRootCmd(testConfig())
	cmd.SetArgs([]string{"--log-level", "error", manifest, dest})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	zr, err := zip.OpenReader(filepath.Join(dest, "Book.epub"))
	if err != nil {
		t.Fatalf("failed to open exported archive: %v", err)
	}
	defer zr.Close()
	if len(zr.File) != 3 || zr.File[0].Name != "mimetype" {
		t.Fatalf("unexpected archive layout: %d entries, first %q", len(zr.File), zr.File[0].Name)
	}

	if _, err := os.Stat(filepath.Join(dest, "Notes.pdf")); err != nil {
		t.Fatalf("missing copied pdf: %v", err)
	}

	// a second run into the same destination must fail
	cmd = newRootCmd(testConfig())
	cmd.SetArgs([]string{"--log-level", "error", manifest, dest})
	if err := cmd.Execute(); err == nil {
		t.Fatal("second Execute() error = nil, want destination exists error")
	}
}

func TestRootCmd_BadManifest(t *testing.T) {
	root := t.TempDir()
	cmd := newRootCmd(testConfig())
	cmd.SetArgs([]string{filepath.Join(root, "missing.plist"), filepath.Join(root, "out")})
	if err := cmd.Execute(); err == nil {
		t.Fatal("Execute() error = nil, want manifest error")
	}
	if _, err := os.Stat(filepath.Join(root, "out")); !os.IsNotExist(err) {
		t.Fatalf("destination created despite manifest failure: %v", err)
	}
}

func TestListCmd(t *testing.T) {
	root := t.TempDir()
	manifest := writeLibrary(t, root)

	var out bytes.Buffer
	cmd := newRootCmd(testConfig())
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"list", "--log-level", "error", manifest})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	got := out.String()
	for _, want := range []string{"NAME", "Book.epub", "archive", "A. Author", "Notes.pdf", "copy"} {
		if !strings.Contains(got, want) {
			t.Errorf("list output missing %q:\n%s", want, got)
		}
	}
}
