// Test program for the library manifest reader
//
// Usage:
//
//	go run ./cmd/test/manifest_reader/main.go [Books.plist]
//
// Without an argument the Apple Books default location is read. Every
// record is printed with all of its attributes.
package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/yuanying/ibex/internal/config"
	"github.com/yuanying/ibex/internal/library"
)

func main() {
	manifest := config.DefaultManifestPath
	if len(os.Args) > 1 {
		manifest = os.Args[1]
	}
	manifest, err := config.ExpandHome(manifest)
	if err != nil {
		log.Fatal(err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	reader, err := library.NewReader("plist", logger)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Reading manifest: %s\n", manifest)
	lib, err := reader.Read(manifest)
	if err != nil {
		log.Fatalf("Failed to read manifest: %v", err)
	}
	defer lib.Close()

	books, err := lib.Books()
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("✓ %d books\n", len(books))

	for i, b := range books {
		fmt.Printf("\n[%d] %s\n", i, b.Label())
		for _, key := range b.Keys() {
			v, _ := b.Value(key)
			fmt.Printf("  %-24s %v\n", key, v)
		}
	}
}
