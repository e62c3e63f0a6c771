// Test program for checking an exported EPUB archive
//
// Usage:
//
//	go run ./cmd/test/epub_reader/main.go <epub-file-path>
//
// This program:
// - Opens the EPUB (mimetype and container.xml validation)
// - Lists entries in archive order with their compression method
// - Prints OPF metadata
// - Runs the same verification as `ibex --verify`
package main

import (
	"archive/zip"
	"fmt"
	"log"
	"os"
	"path"

	"github.com/yuanying/ibex/internal/epub"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run ./cmd/test/epub_reader/main.go <epub-file>")
		os.Exit(1)
	}
	epubPath := os.Args[1]

	fmt.Printf("Opening EPUB file: %s\n", epubPath)
	reader, err := epub.Open(epubPath)
	if err != nil {
		log.Fatalf("Failed to open EPUB: %v", err)
	}
	defer reader.Close()

	fmt.Printf("✓ EPUB opened successfully\n")
	fmt.Printf("OPF Path: %s\n\n", reader.OPFPath())

	files := reader.Files()
	fmt.Printf("Entries (%d):\n", len(files))
	for i, name := range reader.Names() {
		method := "deflate"
		if files[name].Method == zip.Store {
			method = "store"
		}
		fmt.Printf("  %3d  %-7s  %s\n", i, method, name)
	}

	opfData, err := reader.ReadFile(reader.OPFPath())
	if err != nil {
		log.Fatalf("Failed to read OPF: %v", err)
	}
	opf, err := epub.ParseOPF(opfData, path.Dir(reader.OPFPath()))
	if err != nil {
		log.Fatalf("Failed to parse OPF: %v", err)
	}

	fmt.Println("\nMetadata:")
	fmt.Printf("  Title:      %s\n", opf.Metadata.Title)
	for _, c := range opf.Metadata.Creators {
		fmt.Printf("  Creator:    %s (%s)\n", c.Name, c.Role)
	}
	fmt.Printf("  Language:   %s\n", opf.Metadata.Language)
	fmt.Printf("  Identifier: %s\n", opf.Metadata.Identifier)
	fmt.Printf("  Spine:      %d items\n", len(opf.Spine))

	findings, err := epub.Verify(epubPath)
	if err != nil {
		log.Fatalf("Verification failed: %v", err)
	}
	if len(findings) == 0 {
		fmt.Println("\n✓ No problems found")
		return
	}
	fmt.Printf("\nProblems (%d):\n", len(findings))
	for _, f := range findings {
		fmt.Printf("  - %s\n", f)
	}
	os.Exit(2)
}
