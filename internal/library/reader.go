package library

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"howett.net/plist"
)

const booksKey = "Books"

var (
	ErrUnknownReader = errors.New("unknown manifest reader")
	ErrNotDictionary = errors.New("manifest root is not a dictionary")
	ErrNoBooks       = errors.New("manifest has no Books array")
	ErrClosed        = errors.New("library is closed")
)

// Reader loads a library manifest from disk.
type Reader interface {
	Read(path string) (*Library, error)
}

// Library holds the records of one loaded manifest.
type Library struct {
	path  string
	books []Book
}

// Path returns the manifest file the library was read from.
func (l *Library) Path() string {
	return l.path
}

// Books returns the records in manifest order.
func (l *Library) Books() ([]Book, error) {
	if l.books == nil {
		return nil, ErrClosed
	}
	return l.books, nil
}

// Close releases the decoded records. Books returns ErrClosed afterwards.
func (l *Library) Close() error {
	l.books = nil
	return nil
}

// NewReader returns the manifest reader registered under kind.
func NewReader(kind string, logger *slog.Logger) (Reader, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch kind {
	case "plist", "":
		return &PlistReader{logger: logger}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownReader, kind)
	}
}

// PlistReader decodes binary and XML property lists.
type PlistReader struct {
	logger *slog.Logger
}

// Read opens and decodes the manifest at path.
func (r *PlistReader) Read(path string) (*Library, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer f.Close()

	lib, err := r.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	lib.path = path
	return lib, nil
}

// Decode decodes a manifest from rs.
func (r *PlistReader) Decode(rs io.ReadSeeker) (*Library, error) {
	var root any
	if err := plist.NewDecoder(rs).Decode(&root); err != nil {
		return nil, fmt.Errorf("failed to read property list: %w", err)
	}

	dict, ok := root.(map[string]any)
	if !ok {
		return nil, ErrNotDictionary
	}
	items, ok := dict[booksKey].([]any)
	if !ok {
		return nil, ErrNoBooks
	}

	books := make([]Book, 0, len(items))
	for i, item := range items {
		attrs, ok := item.(map[string]any)
		if !ok {
			r.logger.Warn("skipping manifest entry that is not a dictionary", "index", i)
			continue
		}
		books = append(books, NewBook(attrs))
	}
	r.logger.Debug("manifest decoded", "books", len(books))

	return &Library{books: books}, nil
}
