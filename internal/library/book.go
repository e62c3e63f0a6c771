package library

import (
	"fmt"
	"sort"
	"strings"
)

// Manifest keys read by ibex. Every other key is carried through untouched.
const (
	KeyDisplayName = "BKDisplayName"
	KeyPath        = "path"
	KeyTitle       = "itemName"
	KeyAuthor      = "artistName"
	KeyGenre       = "genre"
	KeyAssetID     = "BKGeneratedItemId"
)

// ArchiveSuffix marks a book whose directory form must be zipped on export.
const ArchiveSuffix = ".epub"

// Book is one record of the library manifest.
type Book struct {
	attrs map[string]any
}

// NewBook wraps a decoded manifest dictionary. The map is copied.
func NewBook(attrs map[string]any) Book {
	m := make(map[string]any, len(attrs))
	for k, v := range attrs {
		m[k] = v
	}
	return Book{attrs: m}
}

// Value returns the raw attribute stored under key.
func (b Book) Value(key string) (any, bool) {
	v, ok := b.attrs[key]
	return v, ok
}

// String returns the attribute under key when it is a string.
func (b Book) String(key string) (string, bool) {
	v, ok := b.attrs[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func (b Book) str(key string) string {
	s, _ := b.String(key)
	return s
}

// DisplayName is the file name the book is exported under.
func (b Book) DisplayName() string { return b.str(KeyDisplayName) }

// SourcePath is the book's location on disk.
func (b Book) SourcePath() string { return b.str(KeyPath) }

func (b Book) Title() string  { return b.str(KeyTitle) }
func (b Book) Author() string { return b.str(KeyAuthor) }
func (b Book) Genre() string  { return b.str(KeyGenre) }

// AssetID returns the library's identifier for the book, or "" when the
// record carries none.
func (b Book) AssetID() string {
	if id := b.str(KeyAssetID); id != "" {
		return id
	}
	return b.str("BKAssetID")
}

// IsArchive reports whether the display name carries the archive suffix.
func (b Book) IsArchive() bool {
	return HasArchiveSuffix(b.DisplayName())
}

// Keys returns the record's attribute names in sorted order.
func (b Book) Keys() []string {
	keys := make([]string, 0, len(b.attrs))
	for k := range b.attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Label identifies the book in log output.
func (b Book) Label() string {
	if name := b.DisplayName(); name != "" {
		return name
	}
	if id := b.AssetID(); id != "" {
		return id
	}
	return fmt.Sprintf("<unnamed %s>", b.SourcePath())
}

// HasArchiveSuffix reports whether name ends in ".epub", ignoring case.
func HasArchiveSuffix(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ArchiveSuffix)
}
