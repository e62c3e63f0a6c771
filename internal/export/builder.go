package export

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/yuanying/ibex/internal/library"
)

const (
	// mimetypeFile must be the first, uncompressed entry of an EPUB.
	mimetypeFile = "mimetype"
	// markerDir is expected at the top of every EPUB source directory.
	markerDir = "META-INF"
	// itunesMetadataFile is regenerated by Apple Books on import.
	itunesMetadataFile = "iTunesMetadata.plist"
)

var (
	ErrMissingDisplayName = errors.New("book has no display name")
	ErrMissingSourcePath  = errors.New("book has no source path")
	ErrUnsafeName         = errors.New("display name is not a plain file name")
	ErrSourceIsDirectory  = errors.New("source is a directory")
)

// Builder turns one book's on-disk form into one exported artifact.
type Builder struct {
	logger *slog.Logger
}

// NewBuilder creates a Builder that reports warnings to logger.
func NewBuilder(logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{logger: logger}
}

// Build exports book into destDir under its display name.
func (b *Builder) Build(book library.Book, destDir string) (*Result, error) {
	name := book.DisplayName()
	res := &Result{Book: book.Label(), State: StatePending}

	if name == "" {
		return b.fail(res, ErrMissingDisplayName)
	}
	if book.SourcePath() == "" {
		return b.fail(res, ErrMissingSourcePath)
	}
	return b.export(res, book.SourcePath(), name, destDir)
}

// Export writes the artifact for the book at src to destDir/name. A directory
// source whose name carries the EPUB suffix is zipped; anything else is copied.
func (b *Builder) Export(src, name, destDir string) (*Result, error) {
	return b.export(&Result{Book: name, State: StatePending}, src, name, destDir)
}

func (b *Builder) export(res *Result, src, name, destDir string) (*Result, error) {
	if name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return b.fail(res, fmt.Errorf("%w: %q", ErrUnsafeName, name))
	}
	res.Target = filepath.Join(destDir, name)

	info, err := os.Stat(src)
	if err != nil {
		return b.fail(res, fmt.Errorf("failed to stat source: %w", err))
	}

	var created bool
	if info.IsDir() && library.HasArchiveSuffix(name) {
		res.Kind = KindArchive
		res.State = StateArchiving
		created, err = b.archive(res, src)
	} else {
		res.Kind = KindCopy
		res.State = StateCopying
		created, err = b.copy(src, res.Target)
	}
	if err != nil {
		// a target this call never opened may belong to an earlier book
		if created {
			os.Remove(res.Target)
		}
		return b.fail(res, err)
	}

	res.State = StateDone
	return res, nil
}

func (b *Builder) fail(res *Result, err error) (*Result, error) {
	res.State = StateFailed
	res.Err = err
	return res, err
}

func (b *Builder) warn(res *Result, msg string, args ...any) {
	res.warn(msg)
	b.logger.Warn(msg, append([]any{"book", res.Book}, args...)...)
}

// archive zips the directory src into res.Target. The mimetype entry goes
// first and stored; every other file is deflated. created reports whether
// res.Target was opened for writing.
func (b *Builder) archive(res *Result, src string) (created bool, err error) {
	children, err := os.ReadDir(src)
	if err != nil {
		return false, fmt.Errorf("failed to read source directory: %w", err)
	}

	var files, dirs []string
	for _, c := range children {
		if c.IsDir() {
			dirs = append(dirs, c.Name())
		} else {
			files = append(files, c.Name())
		}
	}

	if !slices.Contains(dirs, markerDir) {
		b.warn(res, "missing META-INF subdirectory", "path", src)
	}

	f, err := os.Create(res.Target)
	if err != nil {
		return false, fmt.Errorf("failed to create archive: %w", err)
	}
	created = true
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close archive: %w", cerr)
		}
	}()

	zw := zip.NewWriter(f)

	if i := slices.Index(files, mimetypeFile); i >= 0 {
		files = slices.Delete(files, i, i+1)
		if err := b.addFile(zw, res, src, mimetypeFile, zip.Store); err != nil {
			return true, err
		}
	} else {
		b.warn(res, "missing mimetype file", "path", src)
	}

	if i := slices.Index(files, itunesMetadataFile); i >= 0 {
		files = slices.Delete(files, i, i+1)
	}

	for _, name := range files {
		if err := b.addFile(zw, res, src, name, zip.Deflate); err != nil {
			return true, err
		}
	}

	for _, dir := range dirs {
		err := filepath.WalkDir(filepath.Join(src, dir), func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			rel, err := filepath.Rel(src, p)
			if err != nil {
				return err
			}
			return b.addFile(zw, res, src, filepath.ToSlash(rel), zip.Deflate)
		})
		if err != nil {
			return true, fmt.Errorf("failed to walk %s: %w", dir, err)
		}
	}

	if err := zw.Close(); err != nil {
		return true, fmt.Errorf("failed to finish archive: %w", err)
	}
	return true, nil
}

// addFile copies root/rel into the archive as entry rel. Symlinks are
// followed; anything that does not resolve to a regular file is skipped.
func (b *Builder) addFile(zw *zip.Writer, res *Result, root, rel string, method uint16) error {
	p := filepath.Join(root, filepath.FromSlash(rel))
	info, err := os.Stat(p)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", rel, err)
	}
	if !info.Mode().IsRegular() {
		b.logger.Debug("skipping non-regular file", "book", res.Book, "entry", rel)
		return nil
	}

	hdr := &zip.FileHeader{Name: rel, Method: method}
	// stored entries carry no timestamp extra field; readers expect the
	// mimetype entry to be bare
	if method != zip.Store {
		hdr, err = zip.FileInfoHeader(info)
		if err != nil {
			return fmt.Errorf("failed to build header for %s: %w", rel, err)
		}
		hdr.Name = rel
		hdr.Method = method
	}

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("failed to create entry %s: %w", rel, err)
	}

	in, err := os.Open(p)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", rel, err)
	}
	defer in.Close()

	if _, err := io.Copy(w, in); err != nil {
		return fmt.Errorf("failed to write entry %s: %w", rel, err)
	}

	res.Entries = append(res.Entries, rel)
	b.logger.Debug("added entry", "book", res.Book, "entry", rel, "method", method)
	return nil
}

// copy duplicates the file at src to target, keeping its permission bits
// and modification time.
func (b *Builder) copy(src, target string) (bool, error) {
	in, err := os.Open(src)
	if err != nil {
		return false, fmt.Errorf("failed to open source: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return false, fmt.Errorf("failed to stat source: %w", err)
	}
	if info.IsDir() {
		return false, fmt.Errorf("%w: %s", ErrSourceIsDirectory, src)
	}

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return false, fmt.Errorf("failed to create target: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return true, fmt.Errorf("failed to copy: %w", err)
	}
	if err := out.Close(); err != nil {
		return true, fmt.Errorf("failed to close target: %w", err)
	}

	if err := os.Chmod(target, info.Mode().Perm()); err != nil {
		b.logger.Debug("could not preserve permissions", "target", target, "error", err)
	}
	if err := os.Chtimes(target, info.ModTime(), info.ModTime()); err != nil {
		b.logger.Debug("could not preserve timestamps", "target", target, "error", err)
	}
	return true, nil
}
