package export

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/yuanying/ibex/internal/config"
	"github.com/yuanying/ibex/internal/epub"
	"github.com/yuanying/ibex/internal/library"
)

var ErrDestinationExists = errors.New("destination already exists")

// Options configures a Driver.
type Options struct {
	// Verify reopens each produced archive and logs structural findings.
	Verify bool
}

// Driver exports every book of a library, one at a time.
type Driver struct {
	builder *Builder
	logger  *slog.Logger
	opts    Options
}

// NewDriver creates a Driver.
func NewDriver(logger *slog.Logger, opts Options) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{
		builder: NewBuilder(logger),
		logger:  logger,
		opts:    opts,
	}
}

// Run creates dest with owner-only permissions and exports books into it.
// Failing to create dest is fatal; a failing book is logged and skipped.
func (d *Driver) Run(books []library.Book, dest string) (*Report, error) {
	dest, err := config.ExpandHome(dest)
	if err != nil {
		return nil, err
	}

	if err := os.Mkdir(dest, 0o700); err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("%w: %w", ErrDestinationExists, err)
		}
		return nil, fmt.Errorf("failed to create destination: %w", err)
	}

	report := &Report{Total: len(books)}
	for _, book := range books {
		res := d.exportOne(book, dest)
		report.Results = append(report.Results, res)
		if res.State == StateDone {
			report.Exported++
		} else {
			report.Failed++
		}
	}

	d.logger.Info("export finished",
		"destination", dest,
		"total", report.Total,
		"exported", report.Exported,
		"failed", report.Failed)
	return report, nil
}

func (d *Driver) exportOne(book library.Book, dest string) *Result {
	d.logger.Info("exporting", "book", book.Label(), "source", book.SourcePath())

	res, err := d.builder.Build(book, dest)
	if err != nil {
		d.logger.Error("export failed", "book", res.Book, "target", res.Target, "error", err)
		return res
	}

	if d.opts.Verify && res.Kind == KindArchive {
		d.verify(res)
	}
	return res
}

// verify never fails the book; problems become warnings.
func (d *Driver) verify(res *Result) {
	findings, err := epub.Verify(res.Target)
	if err != nil {
		findings = append(findings, err.Error())
	}
	for _, f := range findings {
		d.builder.warn(res, "verification: "+f, "target", res.Target)
	}
}
