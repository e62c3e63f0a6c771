package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/yuanying/ibex/internal/config"
	"github.com/yuanying/ibex/internal/export"
	"github.com/yuanying/ibex/internal/library"
)

var (
	validLogLevels  = []string{"debug", "info", "warn", "error"}
	validLogFormats = []string{"text", "json"}
)

type cliOptions struct {
	ManifestPath string
	Destination  string
	Reader       string
	Verify       bool
	Logger       *slog.Logger
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ibex <manifest> <destination>",
		Short: "Export books from an Apple Books library",
		Long: `ibex reads the Apple Books library manifest (Books.plist) and exports
every book into a new destination directory.

EPUB books stored as directories are packed into .epub archives; all
other books are copied as they are.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := readCLIOptions(cmd, args)
			if err != nil {
				return err
			}
			return runExport(opts)
		},
	}

	flags := cmd.PersistentFlags()
	flags.String("reader", cfg.Reader, "Manifest reader")
	flags.String("log-level", cfg.LogLevel, "Log level (debug|info|warn|error)")
	flags.String("log-format", cfg.LogFormat, "Log format (text|json)")
	flags.BoolP("verbose", "v", false, "Enable debug logging (overrides --log-level)")
	cmd.Flags().Bool("verify", cfg.Verify, "Check every produced EPUB archive after export")

	cmd.AddCommand(newListCmd(cfg))
	return cmd
}

func newListCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "list [manifest]",
		Short: "List the books of a library manifest",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manifest := cfg.Manifest
			if len(args) == 1 {
				manifest = args[0]
			}
			opts, err := readCLIOptions(cmd, []string{manifest, ""})
			if err != nil {
				return err
			}
			books, closeLib, err := loadBooks(opts)
			if err != nil {
				return err
			}
			defer closeLib()
			return writeBookTable(cmd.OutOrStdout(), books)
		},
	}
}

// readCLIOptions validates flags and resolves the manifest path.
func readCLIOptions(cmd *cobra.Command, args []string) (*cliOptions, error) {
	flags := cmd.Flags()
	logLevel, _ := flags.GetString("log-level")
	logFormat, _ := flags.GetString("log-format")
	verbose, _ := flags.GetBool("verbose")
	reader, _ := flags.GetString("reader")
	verify, _ := flags.GetBool("verify")

	logLevel = strings.ToLower(logLevel)
	logFormat = strings.ToLower(logFormat)
	if !slices.Contains(validLogLevels, logLevel) {
		return nil, fmt.Errorf("--log-level must be one of %s, got %q", strings.Join(validLogLevels, "|"), logLevel)
	}
	if !slices.Contains(validLogFormats, logFormat) {
		return nil, fmt.Errorf("--log-format must be one of %s, got %q", strings.Join(validLogFormats, "|"), logFormat)
	}
	if verbose {
		logLevel = "debug"
	}

	manifest, err := config.ExpandHome(args[0])
	if err != nil {
		return nil, err
	}

	return &cliOptions{
		ManifestPath: manifest,
		Destination:  args[1],
		Reader:       reader,
		Verify:       verify,
		Logger:       buildLogger(os.Stderr, logLevel, logFormat),
	}, nil
}

func buildLogger(w io.Writer, level, format string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handlerOpts := &slog.HandlerOptions{Level: lvl}
	if strings.ToLower(format) == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

// loadBooks reads the manifest. The returned func releases the library.
func loadBooks(opts *cliOptions) ([]library.Book, func(), error) {
	reader, err := library.NewReader(opts.Reader, opts.Logger)
	if err != nil {
		return nil, nil, err
	}
	lib, err := reader.Read(opts.ManifestPath)
	if err != nil {
		return nil, nil, err
	}
	books, err := lib.Books()
	if err != nil {
		lib.Close()
		return nil, nil, err
	}
	return books, func() { lib.Close() }, nil
}

func runExport(opts *cliOptions) error {
	books, closeLib, err := loadBooks(opts)
	if err != nil {
		return fmt.Errorf("failed to read manifest: %w", err)
	}
	defer closeLib()

	opts.Logger.Info("library loaded", "manifest", opts.ManifestPath, "books", len(books))

	driver := export.NewDriver(opts.Logger, export.Options{Verify: opts.Verify})
	if _, err := driver.Run(books, opts.Destination); err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	return nil
}

func writeBookTable(w io.Writer, books []library.Book) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKIND\tAUTHOR\tPATH")
	for _, b := range books {
		kind := export.KindCopy
		if b.IsArchive() {
			kind = export.KindArchive
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", b.Label(), kind, b.Author(), b.SourcePath())
	}
	return tw.Flush()
}

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := newRootCmd(cfg).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
