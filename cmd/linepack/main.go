package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime/pprof"
	"time"

	"github.com/spf13/cobra"

	"crosswarped.com/linepack"
	"crosswarped.com/linepack/internal/bqsource"
	"crosswarped.com/linepack/internal/config"
)

type options struct {
	configPath string

	width     int
	measure   string
	normalize bool
	noMemo    bool
	parallel  bool
	timeout   time.Duration
	logLevel  string
	logFormat string
	stats     bool

	bqProject  string
	bqTable    string
	bqColumn   string
	bqLocation string
	bqLimit    int

	profile           bool
	profileFile       string
	memoryProfileFile string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "linepack [flags] [file...]",
		Short: "Pack words into lines of an exact width",
		Long: `linepack reads whitespace-separated words from files, stdin or a
BigQuery column and prints them as lines as close to the width as
possible. Every word is used exactly once.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args, &opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", "", "YAML file to load settings from")
	f.IntVarP(&opts.width, "width", "w", linepack.DefaultWidth, "The line width")
	f.StringVar(&opts.measure, "measure", "runes", "How word length is measured: runes, graphemes or cells")
	f.BoolVar(&opts.normalize, "normalize", false, "NFC-normalize words before measuring")
	f.BoolVar(&opts.noMemo, "no-memo", false, "Disable the cache of failed searches")
	f.BoolVar(&opts.parallel, "parallel", false, "Search top-level candidates concurrently")
	f.DurationVar(&opts.timeout, "timeout", time.Minute, "The timeout for packing, 0 for none")
	f.StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn or error")
	f.StringVar(&opts.logFormat, "log-format", "text", "Log format: text or json")
	f.BoolVar(&opts.stats, "stats", false, "Print a run summary to stderr")

	f.StringVar(&opts.bqProject, "bq-project", "", "BigQuery project to read words from")
	f.StringVar(&opts.bqTable, "bq-table", "", "BigQuery table to read words from, as dataset.table")
	f.StringVar(&opts.bqColumn, "bq-column", "text", "BigQuery column holding the text")
	f.StringVar(&opts.bqLocation, "bq-location", "US", "BigQuery job location")
	f.IntVar(&opts.bqLimit, "bq-limit", 0, "Maximum rows to read from BigQuery, 0 for all")

	f.BoolVar(&opts.profile, "profile", false, "Profile the packer")
	f.StringVar(&opts.profileFile, "profile-file", "cpu.pprof", "The file to write the CPU profile to")
	f.StringVar(&opts.memoryProfileFile, "memory-profile-file", "mem.pprof", "The file to write the memory profile to")

	return cmd
}

// resolveConfig loads the config file, if any, and applies the flags that
// were set explicitly on top of it.
func resolveConfig(cmd *cobra.Command, opts *options) (config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return cfg, err
	}

	f := cmd.Flags()
	if f.Changed("width") {
		cfg.Width = opts.width
	}
	if f.Changed("measure") {
		cfg.Measure = opts.measure
	}
	if f.Changed("normalize") {
		cfg.Normalize = opts.normalize
	}
	if f.Changed("no-memo") {
		cfg.Memoize = !opts.noMemo
	}
	if f.Changed("parallel") {
		cfg.Parallel = opts.parallel
	}
	if f.Changed("timeout") {
		cfg.Timeout = opts.timeout
	}
	if f.Changed("log-level") {
		cfg.Log.Level = opts.logLevel
	}
	if f.Changed("log-format") {
		cfg.Log.Format = opts.logFormat
	}
	if f.Changed("bq-project") {
		cfg.BigQuery.Project = opts.bqProject
	}
	if f.Changed("bq-table") {
		cfg.BigQuery.Table = opts.bqTable
	}
	if f.Changed("bq-column") {
		cfg.BigQuery.Column = opts.bqColumn
	}
	if f.Changed("bq-location") {
		cfg.BigQuery.Location = opts.bqLocation
	}
	if f.Changed("bq-limit") {
		cfg.BigQuery.Limit = opts.bqLimit
	}

	return cfg, cfg.Validate()
}

func run(cmd *cobra.Command, args []string, opts *options) error {
	cfg, err := resolveConfig(cmd, opts)
	if err != nil {
		return err
	}
	logger := cfg.Log.NewLogger(cmd.ErrOrStderr())

	var mf *os.File
	if opts.profile {
		f, err := os.Create(opts.profileFile)
		if err != nil {
			return fmt.Errorf("creating profile file: %w", err)
		}
		defer f.Close()

		mf, err = os.Create(opts.memoryProfileFile)
		if err != nil {
			return fmt.Errorf("creating memory profile file: %w", err)
		}
		defer mf.Close()

		if err := pprof.StartCPUProfile(f); err != nil {
			return fmt.Errorf("starting CPU profile: %w", err)
		}
		defer pprof.StopCPUProfile()
	}

	ctx := cmd.Context()
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	src, closeSrc, err := openSource(ctx, cfg, args, cmd.InOrStdin(), logger)
	if err != nil {
		return err
	}
	defer closeSrc()

	packer := linepack.CreatePacker(cfg.Width, linepack.PackerParams{
		Measure:     cfg.MeasureValue(),
		Normalize:   cfg.Normalize,
		DisableMemo: !cfg.Memoize,
		Parallel:    cfg.Parallel,
		Logger:      logger,
	})

	sink := linepack.NewWriterSink(cmd.OutOrStdout())
	summary, err := packer.Pack(ctx, src, sink)
	if flushErr := sink.Flush(); flushErr != nil {
		err = errors.Join(err, fmt.Errorf("flush output: %w", flushErr))
	}

	if opts.stats {
		printSummary(cmd.ErrOrStderr(), summary)
	}
	if mf != nil {
		if err := pprof.WriteHeapProfile(mf); err != nil {
			logger.Warn("writing memory profile", slog.Any("error", err))
		}
	}
	return err
}

// openSource picks the word source: BigQuery when a table is configured,
// otherwise the named files in order, otherwise stdin. A file named "-" is
// stdin.
func openSource(ctx context.Context, cfg config.Config, args []string, stdin io.Reader, logger *slog.Logger) (linepack.WordSource, func(), error) {
	if cfg.BigQuery.Table != "" {
		if len(args) > 0 {
			return nil, nil, errors.New("cannot read from both files and BigQuery")
		}
		src, err := bqsource.New(ctx, bqsource.Params{
			ProjectID: cfg.BigQuery.Project,
			Table:     cfg.BigQuery.Table,
			Column:    cfg.BigQuery.Column,
			Location:  cfg.BigQuery.Location,
			Limit:     cfg.BigQuery.Limit,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return src, func() { src.Close() }, nil
	}

	if len(args) == 0 {
		return linepack.ReaderSource(stdin), func() {}, nil
	}

	var files []*os.File
	closeAll := func() {
		for _, f := range files {
			f.Close()
		}
	}
	sources := make([]linepack.WordSource, 0, len(args))
	for _, path := range args {
		if path == "-" {
			sources = append(sources, linepack.ReaderSource(stdin))
			continue
		}
		f, err := os.Open(path)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		files = append(files, f)
		sources = append(sources, linepack.ReaderSource(f))
	}
	return linepack.MultiSource(sources...), closeAll, nil
}

func printSummary(w io.Writer, s linepack.Summary) {
	fmt.Fprintln(w, "--------------------------------")
	fmt.Fprintf(w, "Words: %d\n", s.Words)
	fmt.Fprintf(w, "Lines: %d\n", s.Lines)
	fmt.Fprintf(w, "Degrades: %d\n", s.Degrades)
	fmt.Fprintf(w, "Search nodes: %d\n", s.SearchNodes)
	fmt.Fprintf(w, "Memo hits: %d\n", s.MemoHits)
}
