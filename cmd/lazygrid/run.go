package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Alp4ka/lazypager"
	"github.com/Alp4ka/lazypager/internal/config"
	"github.com/natefinch/atomic"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

type row = map[string]any

// options holds parsed command line flags.
type options struct {
	configPath string
	overrides  config.Config
	changed    config.Keys
	filters    []string
	sorts      []string
	start      int
	count      int
	out        string
	verbose    bool
	help       bool
}

// flagKeys maps flags that override config values to their config keys.
var flagKeys = map[string]string{
	"driver":            "driver",
	"dsn":               "dsn",
	"table":             "table",
	"key":               "key_column",
	"search":            "search_columns",
	"min-filter-length": "min_filter_length",
	"combine":           "combine",
}

func parseFlags(args []string) (options, *flag.FlagSet, error) {
	var opts options

	flagSet := flag.NewFlagSet("lazygrid", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)

	flagSet.StringVarP(&opts.configPath, "config", "c", "", "Config file (JSONC)")
	flagSet.StringVar(&opts.overrides.Driver, "driver", "", "Database driver: sqlite, mysql or postgres")
	flagSet.StringVar(&opts.overrides.DSN, "dsn", "", "Data source name")
	flagSet.StringVar(&opts.overrides.Table, "table", "", "Table to page through")
	flagSet.StringVar(&opts.overrides.KeyColumn, "key", "", "Unique key column")
	flagSet.StringSliceVar(&opts.overrides.SearchColumns, "search", nil, "Columns searched by filters without a property")
	flagSet.IntVar(&opts.overrides.MinFilterLength, "min-filter-length", 0, "Filter texts must be longer than this")
	flagSet.StringVar(&opts.overrides.Combine, "combine", "", "How several filters combine: all or last")
	flagSet.StringArrayVarP(&opts.filters, "filter", "f", nil, "Filter as 'text' or 'property=text' (repeatable)")
	flagSet.StringArrayVarP(&opts.sorts, "sort", "s", nil, "Sort as 'column asc|desc' (repeatable)")
	flagSet.IntVar(&opts.start, "start", 0, "Offset of the first row")
	flagSet.IntVarP(&opts.count, "count", "n", lazypager.DefaultPageSize, "Number of rows")
	flagSet.StringVarP(&opts.out, "out", "o", "", "Write rows to this file instead of stdout")
	flagSet.BoolVarP(&opts.verbose, "verbose", "v", false, "Debug logging")
	flagSet.BoolVarP(&opts.help, "help", "h", false, "Show help")

	err := flagSet.Parse(args)
	if err != nil {
		return options{}, flagSet, err
	}

	if flagSet.NArg() > 0 {
		return options{}, flagSet, fmt.Errorf("unexpected arguments: %s", strings.Join(flagSet.Args(), " "))
	}

	if opts.start < 0 {
		return options{}, flagSet, errors.New("--start must be non-negative")
	}

	opts.changed = make(config.Keys)
	for name, key := range flagKeys {
		if flagSet.Changed(name) {
			opts.changed[key] = true
		}
	}

	return opts, flagSet, nil
}

// parseFilter reads 'text' or 'property=text'.
func parseFilter(s string) lazypager.StringFilter {
	property, text, found := strings.Cut(s, "=")
	if !found || property == "" || strings.ContainsAny(property, " \t") {
		return lazypager.StringFilter{Text: s}
	}

	return lazypager.StringFilter{Property: property, Text: text}
}

func run(ctx context.Context, out, errOut io.Writer, args []string) int {
	opts, flagSet, err := parseFlags(args)
	if err != nil {
		fmt.Fprintln(errOut, "error:", err)
		printUsage(errOut, flagSet)

		return exitUsage
	}

	if opts.help {
		printUsage(out, flagSet)

		return exitOK
	}

	cfg, err := config.Load(config.LoadInput{
		ConfigPath: opts.configPath,
		Overrides:  opts.overrides,
		Changed:    opts.changed,
	})
	if err != nil {
		fmt.Fprintln(errOut, "error:", err)

		return exitUsage
	}

	sort, err := lazypager.ParseSort(opts.sorts, cfg.SortableColumns())
	if err != nil {
		fmt.Fprintln(errOut, "error:", err)

		return exitUsage
	}

	logger, err := newLogger(opts.verbose)
	if err != nil {
		fmt.Fprintln(errOut, "error: cannot create logger:", err)

		return exitError
	}
	defer func() { _ = logger.Sync() }()

	err = page(ctx, out, errOut, cfg, opts, sort, logger)
	if err != nil {
		logger.Error("paging failed", zap.Error(err))
		fmt.Fprintln(errOut, "error:", err)

		return exitError
	}

	return exitOK
}

func page(
	ctx context.Context,
	out, errOut io.Writer,
	cfg config.Config,
	opts options,
	sort lazypager.Orderings,
	logger *zap.Logger,
) error {
	db, err := openDB(cfg)
	if err != nil {
		return err
	}

	key := func(r row) any { return r[cfg.KeyColumn] }

	source := lazypager.NewGORMTableSource[row](db, cfg.Table).
		WithSearchColumns(cfg.SearchColumns...).
		WithColumnMapping(cfg.Columns).
		WithKey(cfg.KeyColumn, key)

	collection := lazypager.New[row](source, nil).
		WithMinFilterLength(cfg.MinFilterLength).
		WithFilterCombination(cfg.FilterCombination()).
		WithIdentity(key).
		WithLogger(logger)

	err = collection.SortBy(sort...)
	if err != nil {
		return err
	}

	filters := make([]lazypager.StringFilter, 0, len(opts.filters))
	for _, f := range opts.filters {
		filters = append(filters, parseFilter(f))
	}

	if len(filters) > 0 {
		collection.SetFilters(filters...)
	}

	total, err := collection.Size(ctx)
	if err != nil {
		return err
	}

	count, ok := lazypager.IsNormalizedPageSizeMax(opts.count, cfg.MaxPageSize)
	if !ok {
		logger.Warn("page size adjusted", zap.Int("requested", opts.count), zap.Int("used", count))
	}

	rows, err := collection.ItemIDs(ctx, opts.start, count)
	if err != nil {
		return err
	}

	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	for _, r := range rows {
		err = enc.Encode(r)
		if err != nil {
			return fmt.Errorf("cannot encode row: %w", err)
		}
	}

	if opts.out != "" {
		err = atomic.WriteFile(opts.out, &buf)
		if err != nil {
			return fmt.Errorf("cannot write %s: %w", opts.out, err)
		}
	} else {
		_, err = buf.WriteTo(out)
		if err != nil {
			return fmt.Errorf("cannot write rows: %w", err)
		}
	}

	fmt.Fprintf(errOut, "rows %d-%d of %d\n", opts.start, opts.start+len(rows), total)

	return nil
}

func openDB(cfg config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch cfg.Driver {
	case config.DriverSQLite:
		dialector = sqlite.Open(cfg.DSN)
	case config.DriverMySQL:
		dialector = mysql.Open(cfg.DSN)
	case config.DriverPostgres:
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("%w '%s'", config.ErrUnknownDriver, cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Discard})
	if err != nil {
		return nil, fmt.Errorf("cannot open %s database: %w", cfg.Driver, err)
	}

	return db, nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}

	return zap.NewProduction()
}

func printUsage(w io.Writer, flagSet *flag.FlagSet) {
	fmt.Fprintln(w, "Usage: lazygrid [options]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Pages through a table and prints the rows as JSON lines.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Options:")
	fmt.Fprint(w, flagSet.FlagUsages())
}
