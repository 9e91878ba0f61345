package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"

	"github.com/joacominatel/kqlpad/internal/app"
	"github.com/joacominatel/kqlpad/internal/clients"
	"github.com/joacominatel/kqlpad/internal/config"
	"github.com/joacominatel/kqlpad/internal/display"
	"github.com/joacominatel/kqlpad/internal/export"
	"github.com/joacominatel/kqlpad/internal/observability"
	"github.com/joacominatel/kqlpad/internal/statement"
	"github.com/joacominatel/kqlpad/internal/tui"
	"github.com/joacominatel/kqlpad/internal/tui/theme"
)

var version = "dev"

// Exit codes.
const (
	exitOK     = 0
	exitFailed = 1 // at least one statement failed
	exitUsage  = 2
)

const formatTable = "table"

type options struct {
	configDir  string
	connection string
	database   string
	file       string
	lines      string
	format     string
	out        string
	interact   bool
	details    bool
	storeToken bool
	version    bool
}

type streams struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	// terminal reports whether stdin is interactive.
	terminal bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	code := run(ctx, os.Args[1:], streams{
		stdin:    os.Stdin,
		stdout:   os.Stdout,
		stderr:   os.Stderr,
		terminal: isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd()),
	})
	stop()
	os.Exit(code)
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("kqlpad", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configDir, "config", "", "config directory (default ~/.kqlpad)")
	fs.StringVar(&opts.connection, "connection", "", "saved connection name or URL (https://cluster/db, postgres://..., file.duckdb)")
	fs.StringVar(&opts.database, "database", "", "database to run against, overriding the connection's")
	fs.StringVar(&opts.file, "file", "", "query file to run (default: first argument, then stdin)")
	fs.StringVar(&opts.lines, "lines", "", "only run these buffer lines, e.g. 3:8")
	fs.StringVar(&opts.format, "format", formatTable, "output format: table, csv, json or parquet")
	fs.StringVar(&opts.out, "out", "", "write results to this file instead of stdout")
	fs.BoolVar(&opts.interact, "tui", false, "open the interactive editor")
	fs.BoolVar(&opts.details, "details", false, "print full error details")
	fs.BoolVar(&opts.storeToken, "store-token", false, "read a token from stdin and store it in the keyring for -connection")
	fs.BoolVar(&opts.version, "version", false, "print the version and exit")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if opts.file == "" && fs.NArg() > 0 {
		opts.file = fs.Arg(0)
	}
	switch opts.format {
	case formatTable, export.FormatCSV, export.FormatJSON, export.FormatParquet:
	default:
		return options{}, fmt.Errorf("unsupported -format %q", opts.format)
	}
	if opts.format == export.FormatParquet && opts.out == "" {
		return options{}, fmt.Errorf("-format parquet requires -out")
	}
	return opts, nil
}

func run(ctx context.Context, args []string, std streams) int {
	opts, err := parseFlags(args, std.stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintf(std.stderr, "kqlpad: %v\n", err)
		return exitUsage
	}
	if opts.version {
		fmt.Fprintln(std.stdout, "kqlpad", version)
		return exitOK
	}

	cfg, err := config.Load(opts.configDir)
	if err != nil {
		fmt.Fprintf(std.stderr, "kqlpad: %v\n", &app.ErrConfig{Cause: err})
		return exitUsage
	}

	secrets := config.NewSecrets(nil)
	if opts.storeToken {
		return storeToken(opts, secrets, std)
	}

	if err := theme.Use(cfg.Preferences.Theme); err != nil {
		fmt.Fprintf(std.stderr, "kqlpad: %v, using default theme\n", err)
	}

	interactive := opts.interact || (opts.file == "" && std.terminal)

	logger, closeLog, err := newLogger(cfg.Log, interactive, std.stderr)
	if err != nil {
		fmt.Fprintf(std.stderr, "kqlpad: %v\n", err)
		return exitUsage
	}
	defer closeLog()

	if cfg.Metrics.Address != "" {
		server, err := observability.StartMetricsServer(cfg.Metrics.Address, logger)
		if err != nil {
			fmt.Fprintf(std.stderr, "kqlpad: %v\n", err)
			return exitUsage
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()
	}

	factory := clients.NewFactory(cfg, secrets, version, logger)
	service := app.NewService(factory, app.Options{
		Logger:      logger,
		Application: cfg.Execution.Application,
		User:        cfg.Execution.User,
		Version:     version,
		Timeout:     cfg.Execution.Timeout,
	})
	defer func() {
		if err := service.Close(); err != nil {
			logger.Warn("close_clients_failed", slog.String("error", err.Error()))
		}
	}()

	if interactive {
		return runTUI(cfg, opts, service, std)
	}
	return runBatch(ctx, cfg, opts, service, std)
}

func newLogger(cfg config.Log, interactive bool, stderr io.Writer) (*slog.Logger, func(), error) {
	if cfg.File != "" {
		file, err := observability.OpenLogFile(cfg.File)
		if err != nil {
			return nil, nil, err
		}
		return observability.NewLogger(cfg, file), func() { _ = file.Close() }, nil
	}
	if interactive {
		// The terminal belongs to the editor.
		return observability.NewLogger(cfg, io.Discard), func() {}, nil
	}
	return observability.NewLogger(cfg, stderr), func() {}, nil
}

func storeToken(opts options, secrets *config.Secrets, std streams) int {
	if opts.connection == "" {
		fmt.Fprintln(std.stderr, "kqlpad: -store-token requires -connection")
		return exitUsage
	}
	data, err := readAll(std.stdin)
	if err != nil {
		fmt.Fprintf(std.stderr, "kqlpad: read token: %v\n", err)
		return exitUsage
	}
	if err := secrets.StoreToken(opts.connection, data); err != nil {
		fmt.Fprintf(std.stderr, "kqlpad: %v\n", err)
		return exitUsage
	}
	fmt.Fprintf(std.stdout, "Stored token for %s\n", opts.connection)
	return exitOK
}

// resolveConnection picks the -connection target: a saved name, then a URL,
// then the configured default.
func resolveConnection(cfg *config.Config, name, database string) (*config.Connection, error) {
	var conn config.Connection
	switch {
	case name == "":
		def := config.DefaultConnection(cfg)
		if def == nil {
			return nil, errors.New("no connection: pass -connection or add one to the config file")
		}
		conn = *def
	default:
		if saved, ok := cfg.Connection(name); ok {
			conn = *saved
			break
		}
		parsed, err := config.ParseURL(name)
		if err != nil {
			return nil, fmt.Errorf("connection %q is not saved and is not a valid URL: %w", name, err)
		}
		conn = parsed
	}
	if database != "" {
		conn.Database = database
	}
	return &conn, nil
}

func runTUI(cfg *config.Config, opts options, service *app.Service, std streams) int {
	var conn *config.Connection
	if opts.connection != "" {
		resolved, err := resolveConnection(cfg, opts.connection, opts.database)
		if err != nil {
			fmt.Fprintf(std.stderr, "kqlpad: %v\n", err)
			return exitUsage
		}
		conn = resolved
	}

	var query string
	if opts.file != "" {
		data, err := os.ReadFile(opts.file)
		if err != nil {
			fmt.Fprintf(std.stderr, "kqlpad: %v\n", err)
			return exitUsage
		}
		query = string(data)
	}

	exportDir, err := os.Getwd()
	if err != nil {
		exportDir = "."
	}

	model := tui.NewModel(service, cfg, tui.Options{
		ConfigDir:  opts.configDir,
		ExportDir:  exportDir,
		Connection: conn,
		Query:      query,
	})
	p := tea.NewProgram(model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(std.stderr, "kqlpad: error running program: %v\n", err)
		return exitFailed
	}
	return exitOK
}

func runBatch(ctx context.Context, cfg *config.Config, opts options, service *app.Service, std streams) int {
	conn, err := resolveConnection(cfg, opts.connection, opts.database)
	if err != nil {
		fmt.Fprintf(std.stderr, "kqlpad: %v\n", err)
		return exitUsage
	}

	buffer, err := readBuffer(opts.file, std.stdin)
	if err != nil {
		fmt.Fprintf(std.stderr, "kqlpad: %v\n", err)
		return exitUsage
	}
	if opts.lines != "" {
		r, err := statement.ParseLineRange(opts.lines)
		if err != nil {
			fmt.Fprintf(std.stderr, "kqlpad: %v\n", err)
			return exitUsage
		}
		buffer = statement.SelectLines(buffer, r)
	}

	outcomes, err := service.ExecuteBuffer(ctx, conn.Descriptor(), buffer)
	if errors.Is(err, app.ErrNoStatements) {
		fmt.Fprintf(std.stderr, "kqlpad: %v\n", err)
		return exitUsage
	}

	if werr := writeOutcomes(opts, outcomes, std); werr != nil {
		fmt.Fprintf(std.stderr, "kqlpad: %v\n", werr)
		return exitFailed
	}
	if err != nil {
		fmt.Fprintf(std.stderr, "kqlpad: %v\n", err)
		return exitFailed
	}

	for _, o := range outcomes {
		if o.Failed() || o.Unreadable() {
			return exitFailed
		}
	}
	return exitOK
}

func printTable(w io.Writer, details bool, outcomes []app.Outcome) error {
	printer := display.NewPrinter(w)
	printer.Details = details
	return printer.Print(outcomes)
}

// printTableFile writes the table output to path. A failed close is reported
// since it can lose buffered output.
func printTableFile(path string, details bool, outcomes []app.Outcome) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := printTable(file, details, outcomes); err != nil {
		_ = file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	return nil
}

// writeOutcomes prints results in the chosen format. Failures always go to
// stderr as error blocks when the output is machine readable.
func writeOutcomes(opts options, outcomes []app.Outcome, std streams) error {
	if opts.format == formatTable {
		var err error
		if opts.out == "" {
			err = printTable(std.stdout, opts.details, outcomes)
		} else {
			err = printTableFile(opts.out, opts.details, outcomes)
		}
		if err != nil {
			return err
		}
		if len(outcomes) > 1 {
			fmt.Fprintln(std.stderr, display.Summary(outcomes))
		}
		return nil
	}

	errPrinter := display.NewPrinter(std.stderr)
	errPrinter.Details = opts.details
	written := 0
	for _, o := range outcomes {
		if o.Failed() || o.Unreadable() {
			if err := errPrinter.PrintOutcome(o); err != nil {
				return err
			}
			continue
		}
		if opts.out == "" {
			if err := export.Write(std.stdout, opts.format, *o.Result); err != nil {
				return err
			}
		} else {
			path := outputPath(opts.out, written)
			if err := export.WriteFile(path, opts.format, *o.Result); err != nil {
				return err
			}
			fmt.Fprintf(std.stderr, "Exported %d rows to %s\n", o.Result.RowCount, path)
		}
		written++
	}
	return nil
}

// outputPath numbers every result after the first: out.csv, out_2.csv, ...
func outputPath(out string, n int) string {
	if n == 0 {
		return out
	}
	ext := filepath.Ext(out)
	return fmt.Sprintf("%s_%d%s", strings.TrimSuffix(out, ext), n+1, ext)
}

func readBuffer(file string, stdin io.Reader) (string, error) {
	if file != "" && file != "-" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read query file: %w", err)
		}
		return string(data), nil
	}
	data, err := readAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return data, nil
}

func readAll(r io.Reader) (string, error) {
	if r == nil {
		return "", nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
