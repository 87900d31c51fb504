// Command bookingctl is the operator CLI for the consultation booking store.
//
//	bookingctl migrate [--status]
//	bookingctl purge-orphans --as admin@example.edu [--json]
//	bookingctl occupancy --slot 12
//	bookingctl token --email ana@example.edu [--ttl 24h]
//
// It reads the same DB_* variables as the server.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/iliyamo/consultation-booking/internal/config"
	"github.com/iliyamo/consultation-booking/internal/database"
	"github.com/iliyamo/consultation-booking/internal/logging"
)

type env struct {
	cfg    config.Config
	db     *sql.DB
	logger *zap.Logger
	out    io.Writer
}

type command struct {
	summary string
	run     func(ctx context.Context, e *env, args []string) error
}

var commands = map[string]command{
	"migrate":       {"apply pending schema migrations", runMigrate},
	"purge-orphans": {"delete reservations whose references no longer resolve", runPurge},
	"occupancy":     {"show the occupancy of a slot", runOccupancy},
	"token":         {"sign a development bearer token for an existing user", runToken},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		usage(out)
		return nil
	}
	cmd, ok := commands[args[0]]
	if !ok {
		usage(out)
		return fmt.Errorf("unknown command %q", args[0])
	}

	cfg := config.LoadStore()
	db, err := database.Open(cfg)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.DBDriver, err)
	}
	defer db.Close()

	e := &env{cfg: cfg, db: db, logger: logging.NewCLI(os.Getenv("BOOKINGCTL_VERBOSE") != ""), out: out}
	defer func() { _ = e.logger.Sync() }()
	return cmd.run(ctx, e, args[1:])
}

func usage(out io.Writer) {
	fmt.Fprintln(out, "Usage: bookingctl <command> [flags]")
	fmt.Fprintln(out)
	names := make([]string, 0, len(commands))
	for n := range commands {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintf(out, "  %-14s %s\n", n, commands[n].summary)
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Run 'bookingctl <command> --help' for command flags.")
}

// parseFlags parses args into fs.  --help prints the flags and reports
// pflag.ErrHelp, which callers treat as success.
func parseFlags(fs *pflag.FlagSet, args []string, out io.Writer) error {
	fs.SetOutput(out)
	return fs.Parse(args)
}
