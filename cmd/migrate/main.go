// Command migrate applies the embedded schema migrations to the receipts
// database. The connection comes from the same config files and
// RECEIPTS_DB_* variables the server reads unless -dsn is given.
//
//	migrate [-dsn url] up | down | steps N | version | force V
package main

import (
	"embed"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/lmittmann/tint"

	"github.com/JaimeStill/receipts/internal/config"
)

//go:embed migrations/*.sql
var migrations embed.FS

func main() {
	logger := slog.New(tint.NewHandler(os.Stderr, nil))

	dsn := flag.String("dsn", "", "database URL; overrides config")
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), "usage: migrate [-dsn url] up | down | steps N | version | force V")
		flag.PrintDefaults()
	}
	flag.Parse()

	if err := run(*dsn, flag.Args(), logger); err != nil {
		logger.Error("migrate failed", "error", err)
		if errors.Is(err, errUsage) {
			flag.Usage()
		}
		os.Exit(1)
	}
}

var errUsage = errors.New("invalid arguments")

func run(dsn string, args []string, logger *slog.Logger) error {
	if len(args) == 0 {
		return errUsage
	}

	if dsn == "" {
		db, err := config.LoadDatabase()
		if err != nil {
			return err
		}
		dsn = db.Dsn()
	}

	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", source, dsn)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer m.Close()
	m.Log = migrateLogger{logger}

	switch cmd := args[0]; cmd {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	case "steps", "force":
		if len(args) != 2 {
			return errUsage
		}
		n, convErr := strconv.Atoi(args[1])
		if convErr != nil {
			return fmt.Errorf("%w: %s %q", errUsage, cmd, args[1])
		}
		if cmd == "steps" {
			err = m.Steps(n)
		} else {
			err = m.Force(n)
		}
	case "version":
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}

	if errors.Is(err, migrate.ErrNoChange) {
		logger.Info("schema already current")
		err = nil
	}
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}

	v, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		logger.Info("no migrations applied")
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		logger.Info("schema version", "version", v, "dirty", dirty)
	}
	return nil
}

// migrateLogger routes migrate's progress output through slog.
type migrateLogger struct {
	logger *slog.Logger
}

func (l migrateLogger) Printf(format string, v ...any) {
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l migrateLogger) Verbose() bool { return false }
