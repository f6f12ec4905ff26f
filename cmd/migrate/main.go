// Command migrate applies and scaffolds the billing schema migrations.
package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/autoshop/backend/internal/infrastructure/config"
	"github.com/autoshop/backend/internal/infrastructure/logger"
	"github.com/autoshop/backend/internal/infrastructure/migration"
)

const defaultMigrationsDir = "migrations"

var errUsage = errors.New("bad arguments")

// schemaCommand runs against the database. args are the words after the
// command name.
type schemaCommand struct {
	usage string
	help  string
	run   func(m *migration.Migrator, args []string) error
}

var schemaCommands = map[string]schemaCommand{
	"up": {"up", "Apply all pending migrations", func(m *migration.Migrator, _ []string) error {
		return m.Up()
	}},
	"down": {"down", "Roll back all migrations", func(m *migration.Migrator, _ []string) error {
		return m.Down()
	}},
	"step": {"step <n>", "Apply n migrations, negative n rolls back", func(m *migration.Migrator, args []string) error {
		n, err := intArg(args)
		if err != nil {
			return err
		}
		return m.Steps(n)
	}},
	"goto": {"goto <version>", "Migrate up or down to version", func(m *migration.Migrator, args []string) error {
		v, err := intArg(args)
		if err != nil || v < 0 {
			return errUsage
		}
		return m.GoTo(uint(v))
	}},
	"version": {"version", "Show the applied version", func(m *migration.Migrator, _ []string) error {
		v, dirty, err := m.Version()
		if err != nil {
			return err
		}
		fmt.Printf("version %d (dirty=%t)\n", v, dirty)
		return nil
	}},
	"force": {"force <version>", "Record version as applied without running it", func(m *migration.Migrator, args []string) error {
		v, err := intArg(args)
		if err != nil {
			return err
		}
		return m.Force(v)
	}},
	"drop": {"drop -confirm", "Drop every object in the database", func(m *migration.Migrator, args []string) error {
		if len(args) == 0 || (args[0] != "-confirm" && args[0] != "--confirm") {
			return errUsage
		}
		return m.Drop()
	}},
}

func intArg(args []string) (int, error) {
	if len(args) == 0 {
		return 0, errUsage
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, errUsage
	}
	return n, nil
}

func main() {
	dir := flag.String("path", "", "migrations directory; the embedded set when empty")
	level := flag.String("log-level", "info", "debug, info, warn or error")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	log, err := logger.New(&logger.Config{Level: *level, Format: "console", Output: "stdout", Service: "migrate"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync(log) }()

	if err := dispatch(log, *dir, args[0], args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			usage()
		}
		log.Fatal("migrate failed", zap.String("command", args[0]), zap.Error(err))
	}
}

func dispatch(log *zap.Logger, dir, name string, args []string) error {
	files := dir
	if files == "" {
		files = defaultMigrationsDir
	}

	switch name {
	case "create":
		if len(args) == 0 {
			return errUsage
		}
		var description string
		if len(args) > 1 {
			description = args[1]
		}
		mf, err := migration.CreateMigration(files, args[0], description)
		if err != nil {
			return err
		}
		log.Info("migration created", zap.Uint("version", mf.Version), zap.String("up", mf.UpPath), zap.String("down", mf.DownPath))
		return nil
	case "list":
		names, err := migration.ListMigrations(files)
		if err != nil {
			return err
		}
		for _, n := range names {
			fmt.Println(n)
		}
		return nil
	}

	cmd, ok := schemaCommands[name]
	if !ok {
		return fmt.Errorf("unknown command %q: %w", name, errUsage)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	m, err := migration.New(db, dir, log)
	if err != nil {
		return err
	}
	defer m.Close()
	return cmd.run(m, args)
}

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintln(out, "usage: migrate [flags] <command> [arguments]")
	fmt.Fprintln(out, "\ncommands:")
	for _, name := range []string{"up", "down", "step", "goto", "version", "force", "drop"} {
		c := schemaCommands[name]
		fmt.Fprintf(out, "  %-22s %s\n", c.usage, c.help)
	}
	fmt.Fprintf(out, "  %-22s %s\n", "create <name> [desc]", "Scaffold the next up/down pair")
	fmt.Fprintf(out, "  %-22s %s\n", "list", "List migration files")
	fmt.Fprintln(out, "\nflags:")
	flag.PrintDefaults()
	fmt.Fprintln(out, "\nDatabase settings come from config.toml and ERP_DATABASE_* variables.")
}
