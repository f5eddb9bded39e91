// Command migrate manages the goose schema for craftcart.
//
//	migrate [-dir path] up|down|redo|status|validate
//	migrate [-dir path] version <YYYYMMDDHHMMSS>
//	migrate [-dir path] create <name>
//
// Without -dir, database commands use the migrations embedded in the binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/craftcart-backend/pkg/config"
	"github.com/angelmondragon/craftcart-backend/pkg/db"
	"github.com/angelmondragon/craftcart-backend/pkg/logger"
	"github.com/angelmondragon/craftcart-backend/pkg/migrate"
)

var errUsage = errors.New("usage: migrate [-dir path] up|down|redo|status|validate|version <v>|create <name>")

func main() {
	dir := flag.String("dir", "", "migrations directory on disk (default: embedded)")
	flag.Parse()

	_ = godotenv.Load()
	logg := logger.New(logger.Options{ServiceName: "craftcart-migrate"})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, logg, *dir, flag.Args())
	stop()
	if err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		logg.Error(ctx, "migrate failed", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logg *logger.Logger, dir string, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	command, rest := args[0], args[1:]

	switch command {
	case "create":
		if len(rest) != 1 {
			return errUsage
		}
		target := dir
		if target == "" {
			target = migrate.DefaultDir
		}
		path, err := migrate.CreateSQLMigration(target, rest[0], time.Now())
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	case "validate":
		if dir == "" {
			return migrate.ValidateFS(migrate.Embedded(), "migrations")
		}
		return migrate.ValidateDir(dir)
	case "up", "down", "redo", "status":
		if len(rest) != 0 {
			return errUsage
		}
	case "version":
		if len(rest) != 1 {
			return errUsage
		}
	default:
		return errUsage
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logg = logger.New(logger.Options{
		ServiceName: "craftcart-migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "command": command, "dir": dir})

	client, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer client.Close()
	sqlDB, err := client.SQL()
	if err != nil {
		return err
	}

	if command == "version" {
		err = migrate.MigrateToVersion(ctx, sqlDB, dir, rest[0])
	} else {
		err = migrate.Run(ctx, sqlDB, dir, command)
	}
	if err != nil {
		return err
	}
	logg.Info(ctx, "migrate completed")
	return nil
}
