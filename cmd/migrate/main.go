package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/maisonlocation/costume-rental-backend/internal/catalog"
	"github.com/maisonlocation/costume-rental-backend/pkg/config"
	"github.com/maisonlocation/costume-rental-backend/pkg/db"
	"github.com/maisonlocation/costume-rental-backend/pkg/logger"
	"github.com/maisonlocation/costume-rental-backend/pkg/migrate"
)

const usage = `usage: migrate [flags] <command>

commands:
  up        apply pending migrations
  down      roll back the latest migration
  status    list migrations and their state
  to N      migrate up or down to version N
  seed      insert the demo catalog
  create N  write an empty migration named N under -dir
  check     lint the migrations under -dir
`

func main() {
	dir := flag.String("dir", migrate.SourceDir, "migrations directory for create and check")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	_ = godotenv.Load()

	if err := run(flag.Arg(0), flag.Args()[1:], *dir); err != nil {
		fmt.Fprintf(os.Stderr, "migrate %s: %v\n", flag.Arg(0), err)
		os.Exit(1)
	}
}

func run(cmd string, args []string, dir string) error {
	// file commands work without a database
	switch cmd {
	case "create":
		if len(args) != 1 {
			return fmt.Errorf("create takes one name")
		}
		path, err := migrate.Create(dir, args[0])
		if err == nil {
			fmt.Println("created", path)
		}
		return err
	case "check":
		if err := migrate.Check(os.DirFS(dir)); err != nil {
			return err
		}
		fmt.Println("migrations ok")
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{"env": cfg.App.Env, "cmd": cmd})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer dbClient.Close()

	if cmd == "seed" {
		inserted, err := catalog.Seed(ctx, dbClient.DB())
		if err != nil {
			return err
		}
		logg.Info(logg.WithField(ctx, "inserted", inserted), "catalog seeded")
		return nil
	}

	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		return err
	}
	runner, err := migrate.NewRunner(sqlDB, nil)
	if err != nil {
		return err
	}

	switch cmd {
	case "up":
		applied, err := runner.Up(ctx)
		if err != nil {
			return err
		}
		logg.Info(logg.WithField(ctx, "applied", applied), "migrations applied")
		return nil
	case "down":
		return runner.Down(ctx)
	case "status":
		return runner.Status(ctx, os.Stdout)
	case "to":
		if len(args) != 1 {
			return fmt.Errorf("to takes one version")
		}
		target, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("version %q: %w", args[0], err)
		}
		return runner.To(ctx, target)
	default:
		flag.Usage()
		return fmt.Errorf("unknown command")
	}
}
