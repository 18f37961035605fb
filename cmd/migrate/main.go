package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/classickits/jerseystore-backend/pkg/config"
	"github.com/classickits/jerseystore-backend/pkg/db"
	"github.com/classickits/jerseystore-backend/pkg/logger"
	"github.com/classickits/jerseystore-backend/pkg/migrate"
)

const usage = `usage: migrate [flags] <command>

commands:
  up                apply every pending migration
  down              roll back the latest migration
  status            list pending migrations
  to <version>      migrate up or down to YYYYMMDDHHMMSS
  create <name>     write a new empty migration into -dir
  validate          check migration names and goose sections
`

func main() {
	dir := flag.String("dir", "", "read migrations from this directory instead of the embedded set")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	cmd, args := flag.Arg(0), flag.Args()[1:]

	_ = godotenv.Load()

	// create and validate work on files only.
	switch cmd {
	case "create":
		target := *dir
		if target == "" {
			target = migrate.DefaultDir
		}
		if len(args) == 0 {
			exit("missing migration name")
		}
		path, err := migrate.CreateSQLMigration(target, args[0])
		if err != nil {
			exit(err.Error())
		}
		fmt.Println("created migration:", path)
		return
	case "validate":
		if err := migrate.Validate(migrate.Source(*dir)); err != nil {
			exit("migration validation failed: " + err.Error())
		}
		fmt.Println("migration validation passed")
		return
	}

	cfg, err := config.Load()
	if err != nil {
		exit("load config: " + err.Error())
	}
	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{"env": cfg.App.Env, "cmd": cmd})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer dbClient.Close()

	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		logg.Error(ctx, "failed to unwrap sql database", err)
		os.Exit(1)
	}
	migrator, err := migrate.New(sqlDB, migrate.Source(*dir))
	if err != nil {
		logg.Error(ctx, "failed to prepare migrator", err)
		os.Exit(1)
	}

	var steps []migrate.Step
	switch cmd {
	case "up":
		steps, err = migrator.Up(ctx)
	case "down":
		steps, err = migrator.Down(ctx)
	case "status":
		steps, err = migrator.Pending(ctx)
		if err == nil {
			fmt.Printf("%d pending migration(s)\n", len(steps))
		}
	case "to":
		if len(args) == 0 {
			exit("missing target version")
		}
		steps, err = migrator.To(ctx, args[0])
	default:
		flag.Usage()
		os.Exit(2)
	}

	for _, step := range steps {
		fmt.Printf("%d\t%s\t%s\n", step.Version, step.Path, step.Took)
	}
	if err != nil {
		logg.Error(ctx, "migration failed", err)
		os.Exit(1)
	}
	logg.Info(logg.WithField(ctx, "steps", len(steps)), "migration finished")
}

func exit(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
