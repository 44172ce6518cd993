package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"

	"github.com/devmarket/ledger-core/pkg/config"
	"github.com/devmarket/ledger-core/pkg/db"
	"github.com/devmarket/ledger-core/pkg/logger"
	"github.com/devmarket/ledger-core/pkg/migrate"
)

func main() {
	cmd := flag.String("cmd", "up", "up|down|status|version|create|validate|automigrate")
	dir := flag.String("dir", "", "migrations directory; empty applies the embedded schema")
	name := flag.String("name", "", "migration name for -cmd=create")
	version := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "migrate"})
	ctx := logg.WithField(context.Background(), "cmd", *cmd)

	// scaffolding works on the source tree and needs no config
	switch *cmd {
	case "create":
		if *name == "" {
			exit(ctx, logg, "missing -name for create", nil)
		}
		path, err := migrate.Scaffold(dirOrDefault(*dir), *name, time.Now())
		if err != nil {
			exit(ctx, logg, "scaffold migration", err)
		}
		fmt.Println("created migration:", path)
		return
	case "validate":
		if err := migrate.ValidateDir(dirOrDefault(*dir)); err != nil {
			exit(ctx, logg, "migration validation failed", err)
		}
		fmt.Println("migration validation passed")
		return
	}

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		exit(ctx, logg, "load config", err)
	}
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "driver": cfg.DB.Driver})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		exit(ctx, logg, "connect database", err)
	}
	defer dbClient.Close()

	if *cmd == "automigrate" {
		if err := migrate.AutoMigrateModels(dbClient.DB()); err != nil {
			exit(ctx, logg, "model auto-migration failed", err)
		}
		logg.Info(ctx, "models migrated")
		return
	}

	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		exit(ctx, logg, "sql handle", err)
	}
	runner, err := migrate.NewRunner(sqlDB, *dir)
	if err != nil {
		exit(ctx, logg, "build migration runner", err)
	}

	switch *cmd {
	case "up":
		results, err := runner.Up(ctx)
		report(ctx, logg, results...)
		if err != nil {
			exit(ctx, logg, "migrate up", err)
		}
	case "down":
		result, err := runner.Down(ctx)
		report(ctx, logg, result)
		if err != nil {
			exit(ctx, logg, "migrate down", err)
		}
	case "status":
		statuses, err := runner.Status(ctx)
		if err != nil {
			exit(ctx, logg, "migrate status", err)
		}
		for _, st := range statuses {
			applied := "pending"
			if st.State == goose.StateApplied {
				applied = st.AppliedAt.UTC().Format(time.RFC3339)
			}
			fmt.Printf("%-14d %-25s %s\n", st.Source.Version, applied, st.Source.Path)
		}
	case "version":
		if *version == "" {
			exit(ctx, logg, "missing -version for version command", nil)
		}
		results, err := runner.To(ctx, *version)
		report(ctx, logg, results...)
		if err != nil {
			exit(ctx, logg, "migrate to version", err)
		}
	default:
		exit(ctx, logg, "unknown -cmd value "+*cmd, nil)
	}
}

func report(ctx context.Context, logg *logger.Logger, results ...*goose.MigrationResult) {
	for _, res := range results {
		if res == nil || res.Source == nil {
			continue
		}
		logg.Info(logg.WithFields(ctx, map[string]any{
			"version":     res.Source.Version,
			"direction":   res.Direction,
			"duration_ms": res.Duration.Milliseconds(),
		}), "migration applied")
	}
}

func dirOrDefault(dir string) string {
	if dir == "" {
		return migrate.DefaultDir
	}
	return dir
}

func exit(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if err == nil {
		err = fmt.Errorf("%s", msg)
	}
	logg.Error(ctx, msg, err)
	os.Exit(1)
}
