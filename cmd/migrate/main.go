package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"coursehub.org/internal/migrate"
	"coursehub.org/internal/obs"
	"coursehub.org/internal/store/pg"
)

func main() {
	dsn := flag.String("dsn", os.Getenv("COURSEHUB_PG_DSN"), "PostgreSQL DSN")
	flag.Parse()

	logger := obs.Logger()
	if *dsn == "" {
		logger.Fatal("missing DSN: provide via -dsn or COURSEHUB_PG_DSN")
	}
	if len(flag.Args()) == 0 {
		fmt.Fprintln(os.Stderr, "usage: migrate [up|down|seed|status]")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := pg.Open(*dsn)
	if err != nil {
		logger.Fatal("open db", zap.Error(err))
	}
	defer db.Close()

	mgr := migrate.NewManager(db, migrate.Migrations(), migrate.Seeds())

	cmd := flag.Arg(0)
	switch cmd {
	case "up":
		var applied []string
		applied, err = mgr.Up(ctx)
		logger.Info("migrations applied", zap.Strings("files", applied))
	case "down":
		var reverted string
		reverted, err = mgr.Down(ctx)
		logger.Info("migration reverted", zap.String("file", reverted))
	case "seed":
		var applied []string
		applied, err = mgr.Seed(ctx)
		logger.Info("seeds applied", zap.Strings("files", applied))
	case "status":
		var history []string
		history, err = mgr.Status(ctx)
		if err == nil {
			for _, item := range history {
				fmt.Println(item)
			}
		}
	default:
		logger.Fatal("unknown command", zap.String("command", cmd))
	}
	if err != nil {
		logger.Fatal("migrate failed", zap.String("command", cmd), zap.Error(err))
	}
}
