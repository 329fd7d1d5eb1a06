// Command migrate manages the Postgres schema outside of service startup.
//
//	migrate up
//	migrate down [n]
//	migrate version
//	migrate force <version>
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/mapofwonders/auth-service/config"
	"github.com/mapofwonders/auth-service/db"
	"github.com/mapofwonders/auth-service/internal/logger"
	"go.uber.org/zap"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: migrate up | down [n] | version | force <version>")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.Load()
	if cfg.DBDriver != "postgres" {
		log.Fatalf("migrations only apply to postgres, DB_DRIVER is %q", cfg.DBDriver)
	}

	zlog, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	migrator, err := db.NewMigrator(cfg.DBURL, zlog)
	if err != nil {
		zlog.Fatal("open migrator", zap.Error(err))
	}
	defer migrator.Close()

	if err := execute(migrator, flag.Args()); err != nil {
		zlog.Error("migration command failed", zap.String("command", flag.Arg(0)), zap.Error(err))
		migrator.Close()
		os.Exit(1)
	}
}

func execute(m *db.Migrator, args []string) error {
	switch args[0] {
	case "up":
		return m.Up()

	case "down":
		steps := 1
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid step count %q", args[1])
			}
			steps = n
		}
		return m.Down(steps)

	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			return err
		}
		fmt.Printf("version=%d dirty=%t\n", version, dirty)
		return nil

	case "force":
		if len(args) < 2 {
			return fmt.Errorf("force requires a version")
		}
		version, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid version %q", args[1])
		}
		return m.Force(version)

	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}
