package main

import (
	"errors"
	"flag"
	"fmt"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/stemsi/mcqprep-backend/internal/config"
	"github.com/stemsi/mcqprep-backend/internal/logger"
)

// migrate applies the question bank schema.
//
// Usage: migrate [-path migrations] up|down|steps <n>|version|force <version>
func main() {
	var migrationDir string
	flag.StringVar(&migrationDir, "path", "migrations", "Path to migration files")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	if cfg.DatabaseURL == "" {
		log.Fatal().Msg("DATABASE_URL is not set")
	}

	args := flag.Args()
	if len(args) < 1 {
		printUsage()
		return
	}

	m, err := migrate.New("file://"+migrationDir, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Str("path", migrationDir).Msg("Migration failed to initialize")
	}
	defer m.Close()

	// ErrNoChange counts as success.
	run := func(command string, err error) {
		if err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatal().Err(err).Str("command", command).Msg("Migration failed")
		}
		log.Info().Str("command", command).Msg("Migration complete")
	}

	switch args[0] {
	case "up":
		run("up", m.Up())
	case "down":
		run("down", m.Down())
	case "steps":
		n, ok := intArg(args)
		if !ok {
			printUsage()
			return
		}
		run("steps "+args[1], m.Steps(n))
	case "version":
		version, dirty, err := m.Version()
		if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
			log.Fatal().Err(err).Msg("Version failed")
		}
		fmt.Printf("Version: %d, Dirty: %t\n", version, dirty)
	case "force":
		v, ok := intArg(args)
		if !ok {
			printUsage()
			return
		}
		if err := m.Force(v); err != nil {
			log.Fatal().Err(err).Int("version", v).Msg("Force failed")
		}
		log.Info().Int("version", v).Msg("Forced version")
	default:
		printUsage()
	}
}

func intArg(args []string) (int, bool) {
	if len(args) < 2 {
		return 0, false
	}
	v, err := strconv.Atoi(args[1])
	return v, err == nil
}

func printUsage() {
	fmt.Println("Usage: migrate [flags] <command>")
	fmt.Println("Commands: up, down, steps <n>, version, force <version>")
	fmt.Println("Flags:")
	flag.PrintDefaults()
}
