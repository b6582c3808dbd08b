package main

import (
	"os"
	"strings"

	"github.com/nimasrn/kamoa-supervision/internal/config"
	"github.com/nimasrn/kamoa-supervision/pkg/logger"
	"github.com/nimasrn/kamoa-supervision/pkg/pg"
)

// main.go --env=.env --dir=./migrations
func main() {
	defer logger.Sync()

	err := config.Load(getEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}
	pgConf := pg.Config{
		User:     config.Get().PostgresWriteUser,
		Host:     config.Get().PostgresWriteHost,
		Port:     config.Get().PostgresWritePort,
		Password: config.Get().PostgresWritePassword,
		Database: config.Get().PostgresWriteDatabase,
		SSLMode:  config.Get().PostgresSSLMode,
	}
	dir := getMigrationPath()
	if dir == "" {
		logger.Error("migration: no migrations directory")
		os.Exit(1)
	}
	err = pg.Migrate(pgConf, dir)
	if err != nil {
		logger.Error("migration: error running migrations", "error", err)
		os.Exit(1)
	}
}

func getEnvPath() string {
	if p := argValue("--env="); p != "" {
		return p
	}
	if _, err := os.Stat(".env"); err != nil {
		logger.Info("no .env file, using the environment only")
		return ""
	}
	return ".env"
}

func getMigrationPath() string {
	if p := argValue("--dir="); p != "" {
		return p
	}
	if _, err := os.Stat("./migrations"); err != nil {
		logger.Error("failed to open ./migrations", "error", err)
		return ""
	}
	return "./migrations"
}

func argValue(prefix string) string {
	for _, v := range os.Args {
		if strings.HasPrefix(v, prefix) {
			p := strings.TrimPrefix(v, prefix)
			if _, err := os.Stat(p); err != nil {
				logger.Error("failed to open "+p, "error", err)
				return ""
			}
			return p
		}
	}
	return ""
}
