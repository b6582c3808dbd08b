package pg

import (
	"fmt"

	_ "github.com/lib/pq"
	"github.com/nimasrn/kamoa-supervision/pkg/logger"
	"github.com/pressly/goose/v3"
)

// Migrate applies every pending goose migration found in dir.
func Migrate(cfg Config, dir string) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	db, err := newSqlConnection(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err = goose.Up(db, dir); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}

	version, err := goose.GetDBVersion(db)
	if err == nil {
		logger.Info("migrations applied", "dir", dir, "version", version)
	}
	return nil
}
