package pg

import (
	_ "github.com/lib/pq"
	"github.com/leaseline/lead-gateway/pkg/logger"
	"github.com/pressly/goose/v3"
)

// Migrate runs all goose migrations in dir against the write database.
func Migrate(cfg Config, dir string) error {
	if err := goose.SetDialect("postgres"); err != nil {
		logger.Fatal(err)
	}

	db, err := newSqlConnection(cfg)
	if err != nil {
		return err
	}
	if err = goose.Up(db, dir); err != nil {
		logger.Fatal(err)
	}

	return nil
}
