package sqlstore

import (
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
)

// OpenPostgres connects to Postgres through the pgx stdlib driver.
func OpenPostgres(dsn string) (*RecordStore, error) {
	db, err := sqlx.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s, err := New(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	slog.Info("postgres record store connected", "dsn_len", len(dsn))
	return s, nil
}
