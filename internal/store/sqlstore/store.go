// Package sqlstore persists memory records in a SQL table through sqlx.
// The same schema serves SQLite (modernc) and Postgres (pgx).
package sqlstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/nextlevelbuilder/gomemory/internal/store"
)

// RecordStore keeps one row per record, keyed by (file, id). Row order inside a
// file is preserved through the position column.
type RecordStore struct {
	db *sqlx.DB
}

var _ store.RecordStore = (*RecordStore)(nil)

type recordRow struct {
	ID   string `db:"id"`
	Data string `db:"data"`
}

// New wraps an open sqlx handle and ensures the schema exists.
func New(db *sqlx.DB) (*RecordStore, error) {
	s := &RecordStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *RecordStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS memory_records (
			file TEXT NOT NULL,
			id TEXT NOT NULL,
			position INTEGER NOT NULL,
			data TEXT NOT NULL,
			updated_at BIGINT NOT NULL,
			PRIMARY KEY (file, id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_memory_records_file ON memory_records(file, position)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *RecordStore) ListFiles(ctx context.Context) ([]string, error) {
	var files []string
	if err := s.db.SelectContext(ctx, &files, `SELECT DISTINCT file FROM memory_records ORDER BY file`); err != nil {
		return nil, fmt.Errorf("%w: list files: %v", store.ErrStorage, err)
	}
	return files, nil
}

func (s *RecordStore) ReadAll(ctx context.Context, file string) ([]store.Record, error) {
	var rows []recordRow
	q := s.db.Rebind(`SELECT id, data FROM memory_records WHERE file = ? ORDER BY position`)
	if err := s.db.SelectContext(ctx, &rows, q, file); err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", store.ErrStorage, file, err)
	}

	records := make([]store.Record, 0, len(rows))
	for _, row := range rows {
		var r store.Record
		if err := json.Unmarshal([]byte(row.Data), &r); err != nil {
			return nil, fmt.Errorf("%w: decode %s/%s: %v", store.ErrStorage, file, row.ID, err)
		}
		records = append(records, r)
	}
	return records, nil
}

func (s *RecordStore) WriteAll(ctx context.Context, file string, records []store.Record) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", store.ErrStorage, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM memory_records WHERE file = ?`), file); err != nil {
		return fmt.Errorf("%w: clear %s: %v", store.ErrStorage, file, err)
	}

	insert := tx.Rebind(`INSERT INTO memory_records (file, id, position, data, updated_at) VALUES (?, ?, ?, ?, ?)`)
	now := time.Now().UnixMilli()
	for i, r := range records {
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("%w: encode %s: %v", store.ErrStorage, r.ID, err)
		}
		if _, err := tx.ExecContext(ctx, insert, file, r.ID, i, string(data), now); err != nil {
			return fmt.Errorf("%w: insert %s: %v", store.ErrStorage, r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit %s: %v", store.ErrStorage, file, err)
	}
	return nil
}

func (s *RecordStore) Close() error { return s.db.Close() }
