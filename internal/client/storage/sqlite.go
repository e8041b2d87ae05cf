package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/ecodata/fieldsync/internal/client/event"
	"github.com/ecodata/fieldsync/internal/client/storage/migrations"
	"github.com/ecodata/fieldsync/internal/common"
	"github.com/ecodata/fieldsync/internal/dbx"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

// SQLite is the KV implementation used by the real client. All writes go
// through transactions so interleaved read-modify-write cycles cannot
// clobber each other.
type SQLite struct {
	db  *sql.DB
	bus *event.Bus
}

// OpenSQLite opens (creating if needed) the client database at dsn and runs
// pending schema migrations. bus may be nil when change notifications are
// not wanted (tests).
func OpenSQLite(ctx context.Context, dsn string, bus *event.Bus) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dsn, err)
	}

	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate %s: %w", dsn, err)
	}

	return &SQLite{db: db, bus: bus}, nil
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, ".")
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get kv[%s]: %w", key, err)
	}
	return value, nil
}

func (s *SQLite) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set kv[%s]: %w", key, mapStoreErr(err))
	}
	s.notify(key)
	return nil
}

func (s *SQLite) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to delete kv[%s]: %w", key, err)
	}
	s.notify(key)
	return nil
}

func (s *SQLite) List(ctx context.Context) (map[string][]byte, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM kv`)
	if err != nil {
		return nil, fmt.Errorf("failed to list kv: %w", err)
	}
	defer rows.Close()

	result := make(map[string][]byte)
	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan kv row: %w", err)
		}
		result[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate kv rows: %w", err)
	}
	return result, nil
}

func (s *SQLite) Update(ctx context.Context, key string, fn func(old []byte) ([]byte, error)) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var old []byte
		err := tx.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&old)
		if err != nil && err != sql.ErrNoRows {
			return fmt.Errorf("failed to read kv[%s]: %w", key, err)
		}

		updated, err := fn(old)
		if err != nil {
			return err
		}

		if updated == nil {
			_, err = tx.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key)
		} else {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO kv (key, value) VALUES (?, ?)
				ON CONFLICT(key) DO UPDATE SET value = excluded.value
			`, key, updated)
		}
		if err != nil {
			return fmt.Errorf("failed to update kv[%s]: %w", key, mapStoreErr(err))
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.notify(key)
	return nil
}

func (s *SQLite) notify(key string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(EventChanged, event.New(EventChanged, Change{Key: key}))
}

// mapStoreErr maps a driver "database full" failure onto the quota sentinel
// so callers can surface it as a blocking condition.
func mapStoreErr(err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "database or disk is full") {
		return fmt.Errorf("%w: %v", common.ErrQuotaExceeded, err)
	}
	return err
}
