package messagestore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "notifcollector/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

const latestBodyQuery = `SELECT body FROM inbox WHERE address = ? ORDER BY date DESC, id DESC LIMIT 1`

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("store.path is required for sqlite driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := newSQLiteStore(db, log)
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}
	return st, nil
}

func newSQLiteStore(db *sql.DB, log logx.Logger) *sqliteStore {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &sqliteStore{db: db, log: log}
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) LatestBody(ctx context.Context, address string) (string, bool, error) {
	if s == nil || s.db == nil {
		return "", false, ErrDisabled
	}
	if address == "" {
		return "", false, nil
	}
	var body sql.NullString
	err := s.db.QueryRowContext(ctx, latestBodyQuery, address).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if !body.Valid {
		return "", false, nil
	}
	return body.String, true, nil
}

func (s *sqliteStore) Insert(ctx context.Context, m Message) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if strings.TrimSpace(m.Address) == "" {
		return errors.New("message address is required")
	}
	if m.Date.IsZero() {
		m.Date = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO inbox(address, body, date) VALUES(?,?,?)`,
		m.Address, nullStr(m.Body), m.Date.UnixMilli(),
	)
	return err
}

func nullStr(v string) any {
	if v == "" {
		return nil
	}
	return v
}
