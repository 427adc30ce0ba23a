//go:build sqlite
// +build sqlite

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"jokebot/pkg/logx"
)

const schema = `
CREATE TABLE IF NOT EXISTS seen (
	category TEXT NOT NULL,
	id       TEXT NOT NULL,
	PRIMARY KEY (category, id)
);
CREATE TABLE IF NOT EXISTS subscribers (
	chat_id INTEGER PRIMARY KEY
);
`

type sqliteStores struct {
	db  *sql.DB
	log logx.Logger

	categories map[string]bool
}

func openSQLite(cfg Config, log logx.Logger) (Stores, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("storage.path is required for sqlite driver")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
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

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}

	cats := make(map[string]bool, len(cfg.SeenPaths))
	for cat := range cfg.SeenPaths {
		cats[cat] = true
	}
	return &sqliteStores{db: db, log: log, categories: cats}, nil
}

func (s *sqliteStores) Subscribers() SubscriberStore {
	return &sqliteSubscriberStore{db: s.db, log: s.log}
}

func (s *sqliteStores) Seen(category string) (SeenStore, bool) {
	if !s.categories[category] {
		return nil, false
	}
	return &sqliteSeenStore{db: s.db, category: category, log: s.log}, true
}

func (s *sqliteStores) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

type sqliteSeenStore struct {
	db       *sql.DB
	category string
	log      logx.Logger
}

func (s *sqliteSeenStore) Load(ctx context.Context) map[string]struct{} {
	out := map[string]struct{}{}
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM seen WHERE category = ?`, s.category)
	if err != nil {
		s.log.Warn("seen-set load failed; starting empty", logx.String("category", s.category), logx.Err(err))
		return out
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			continue
		}
		out[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		s.log.Warn("seen-set scan failed", logx.String("category", s.category), logx.Err(err))
	}
	return out
}

func (s *sqliteSeenStore) Save(ctx context.Context, ids map[string]struct{}) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM seen WHERE category = ?`, s.category); err != nil {
		return err
	}
	for id := range ids {
		if _, err := tx.ExecContext(ctx, `INSERT INTO seen(category, id) VALUES(?, ?)`, s.category, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

type sqliteSubscriberStore struct {
	db  *sql.DB
	log logx.Logger
}

func (s *sqliteSubscriberStore) Load(ctx context.Context) map[int64]struct{} {
	out := map[int64]struct{}{}
	rows, err := s.db.QueryContext(ctx, `SELECT chat_id FROM subscribers`)
	if err != nil {
		s.log.Warn("subscriber load failed; starting empty", logx.Err(err))
		return out
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			continue
		}
		out[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		s.log.Warn("subscriber scan failed", logx.Err(err))
	}
	return out
}

func (s *sqliteSubscriberStore) Save(ctx context.Context, chats map[int64]struct{}) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM subscribers`); err != nil {
		return err
	}
	for id := range chats {
		if _, err := tx.ExecContext(ctx, `INSERT INTO subscribers(chat_id) VALUES(?)`, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}
