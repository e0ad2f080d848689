package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"dish-compat/internal/pkg/common"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLiteStore 以 SQLite 表保存風味記錄
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore 開啟資料庫並建立表
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = filepath.Join("cache", "flavors.db")
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// modernc sqlite 單一寫入者
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
    CREATE TABLE IF NOT EXISTS flavor_cache (
        name TEXT PRIMARY KEY,
        payload TEXT NOT NULL,
        fetched_at DATETIME NOT NULL
    );
    `
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Load 讀取所有記錄
func (s *SQLiteStore) Load(ctx context.Context) (map[string]common.FlavorRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, payload FROM flavor_cache`)
	if err != nil {
		return nil, fmt.Errorf("failed to query flavor cache: %w", err)
	}
	defer rows.Close()

	records := make(map[string]common.FlavorRecord)
	for rows.Next() {
		var name, payload string
		if err := rows.Scan(&name, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan flavor row: %w", err)
		}
		var rec common.FlavorRecord
		if err := common.ParseJSONBytes([]byte(payload), &rec); err != nil {
			common.LogWarn("略過無法解析的風味記錄", zap.String("name", name), zap.Error(err))
			continue
		}
		records[name] = rec
	}
	return records, rows.Err()
}

// Save 在單一交易中以快照覆寫整張表
func (s *SQLiteStore) Save(ctx context.Context, records map[string]common.FlavorRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM flavor_cache`); err != nil {
		return fmt.Errorf("failed to clear flavor cache: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO flavor_cache (name, payload, fetched_at) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for name, rec := range records {
		payload, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", name, err)
		}
		if _, err := stmt.ExecContext(ctx, name, string(payload), rec.FetchedAt.UTC().Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("failed to insert %s: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit flavor cache: %w", err)
	}
	return nil
}

// Close 關閉資料庫
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
