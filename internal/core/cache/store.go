package cache

import (
	"context"
	"fmt"
	"strings"

	"dish-compat/internal/pkg/common"
)

// Store 風味快取的持久化後端
type Store interface {
	// Load 讀取所有已保存的記錄
	Load(ctx context.Context) (map[string]common.FlavorRecord, error)
	// Save 以完整快照覆寫
	Save(ctx context.Context, records map[string]common.FlavorRecord) error
	// Close 釋放資源
	Close() error
}

// StoreConfig 持久化後端設定
type StoreConfig struct {
	Kind          string
	FilePath      string
	SQLitePath    string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisKey      string
}

// NewStore 依設定建立持久化後端
func NewStore(ctx context.Context, cfg StoreConfig) (Store, error) {
	switch strings.ToLower(cfg.Kind) {
	case "", "file":
		return NewFileStore(cfg.FilePath), nil
	case "sqlite":
		return NewSQLiteStore(ctx, cfg.SQLitePath)
	case "redis":
		return NewRedisStore(ctx, RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Key:      cfg.RedisKey,
		})
	case "none", "memory":
		return NoneStore{}, nil
	default:
		return nil, fmt.Errorf("unknown flavor cache store %q", cfg.Kind)
	}
}

// NoneStore 僅記憶體，不持久化
type NoneStore struct{}

// Load 實作 Store
func (NoneStore) Load(context.Context) (map[string]common.FlavorRecord, error) {
	return map[string]common.FlavorRecord{}, nil
}

// Save 實作 Store
func (NoneStore) Save(context.Context, map[string]common.FlavorRecord) error { return nil }

// Close 實作 Store
func (NoneStore) Close() error { return nil }
