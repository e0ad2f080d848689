package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"dish-compat/internal/pkg/common"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RedisOptions Redis 後端設定
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Key      string
}

// RedisStore 以 Redis hash 保存風味記錄（field = 標準名稱）
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore 建立 Redis 後端並測試連線
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	if opts.Addr == "" {
		opts.Addr = "localhost:6379"
	}
	if opts.Key == "" {
		opts.Key = "dish-compat:flavor-cache"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	// 測試連接
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{client: client, key: opts.Key}, nil
}

// Load 讀取整個 hash
func (s *RedisStore) Load(ctx context.Context) (map[string]common.FlavorRecord, error) {
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load flavor cache: %w", err)
	}

	records := make(map[string]common.FlavorRecord, len(fields))
	for name, payload := range fields {
		var rec common.FlavorRecord
		if err := common.ParseJSONBytes([]byte(payload), &rec); err != nil {
			common.LogWarn("略過無法解析的風味記錄", zap.String("name", name), zap.Error(err))
			continue
		}
		records[name] = rec
	}
	return records, nil
}

// Save 以 MULTI 交易刪除舊 hash 後寫入快照
func (s *RedisStore) Save(ctx context.Context, records map[string]common.FlavorRecord) error {
	values := make(map[string]interface{}, len(records))
	for name, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal %s: %w", name, err)
		}
		values[name] = string(data)
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key)
		if len(values) > 0 {
			pipe.HSet(ctx, s.key, values)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save flavor cache: %w", err)
	}
	return nil
}

// Close 關閉連線
func (s *RedisStore) Close() error {
	return s.client.Close()
}
