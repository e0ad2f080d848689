package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"dish-compat/internal/pkg/common"

	"github.com/natefinch/atomic"
)

// FileStore 以 JSON 檔保存，寫入採原子替換
type FileStore struct {
	path string
}

// NewFileStore 建立檔案後端
func NewFileStore(path string) *FileStore {
	if path == "" {
		path = filepath.Join("cache", "flavors.json")
	}
	return &FileStore{path: path}
}

// Load 讀取檔案；檔案不存在時回傳空集合
func (s *FileStore) Load(ctx context.Context) (map[string]common.FlavorRecord, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]common.FlavorRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read flavor cache file: %w", err)
	}

	records := make(map[string]common.FlavorRecord)
	if len(bytes.TrimSpace(data)) == 0 {
		return records, nil
	}
	if err := common.ParseJSONBytes(data, &records); err != nil {
		return nil, fmt.Errorf("decode flavor cache file: %w", err)
	}
	return records, nil
}

// Save 原子寫入完整快照
func (s *FileStore) Save(ctx context.Context, records map[string]common.FlavorRecord) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create flavor cache dir: %w", err)
	}
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode flavor cache: %w", err)
	}
	if err := atomic.WriteFile(s.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write flavor cache file: %w", err)
	}
	return nil
}

// Close 實作 Store
func (s *FileStore) Close() error { return nil }
