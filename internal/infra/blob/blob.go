package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
)

var (
	ErrEmptyFile    = errors.New("file is empty")
	ErrUploadFailed = errors.New("upload failed")
)

// Store 圖片上傳，回傳公開網址
type Store interface {
	Upload(ctx context.Context, filename string, r io.Reader) (string, error)
}

// MemoryStore 測試與本機開發用
type MemoryStore struct {
	mu      sync.RWMutex
	baseURL string
	files   map[string][]byte
	seq     int
}

func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{baseURL: baseURL, files: make(map[string][]byte)}
}

func (m *MemoryStore) Upload(ctx context.Context, filename string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	if len(data) == 0 {
		return "", ErrEmptyFile
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	url := fmt.Sprintf("%s/%d/%s", m.baseURL, m.seq, filename)
	m.files[url] = data
	return url, nil
}

func (m *MemoryStore) Get(url string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.files[url]
	return data, ok
}

var _ Store = (*MemoryStore)(nil)
