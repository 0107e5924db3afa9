package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileTier is the flat fallback tier: one JSON object per partition on disk.
// It has no transactions and no schema, so it is always writable.
type FileTier struct {
	mu  sync.Mutex
	dir string
}

// NewFileTier returns a tier storing partition files under dir.
func NewFileTier(dir string) *FileTier {
	return &FileTier{dir: dir}
}

func (t *FileTier) partitionPath(partition string) string {
	return filepath.Join(t.dir, partition+".json")
}

// load reads a partition file. A missing file yields an empty map.
func (t *FileTier) load(partition string) (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(t.partitionPath(partition))
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]json.RawMessage{}, nil
		}
		return nil, err
	}
	m := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", t.partitionPath(partition), err)
	}
	return m, nil
}

func (t *FileTier) save(partition string, m map[string]json.RawMessage) error {
	if err := os.MkdirAll(t.dir, 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(t.partitionPath(partition), data, 0644)
}

func (t *FileTier) Put(partition, key string, value []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, err := t.load(partition)
	if err != nil {
		// An unreadable partition file is replaced rather than blocking the write.
		m = map[string]json.RawMessage{}
	}
	m[key] = json.RawMessage(value)
	return t.save(partition, m)
}

func (t *FileTier) Get(partition, key string) ([]byte, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, err := t.load(partition)
	if err != nil {
		return nil, false, err
	}
	v, ok := m[key]
	if !ok {
		return nil, false, nil
	}
	return []byte(v), true, nil
}

func (t *FileTier) Delete(partition, key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, err := t.load(partition)
	if err != nil {
		return err
	}
	if _, ok := m[key]; !ok {
		return nil
	}
	delete(m, key)
	return t.save(partition, m)
}

func (t *FileTier) Close() error { return nil }
