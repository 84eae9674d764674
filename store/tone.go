package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// DefaultTone is used when the tone config is absent or unreadable.
const DefaultTone = "professional"

type toneFile struct {
	Tone string `json:"tone"`
}

// ToneStore reads and writes the process-wide tone config ({"tone": "..."}).
type ToneStore struct {
	mu   sync.Mutex
	path string
}

func NewToneStore(path string) *ToneStore {
	return &ToneStore{path: path}
}

// Get returns the configured tone. A missing or corrupt file is replaced by the default.
func (t *ToneStore) Get() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	data, err := os.ReadFile(t.path)
	if err == nil {
		var tf toneFile
		if json.Unmarshal(data, &tf) == nil && tf.Tone != "" {
			return tf.Tone
		}
	}
	// best effort: 读取失败时也要回落到默认值
	_ = t.write(DefaultTone)
	return DefaultTone
}

// Set persists a new tone.
func (t *ToneStore) Set(tone string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.write(tone)
}

func (t *ToneStore) write(tone string) error {
	if err := os.MkdirAll(filepath.Dir(t.path), 0o755); err != nil {
		return &PersistenceError{Op: "write tone", Err: err}
	}
	data, err := json.MarshalIndent(toneFile{Tone: tone}, "", "    ")
	if err != nil {
		return &PersistenceError{Op: "write tone", Err: err}
	}
	if err := os.WriteFile(t.path, data, 0o644); err != nil {
		return &PersistenceError{Op: "write tone", Err: err}
	}
	return nil
}
