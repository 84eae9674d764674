package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
)

// FileStore keeps each run under <root>/<namespace>/<artifact>.
type FileStore struct {
	root string
}

// NewFileStore creates root if needed.
func NewFileStore(root string) (*FileStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, &PersistenceError{Op: "init", Err: err}
	}
	return &FileStore{root: root}, nil
}

func (f *FileStore) path(namespace string, name Artifact) string {
	return filepath.Join(f.root, namespace, string(name))
}

// Put writes to a temp file and renames it, so a reader never sees a partial artifact.
func (f *FileStore) Put(_ context.Context, namespace string, name Artifact, data []byte) error {
	if err := validate(namespace, name); err != nil {
		return &PersistenceError{Op: "put", Namespace: namespace, Name: name, Err: err}
	}
	dir := filepath.Join(f.root, namespace)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &PersistenceError{Op: "put", Namespace: namespace, Name: name, Err: err}
	}
	tmp, err := os.CreateTemp(dir, "."+string(name)+".*")
	if err != nil {
		return &PersistenceError{Op: "put", Namespace: namespace, Name: name, Err: err}
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return &PersistenceError{Op: "put", Namespace: namespace, Name: name, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return &PersistenceError{Op: "put", Namespace: namespace, Name: name, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &PersistenceError{Op: "put", Namespace: namespace, Name: name, Err: err}
	}
	if err := os.Rename(tmpName, f.path(namespace, name)); err != nil {
		return &PersistenceError{Op: "put", Namespace: namespace, Name: name, Err: err}
	}
	return nil
}

func (f *FileStore) Get(_ context.Context, namespace string, name Artifact) ([]byte, error) {
	if err := validate(namespace, name); err != nil {
		return nil, &PersistenceError{Op: "get", Namespace: namespace, Name: name, Err: err}
	}
	data, err := os.ReadFile(f.path(namespace, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, &PersistenceError{Op: "get", Namespace: namespace, Name: name, Err: err}
	}
	return data, nil
}

func (f *FileStore) Close() error { return nil }
