// Package store persists the intermediate artifacts of pipeline runs.
// Every artifact is namespaced by a run ID so concurrent runs never share files.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
)

// Artifact names one logical record inside a run namespace.
type Artifact string

const (
	CollectedDocument Artifact = "collected-document"
	QueryRecord       Artifact = "query-record"
	RetrievalResult   Artifact = "retrieval-result"
	PostsOutput       Artifact = "posts-output"
	LatestRun         Artifact = "latest-run"
)

// ErrNotFound is returned when an artifact was never written.
var ErrNotFound = errors.New("artifact not found")

// Store is a key-value artifact store keyed by (namespace, artifact).
type Store interface {
	Put(ctx context.Context, namespace string, name Artifact, data []byte) error
	Get(ctx context.Context, namespace string, name Artifact) ([]byte, error)
	Close() error
}

// PersistenceError wraps I/O failures; it is fatal to the run that hit it.
type PersistenceError struct {
	Op        string
	Namespace string
	Name      Artifact
	Err       error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("store %s %s/%s: %v", e.Op, e.Namespace, e.Name, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

var namespacePattern = regexp.MustCompile(`^[A-Za-z0-9_.:\-]{1,128}$`)

func validate(namespace string, name Artifact) error {
	if !namespacePattern.MatchString(namespace) || namespace == "." || namespace == ".." {
		return fmt.Errorf("invalid namespace %q", namespace)
	}
	if !namespacePattern.MatchString(string(name)) {
		return fmt.Errorf("invalid artifact name %q", name)
	}
	return nil
}

// PutJSON marshals v with indentation and stores it.
func PutJSON[T any](ctx context.Context, s Store, namespace string, name Artifact, v T) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return &PersistenceError{Op: "marshal", Namespace: namespace, Name: name, Err: err}
	}
	return s.Put(ctx, namespace, name, data)
}

// GetJSON loads and unmarshals an artifact written by PutJSON.
func GetJSON[T any](ctx context.Context, s Store, namespace string, name Artifact) (T, error) {
	var v T
	data, err := s.Get(ctx, namespace, name)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, &PersistenceError{Op: "unmarshal", Namespace: namespace, Name: name, Err: err}
	}
	return v, nil
}

// UserNamespace is the namespace holding per-user pointers such as LatestRun.
func UserNamespace(userID string) string {
	return "user-" + userID
}
