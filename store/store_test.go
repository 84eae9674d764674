package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type record struct {
	Query string `json:"query"`
	Count int    `json:"count"`
}

func backends(t *testing.T) map[string]Store {
	t.Helper()
	fs, err := NewFileStore(filepath.Join(t.TempDir(), "runs"))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	db, err := NewSQLiteStore(filepath.Join(t.TempDir(), "db", "artifacts.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return map[string]Store{"file": fs, "sqlite": db}
}

func TestPutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.Put(ctx, "run-1", CollectedDocument, []byte("hello")); err != nil {
				t.Fatalf("Put: %v", err)
			}
			got, err := s.Get(ctx, "run-1", CollectedDocument)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if string(got) != "hello" {
				t.Errorf("Get = %q, want hello", got)
			}

			// overwrite replaces the previous value
			if err := s.Put(ctx, "run-1", CollectedDocument, []byte("again")); err != nil {
				t.Fatalf("Put overwrite: %v", err)
			}
			got, _ = s.Get(ctx, "run-1", CollectedDocument)
			if string(got) != "again" {
				t.Errorf("Get after overwrite = %q, want again", got)
			}
		})
	}
}

func TestGetMissingReturnsErrNotFound(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Get(context.Background(), "run-x", PostsOutput)
			if !errors.Is(err, ErrNotFound) {
				t.Errorf("Get missing = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestNamespacesAreIsolated(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_ = s.Put(ctx, "run-a", CollectedDocument, []byte("a"))
			_ = s.Put(ctx, "run-b", CollectedDocument, []byte("b"))
			a, _ := s.Get(ctx, "run-a", CollectedDocument)
			b, _ := s.Get(ctx, "run-b", CollectedDocument)
			if string(a) != "a" || string(b) != "b" {
				t.Errorf("namespaces leaked: a=%q b=%q", a, b)
			}
		})
	}
}

func TestEmptyDocumentIsStored(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.Put(ctx, "run-e", CollectedDocument, nil); err != nil {
				t.Fatalf("Put empty: %v", err)
			}
			got, err := s.Get(ctx, "run-e", CollectedDocument)
			if err != nil {
				t.Fatalf("Get empty: %v", err)
			}
			if len(got) != 0 {
				t.Errorf("Get = %q, want empty", got)
			}
		})
	}
}

func TestInvalidNamespaceRejected(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			err := s.Put(context.Background(), "../escape", CollectedDocument, []byte("x"))
			var pe *PersistenceError
			if !errors.As(err, &pe) {
				t.Fatalf("expected PersistenceError, got %v", err)
			}
		})
	}
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			in := record{Query: "post about AI", Count: 3}
			if err := PutJSON(ctx, s, "run-j", QueryRecord, in); err != nil {
				t.Fatalf("PutJSON: %v", err)
			}
			out, err := GetJSON[record](ctx, s, "run-j", QueryRecord)
			if err != nil {
				t.Fatalf("GetJSON: %v", err)
			}
			if out != in {
				t.Errorf("GetJSON = %+v, want %+v", out, in)
			}
		})
	}
}

func TestGetJSONCorruptIsPersistenceError(t *testing.T) {
	ctx := context.Background()
	s, _ := NewFileStore(t.TempDir())
	_ = s.Put(ctx, "run-c", QueryRecord, []byte("{not json"))
	_, err := GetJSON[record](ctx, s, "run-c", QueryRecord)
	var pe *PersistenceError
	if !errors.As(err, &pe) || pe.Op != "unmarshal" {
		t.Errorf("expected unmarshal PersistenceError, got %v", err)
	}
}

func TestFileStoreLeavesNoTempFiles(t *testing.T) {
	root := t.TempDir()
	s, _ := NewFileStore(root)
	_ = s.Put(context.Background(), "run-t", PostsOutput, []byte("[]"))
	entries, err := os.ReadDir(filepath.Join(root, "run-t"))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != string(PostsOutput) {
		t.Errorf("unexpected files: %v", entries)
	}
}

func TestToneStoreDefaultsAndCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config", "tone.json")
	ts := NewToneStore(path)
	if got := ts.Get(); got != DefaultTone {
		t.Errorf("Get = %q, want %q", got, DefaultTone)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("tone file not created: %v", err)
	}
}

func TestToneStoreCorruptFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.json")
	if err := os.WriteFile(path, []byte("{{{"), 0o644); err != nil {
		t.Fatal(err)
	}
	ts := NewToneStore(path)
	if got := ts.Get(); got != DefaultTone {
		t.Errorf("Get on corrupt file = %q, want %q", got, DefaultTone)
	}
}

func TestToneStoreSet(t *testing.T) {
	ts := NewToneStore(filepath.Join(t.TempDir(), "tone.json"))
	if err := ts.Set("casual"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got := ts.Get(); got != "casual" {
		t.Errorf("Get = %q, want casual", got)
	}
}

func TestUserNamespace(t *testing.T) {
	if err := validate(UserNamespace("tg:42"), LatestRun); err != nil {
		t.Errorf("user namespace should be valid: %v", err)
	}
}
