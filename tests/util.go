package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/ilmlab/core"
	"github.com/trezcool/ilmlab/storage/database"
)

// PrepareSQLite opens a migrated sqlite database living in a temporary directory.
func PrepareSQLite(t *testing.T) *sqlx.DB {
	t.Helper()

	conf := core.NewTestConfig()
	conf.Database.Engine = database.EngineSQLite
	conf.Database.Path = filepath.Join(t.TempDir(), "test.db")

	db, err := database.Open(conf)
	if err != nil {
		t.Fatalf("PrepareSQLite() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(db, conf.Database.Engine); err != nil {
		t.Fatalf("PrepareSQLite() failed: %v", err)
	}
	return db
}

// SeedDocument writes a whole document, failing the test on error.
func SeedDocument(t *testing.T, store core.DocumentStore, collection, id string, fields core.Fields) {
	t.Helper()
	if err := store.Set(context.Background(), collection, id, fields, core.SetOptions{}); err != nil {
		t.Fatalf("SeedDocument() failed: %v", err)
	}
}

// GetDocument reads a document, failing the test on error.
func GetDocument(t *testing.T, store core.DocumentStore, collection, id string) core.Document {
	t.Helper()
	doc, err := store.Get(context.Background(), collection, id)
	if err != nil {
		t.Fatalf("GetDocument() failed: %v", err)
	}
	return doc
}

type (
	// FlakyStore wraps a DocumentStore, failing the operations whose error is set.
	FlakyStore struct {
		core.DocumentStore
		GetErr    error
		SetErr    error
		UpdateErr error

		mu     sync.Mutex
		Writes []Write
	}

	// Write is a write that reached a FlakyStore.
	Write struct {
		Op     string // set | merge | update
		ID     string
		Fields []string
	}
)

func fieldNames(fields core.Fields) []string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	return names
}

func (s *FlakyStore) record(op, id string, fields core.Fields) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Writes = append(s.Writes, Write{Op: op, ID: id, Fields: fieldNames(fields)})
}

func (s *FlakyStore) Get(ctx context.Context, collection, id string) (core.Document, error) {
	if s.GetErr != nil {
		return core.Document{}, s.GetErr
	}
	return s.DocumentStore.Get(ctx, collection, id)
}

func (s *FlakyStore) Set(ctx context.Context, collection, id string, fields core.Fields, opts core.SetOptions) error {
	op := "set"
	if opts.Merge {
		op = "merge"
	}
	s.record(op, id, fields)
	if s.SetErr != nil {
		return s.SetErr
	}
	return s.DocumentStore.Set(ctx, collection, id, fields, opts)
}

func (s *FlakyStore) Update(ctx context.Context, collection, id string, fields core.Fields) error {
	s.record("update", id, fields)
	if s.UpdateErr != nil {
		return s.UpdateErr
	}
	return s.DocumentStore.Update(ctx, collection, id, fields)
}

// Rank is forwarded when the wrapped store supports it.
func (s *FlakyStore) Rank(ctx context.Context, collection, field string, limit int) ([]core.Document, error) {
	if r, ok := s.DocumentStore.(core.DocumentRanker); ok {
		return r.Rank(ctx, collection, field, limit)
	}
	return nil, core.ErrRankingUnsupported
}

func (s *FlakyStore) WriteLog() []Write {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Write(nil), s.Writes...)
}

type (
	// Logger records log entries.
	Logger struct {
		mu      sync.Mutex
		Entries []LogEntry
	}

	LogEntry struct {
		Level   string
		Message string
		Args    []interface{}
	}
)

var _ core.Logger = (*Logger)(nil)

func (l *Logger) log(level, msg string, args []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Entries = append(l.Entries, LogEntry{Level: level, Message: msg, Args: args})
}

func (l *Logger) Debug(msg string, args ...interface{}) { l.log("debug", msg, args) }
func (l *Logger) Info(msg string, args ...interface{})  { l.log("info", msg, args) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.log("warn", msg, args) }
func (l *Logger) Error(msg string, args ...interface{}) { l.log("error", msg, args) }
func (l *Logger) Fatal(msg string, args ...interface{}) {
	l.log("fatal", msg, args)
	panic(fmt.Sprintf("fatal: %s", msg))
}

// Messages returns the messages logged at level.
func (l *Logger) Messages(level string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var msgs []string
	for _, e := range l.Entries {
		if e.Level == level {
			msgs = append(msgs, e.Message)
		}
	}
	return msgs
}
