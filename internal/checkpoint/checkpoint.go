// Package checkpoint persists and restores Continuation chains across
// process boundaries (spec §4.4/§6): the host calls Save whenever a
// SuspendSignal reaches it and Load with the returned handle once the
// resumed event is ready to run.
//
// Grounded on papapumpkin-quasar's internal/fabric SQLite store: WAL
// mode, a single-connection *sql.DB (SQLite has one writer regardless),
// idempotent schema creation, and the same upsert-by-primary-key shape
// used there for the fabric table. We swap that package's task-state
// rows for continuation blobs and add google/uuid for handle generation
// (rather than quasar's caller-supplied task IDs, since a resumed
// suspension has no natural external name) and dustin/go-humanize to
// report checkpoint size in the same style the teacher uses for
// user-facing byte counts.
package checkpoint

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/gob"
	"errors"
	"fmt"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/jactl-lang/jactl/internal/continuation"
)

// ErrNotFound is returned by Load when handle names no stored checkpoint.
var ErrNotFound = errors.New("checkpoint: not found")

// Handle names a saved continuation; opaque to the host beyond
// round-tripping it back into Load.
type Handle string

// Store is the save/resume collaborator interface spec §6 asks a host
// to supply (or use the SQLite-backed reference implementation below).
type Store interface {
	Save(ctx context.Context, c *continuation.Continuation) (Handle, error)
	Load(ctx context.Context, h Handle) (*continuation.Continuation, error)
	Delete(ctx context.Context, h Handle) error
}

const schema = `
CREATE TABLE IF NOT EXISTS continuations (
	handle     TEXT PRIMARY KEY,
	payload    BLOB NOT NULL,
	size_bytes INTEGER NOT NULL,
	saved_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// SQLiteStore is the reference Store: a local SQLite database in WAL
// mode, one connection (SQLite permits only one writer regardless of
// pool size), gob-encoded Continuation payloads.
type SQLiteStore struct {
	db *sql.DB
}

// Open creates or reuses the database at path and ensures the schema exists.
func Open(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("checkpoint: enable WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("checkpoint: set busy timeout: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("checkpoint: create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

// Save gob-encodes the continuation chain and stores it under a fresh
// uuid-derived handle.
func (s *SQLiteStore) Save(ctx context.Context, c *continuation.Continuation) (Handle, error) {
	payload, err := encode(c)
	if err != nil {
		return "", fmt.Errorf("checkpoint: encode continuation: %w", err)
	}
	h := Handle(uuid.NewString())
	const q = `INSERT INTO continuations (handle, payload, size_bytes) VALUES (?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, string(h), payload, len(payload)); err != nil {
		return "", fmt.Errorf("checkpoint: save %s: %w", h, err)
	}
	return h, nil
}

// Load decodes and returns the continuation chain stored under h.
func (s *SQLiteStore) Load(ctx context.Context, h Handle) (*continuation.Continuation, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, "SELECT payload FROM continuations WHERE handle = ?", string(h)).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("checkpoint: load %s: %w", h, err)
	}
	c, err := decode(payload)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: decode %s: %w", h, err)
	}
	return c, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, h Handle) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM continuations WHERE handle = ?", string(h)); err != nil {
		return fmt.Errorf("checkpoint: delete %s: %w", h, err)
	}
	return nil
}

// Stats reports the current checkpoint table footprint in a
// human-readable size string, for host diagnostics/CLI output.
func (s *SQLiteStore) Stats(ctx context.Context) (count int64, humanSize string, err error) {
	var totalBytes int64
	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*), COALESCE(SUM(size_bytes), 0) FROM continuations").Scan(&count, &totalBytes)
	if err != nil {
		return 0, "", fmt.Errorf("checkpoint: stats: %w", err)
	}
	return count, humanize.Bytes(uint64(totalBytes)), nil
}

// frame is the gob-serialisable mirror of continuation.Continuation
// (which itself carries no gob tags; we flatten the caller chain into a
// slice here since gob doesn't need self-referential struct support and
// a slice is easier to bound-check on decode).
type frame struct {
	MethodLocation  string
	ResumeLocation  int
	LocalPrimitives []int64
	LocalObjects    []interface{}
	Result          interface{}
}

func encode(c *continuation.Continuation) ([]byte, error) {
	var frames []frame
	for f := c; f != nil; f = f.Caller {
		frames = append(frames, frame{
			MethodLocation:  f.MethodLocation,
			ResumeLocation:  f.ResumeLocation,
			LocalPrimitives: f.LocalPrimitives,
			LocalObjects:    f.LocalObjects,
			Result:          f.Result,
		})
	}
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(frames); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decode(payload []byte) (*continuation.Continuation, error) {
	var frames []frame
	dec := gob.NewDecoder(bytes.NewReader(payload))
	if err := dec.Decode(&frames); err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("checkpoint: empty continuation payload")
	}
	// frames[0] is the innermost (originally-passed) frame; rebuild the
	// chain from the outermost caller inward to match Continuation.Push order.
	var cur *continuation.Continuation
	for i := len(frames) - 1; i >= 0; i-- {
		f := frames[i]
		if cur == nil {
			cur = continuation.Root(f.MethodLocation, f.ResumeLocation, f.LocalPrimitives, f.LocalObjects)
		} else {
			cur = cur.Push(f.MethodLocation, f.ResumeLocation, f.LocalPrimitives, f.LocalObjects)
		}
		cur.Result = f.Result
	}
	return cur, nil
}

// MemStore is an in-memory Store for tests and embedders that don't need
// cross-process durability; it still serialises through gob so bugs in
// the encode/decode path surface in unit tests rather than only at
// SQLite-store runtime.
type MemStore struct {
	mu    sync.Mutex
	items map[Handle][]byte
}

func NewMemStore() *MemStore { return &MemStore{items: map[Handle][]byte{}} }

func (m *MemStore) Save(ctx context.Context, c *continuation.Continuation) (Handle, error) {
	payload, err := encode(c)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	h := Handle(uuid.NewString())
	m.items[h] = payload
	return h, nil
}

func (m *MemStore) Load(ctx context.Context, h Handle) (*continuation.Continuation, error) {
	m.mu.Lock()
	payload, ok := m.items[h]
	m.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	return decode(payload)
}

func (m *MemStore) Delete(ctx context.Context, h Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, h)
	return nil
}
