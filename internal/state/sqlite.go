package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"
)

const lockTimeout = 5 * time.Second

// SQLiteHost stores the document as a single row. Writers across processes
// are serialized with a file lock.
type SQLiteHost struct {
	db   *sql.DB
	lock *flock.Flock
}

func OpenSQLite(path, lockPath string) (*SQLiteHost, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	db, err := sql.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite state: %w", err)
	}
	host := &SQLiteHost{db: db, lock: flock.New(lockPath)}

	// The driver applies DSN pragmas to every pooled connection, busy_timeout
	// first. Schema creation runs under the writer lock.
	unlock, err := host.acquire(context.Background())
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	defer unlock()
	if _, err := db.Exec("CREATE TABLE IF NOT EXISTS state_document (id INTEGER PRIMARY KEY CHECK (id = 1), body BLOB NOT NULL, updated_at INTEGER NOT NULL);"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init state schema: %w", err)
	}
	return host, nil
}

func sqliteDSN(path string) string {
	return "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
}

func (s *SQLiteHost) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteHost) Get(ctx context.Context) (Document, error) {
	return readDocument(ctx, s.db)
}

func (s *SQLiteHost) Set(ctx context.Context, doc Document) error {
	unlock, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer unlock()
	return writeDocument(ctx, s.db, doc)
}

// Update holds the file lock across the read and the write, both inside one
// SQL transaction.
func (s *SQLiteHost) Update(ctx context.Context, fn func(Document) (Document, error)) error {
	unlock, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin state transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	doc, err := readDocument(ctx, tx)
	if err != nil {
		return err
	}
	next, err := fn(doc)
	if err != nil {
		return err
	}
	if err := writeDocument(ctx, tx, next); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit state: %w", err)
	}
	return nil
}

func (s *SQLiteHost) acquire(ctx context.Context) (func(), error) {
	lockCtx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()
	locked, err := s.lock.TryLockContext(lockCtx, 50*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("lock state: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("lock state: timeout acquiring lock")
	}
	return func() { _ = s.lock.Unlock() }, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func readDocument(ctx context.Context, q queryer) (Document, error) {
	var body []byte
	err := q.QueryRowContext(ctx, "SELECT body FROM state_document WHERE id = 1").Scan(&body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("state read: %w", err)
	}
	return decodeDocument(body)
}

func writeDocument(ctx context.Context, q queryer, doc Document) error {
	body, err := encodeJSON(doc)
	if err != nil {
		return fmt.Errorf("encode state document: %w", err)
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO state_document (id, body, updated_at)
		VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			body=excluded.body,
			updated_at=excluded.updated_at
	`, body, time.Now().UTC().Unix())
	if err != nil {
		return fmt.Errorf("state write: %w", err)
	}
	return nil
}
