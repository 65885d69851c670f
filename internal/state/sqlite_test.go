package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
)

func openTestSQLite(t *testing.T, dir string) *SQLiteHost {
	t.Helper()
	host, err := OpenSQLite(filepath.Join(dir, "state.db"), filepath.Join(dir, "state.lock"))
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = host.Close() })
	return host
}

func TestSQLiteSetGet(t *testing.T) {
	ctx := context.Background()
	host := openTestSQLite(t, t.TempDir())

	doc, err := host.Get(ctx)
	if err != nil {
		t.Fatalf("Get on empty store failed: %v", err)
	}
	if doc != nil {
		t.Fatalf("expected nil document, got %v", doc)
	}

	want := Document{"metadata": json.RawMessage(`{"0xaa":{"spec_version":5}}`)}
	if err := host.Set(ctx, want); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, err := host.Get(ctx)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got["metadata"]) != string(want["metadata"]) {
		t.Fatalf("unexpected document %s", got["metadata"])
	}
}

func TestSQLitePragmasApplyToEveryConnection(t *testing.T) {
	ctx := context.Background()
	host := openTestSQLite(t, t.TempDir())

	var conns []*sql.Conn
	defer func() {
		for _, c := range conns {
			_ = c.Close()
		}
	}()
	for i := 0; i < 3; i++ {
		conn, err := host.db.Conn(ctx)
		if err != nil {
			t.Fatalf("Conn %d failed: %v", i, err)
		}
		conns = append(conns, conn)

		var timeout int
		if err := conn.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&timeout); err != nil {
			t.Fatalf("busy_timeout on conn %d: %v", i, err)
		}
		if timeout != 5000 {
			t.Fatalf("conn %d busy_timeout = %d, want 5000", i, timeout)
		}
		var mode string
		if err := conn.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&mode); err != nil {
			t.Fatalf("journal_mode on conn %d: %v", i, err)
		}
		if mode != "wal" {
			t.Fatalf("conn %d journal_mode = %q, want wal", i, mode)
		}
	}
}

func TestSQLiteConcurrentOpen(t *testing.T) {
	dir := t.TempDir()
	const workers = 8

	var wg sync.WaitGroup
	errCh := make(chan error, workers)
	for worker := 0; worker < workers; worker++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			host, err := OpenSQLite(filepath.Join(dir, "state.db"), filepath.Join(dir, "state.lock"))
			if err != nil {
				errCh <- fmt.Errorf("worker %d open: %w", workerID, err)
				return
			}
			if _, err := host.Get(context.Background()); err != nil {
				errCh <- fmt.Errorf("worker %d get: %w", workerID, err)
			}
			_ = host.Close()
		}(worker)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Fatal(err)
	}
}

func TestSQLiteConcurrentSubtreeUpdates(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	const workers = 8
	const iterations = 10

	var wg sync.WaitGroup
	errCh := make(chan error, workers)
	for worker := 0; worker < workers; worker++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()

			// separate handles model separate processes sharing the file
			host, err := OpenSQLite(filepath.Join(dir, "state.db"), filepath.Join(dir, "state.lock"))
			if err != nil {
				errCh <- fmt.Errorf("worker %d open: %w", workerID, err)
				return
			}
			defer host.Close()
			store := NewStore(host)

			for i := 0; i < iterations; i++ {
				err := store.UpdateSubtree(ctx, "counter", func(cur json.RawMessage) (any, error) {
					var n int
					if cur != nil {
						if err := json.Unmarshal(cur, &n); err != nil {
							return nil, err
						}
					}
					return n + 1, nil
				})
				if err != nil {
					errCh <- fmt.Errorf("worker %d update %d: %w", workerID, i, err)
					return
				}
			}
		}(worker)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Fatal(err)
	}

	host := openTestSQLite(t, dir)
	var total int
	found, err := NewStore(host).GetSubtree(ctx, "counter", &total)
	if err != nil || !found {
		t.Fatalf("GetSubtree found=%v err=%v", found, err)
	}
	if total != workers*iterations {
		t.Fatalf("lost updates: got %d want %d", total, workers*iterations)
	}
}
