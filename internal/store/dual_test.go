package store

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	_ "modernc.org/sqlite"
)

// memTier exercises the dual store's plumbing without touching disk. putErr is
// returned by Put until Recreate clears it.
type memTier struct {
	mu        sync.Mutex
	data      map[string][]byte
	putErr    error
	recreates int
}

func newMemTier() *memTier {
	return &memTier{data: map[string][]byte{}}
}

func (m *memTier) Put(partition, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	m.data[partition+"/"+key] = value
	return nil
}

func (m *memTier) Get(partition, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[partition+"/"+key]
	return v, ok, nil
}

func (m *memTier) Delete(partition, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, partition+"/"+key)
	return nil
}

func (m *memTier) Close() error { return nil }

func (m *memTier) Recreate() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recreates++
	m.data = map[string][]byte{}
	m.putErr = nil
	return nil
}

func newTestDual(t *testing.T) (*Dual, string) {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "ledger.db")
	d := NewDual(NewSQLiteTier(dbPath), NewFileTier(filepath.Join(dir, "flat")))
	t.Cleanup(func() { d.Close() })
	return d, dbPath
}

func TestDual_WriteReadBack(t *testing.T) {
	d, _ := newTestDual(t)

	if err := d.PutSync("portfolio", "holdings", []byte(`["a"]`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, ok, err := d.Get("portfolio", "holdings")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if string(got) != `["a"]` {
		t.Errorf("got %s", got)
	}
}

func TestDual_GetAbsent(t *testing.T) {
	d, _ := newTestDual(t)

	_, ok, err := d.Get("portfolio", "missing")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Error("expected absent key")
	}
}

func TestDual_ReadFallsBackToFlat(t *testing.T) {
	d, _ := newTestDual(t)

	if err := d.PutSync("settings", "tax_rate", []byte(`15`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	// Wipe the primary mid-session; the flat copy must still serve the read.
	if err := d.primary.Recreate(); err != nil {
		t.Fatalf("recreate: %v", err)
	}
	got, ok, err := d.Get("settings", "tax_rate")
	if err != nil || !ok {
		t.Fatalf("get after wipe: ok=%v err=%v", ok, err)
	}
	if string(got) != `15` {
		t.Errorf("got %s", got)
	}
}

func TestDual_SelfHealOnSchemaMismatch(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "ledger.db")

	// Plant a database stamped with a future schema version, as a prior
	// incompatible build would leave behind.
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := db.Exec("PRAGMA user_version=99"); err != nil {
		t.Fatalf("stamp version: %v", err)
	}
	if _, err := db.Exec("CREATE TABLE kv (junk TEXT)"); err != nil {
		t.Fatalf("create junk table: %v", err)
	}
	db.Close()

	d := NewDual(NewSQLiteTier(dbPath), NewFileTier(filepath.Join(dir, "flat")))
	defer d.Close()

	if err := d.PutSync("portfolio", "holdings", []byte(`["b"]`)); err != nil {
		t.Fatalf("put through self-heal: %v", err)
	}
	got, ok, err := d.Get("portfolio", "holdings")
	if err != nil || !ok {
		t.Fatalf("get after self-heal: ok=%v err=%v", ok, err)
	}
	if string(got) != `["b"]` {
		t.Errorf("got %s", got)
	}

	// The recreated primary itself must hold the value, not just the fallback.
	pv, pok, perr := d.primary.Get("portfolio", "holdings")
	if perr != nil || !pok || string(pv) != `["b"]` {
		t.Errorf("primary after self-heal: ok=%v err=%v value=%s", pok, perr, pv)
	}
}

func TestDual_SerializedWritesLastWins(t *testing.T) {
	d, _ := newTestDual(t)

	var acks []<-chan error
	for i := 0; i < 20; i++ {
		acks = append(acks, d.Put("settings", "target_investment", []byte(fmt.Sprintf("%d", i))))
	}
	for _, ack := range acks {
		if err := <-ack; err != nil {
			t.Fatalf("ack: %v", err)
		}
	}
	got, ok, err := d.Get("settings", "target_investment")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if string(got) != "19" {
		t.Errorf("expected last write to win, got %s", got)
	}
}

func TestDual_DeleteRemovesBothTiers(t *testing.T) {
	d, _ := newTestDual(t)

	if err := d.PutSync("tickers", "watchlist", []byte(`[]`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := d.DeleteSync("tickers", "watchlist"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := d.Get("tickers", "watchlist"); ok {
		t.Error("expected key gone after delete")
	}
	if _, ok, _ := d.fallback.Get("tickers", "watchlist"); ok {
		t.Error("expected key gone from fallback tier")
	}
}

func TestDual_PutAfterClose(t *testing.T) {
	d, _ := newTestDual(t)
	d.Close()
	if err := d.PutSync("portfolio", "holdings", []byte(`[]`)); err != ErrClosed {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestDual_GetAfterClose(t *testing.T) {
	d, _ := newTestDual(t)
	if err := d.PutSync("portfolio", "holdings", []byte(`[]`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	d.Close()
	if _, _, err := d.Get("portfolio", "holdings"); err != ErrClosed {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestDual_PutsRacingCloseDoNotPanic(t *testing.T) {
	for i := 0; i < 200; i++ {
		d := NewDual(newMemTier(), newMemTier())
		var wg sync.WaitGroup
		for w := 0; w < 8; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for n := 0; n < 4; n++ {
					if err := d.PutSync("portfolio", "holdings", []byte(`1`)); err != nil && err != ErrClosed {
						t.Errorf("put: %v", err)
					}
				}
			}()
		}
		d.Close()
		wg.Wait()
	}
}

func TestDual_TransientPrimaryErrorDoesNotRecreate(t *testing.T) {
	primary := newMemTier()
	primary.putErr = errors.New("disk I/O error")
	fallback := newMemTier()
	d := NewDual(primary, fallback)
	defer d.Close()

	if err := d.PutSync("portfolio", "holdings", []byte(`["a"]`)); err != nil {
		t.Fatalf("put must succeed via the fallback: %v", err)
	}
	if primary.recreates != 0 {
		t.Errorf("transient failure must not wipe the primary, recreated %d times", primary.recreates)
	}
	got, ok, err := d.Get("portfolio", "holdings")
	if err != nil || !ok || string(got) != `["a"]` {
		t.Errorf("fallback read: ok=%v err=%v value=%s", ok, err, got)
	}
}

func TestDual_StructuralPrimaryErrorRecreatesOnce(t *testing.T) {
	primary := newMemTier()
	primary.putErr = fmt.Errorf("%w: user_version 99, want 1", ErrSchema)
	d := NewDual(primary, newMemTier())
	defer d.Close()

	if err := d.PutSync("portfolio", "holdings", []byte(`["b"]`)); err != nil {
		t.Fatalf("put through self-heal: %v", err)
	}
	if primary.recreates != 1 {
		t.Errorf("expected exactly one recreate, got %d", primary.recreates)
	}
	if got, ok, _ := primary.Get("portfolio", "holdings"); !ok || string(got) != `["b"]` {
		t.Errorf("recreated primary must hold the retried write, got ok=%v value=%s", ok, got)
	}
}
