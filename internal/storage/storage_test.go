package storage

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestNew(t *testing.T) {
	tempDir := t.TempDir()

	store, err := New(tempDir)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	if store.db == nil {
		t.Error("Store database is nil")
	}

	dbPath := filepath.Join(tempDir, "diabetes-risk.db")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}
}

func TestNew_InvalidPath(t *testing.T) {
	invalidPath := filepath.Join(t.TempDir(), "does", "not", "exist")

	_, err := New(invalidPath)
	if err == nil {
		t.Error("Expected error for invalid path, got nil")
	}
}

func TestStore_Close(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Errorf("Error closing store: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Errorf("Error closing already closed store: %v", err)
	}

	if err := store.Append(PredictionRecord{}); err != ErrClosed {
		t.Errorf("Expected ErrClosed after close, got %v", err)
	}
}

func TestStore_AppendAndRecent(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		err := store.Append(PredictionRecord{
			RequestID:         fmt.Sprintf("req-%d", i),
			Timestamp:         base.Add(time.Duration(i) * time.Minute),
			PredictedClass:    i % 2,
			ProbabilityClass0: 0.6,
			ProbabilityClass1: 0.4,
			Backend:           "native",
		})
		if err != nil {
			t.Fatalf("Failed to append record %d: %v", i, err)
		}
	}

	records, err := store.Recent(3)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(records))
	}
	for i, want := range []string{"req-4", "req-3", "req-2"} {
		if records[i].RequestID != want {
			t.Errorf("Record %d: expected %s, got %s", i, want, records[i].RequestID)
		}
	}

	all, err := store.Recent(100)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(all) != 5 {
		t.Errorf("Expected 5 records, got %d", len(all))
	}

	none, err := store.Recent(0)
	if err != nil || len(none) != 0 {
		t.Errorf("Expected empty result for n=0, got %v, %v", none, err)
	}
}

func TestStore_SameTimestamp(t *testing.T) {
	store := newTestStore(t)
	ts := time.Now()

	for i := 0; i < 3; i++ {
		if err := store.Append(PredictionRecord{RequestID: fmt.Sprintf("r%d", i), Timestamp: ts}); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	n, err := store.Count()
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 3 {
		t.Errorf("Expected 3 distinct records, got %d", n)
	}

	records, _ := store.Recent(1)
	if records[0].RequestID != "r2" {
		t.Errorf("Expected last written record first, got %s", records[0].RequestID)
	}
}

func TestStore_AppendSetsTimestamp(t *testing.T) {
	store := newTestStore(t)

	before := time.Now()
	if err := store.Append(PredictionRecord{RequestID: "x"}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	records, _ := store.Recent(1)
	if records[0].Timestamp.Before(before.Add(-time.Second)) {
		t.Errorf("Expected timestamp near now, got %v", records[0].Timestamp)
	}
}

func TestStore_Range(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 10; i++ {
		store.Append(PredictionRecord{
			RequestID: fmt.Sprintf("h%d", i),
			Timestamp: base.Add(time.Duration(i) * time.Hour),
		})
	}

	records, err := store.Range(base.Add(2*time.Hour), base.Add(5*time.Hour))
	if err != nil {
		t.Fatalf("Range failed: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("Expected 4 records in inclusive range, got %d", len(records))
	}
	if records[0].RequestID != "h2" || records[3].RequestID != "h5" {
		t.Errorf("Unexpected range bounds: %s .. %s", records[0].RequestID, records[3].RequestID)
	}

	empty, err := store.Range(base.Add(-48*time.Hour), base.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("Range failed: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("Expected no records, got %d", len(empty))
	}
}

func TestStore_Prune(t *testing.T) {
	store := newTestStore(t)
	base := time.Now().Add(-time.Hour)

	for i := 0; i < 8; i++ {
		store.Append(PredictionRecord{
			RequestID: fmt.Sprintf("p%d", i),
			Timestamp: base.Add(time.Duration(i) * time.Second),
		})
	}

	removed, err := store.Prune(3)
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if removed != 5 {
		t.Errorf("Expected 5 removed, got %d", removed)
	}

	records, _ := store.Recent(10)
	if len(records) != 3 {
		t.Fatalf("Expected 3 remaining, got %d", len(records))
	}
	if records[2].RequestID != "p5" {
		t.Errorf("Expected oldest remaining p5, got %s", records[2].RequestID)
	}

	removed, err = store.Prune(10)
	if err != nil || removed != 0 {
		t.Errorf("Expected no-op prune, got %d, %v", removed, err)
	}
}

func TestStore_NeverStoresInputs(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	if err := store.Append(PredictionRecord{RequestID: "only-output", PredictedClass: 1}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	store.Close()

	data, err := os.ReadFile(filepath.Join(dir, "diabetes-risk.db"))
	if err != nil {
		t.Fatalf("read db: %v", err)
	}
	for _, name := range []string{"Glucose", "BloodPressure", "Insulin", "BMI"} {
		if bytes.Contains(data, []byte(name)) {
			t.Errorf("database unexpectedly contains feature name %q", name)
		}
	}
}

func TestStore_ConcurrentAppend(t *testing.T) {
	store := newTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := store.Append(PredictionRecord{RequestID: fmt.Sprintf("c%d", i)}); err != nil {
				t.Errorf("Append failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	n, _ := store.Count()
	if n != 20 {
		t.Errorf("Expected 20 records, got %d", n)
	}
}
