package main

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *JobStore {
	t.Helper()
	store, err := OpenJobStore(filepath.Join(t.TempDir(), "downloads.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleJob(id string, createdAt time.Time) *DownloadJob {
	return &DownloadJob{
		ID:         id,
		OwnerID:    "owner-" + id,
		URL:        "https://youtu.be/" + id,
		State:      StatePending,
		FormatType: "mp3",
		Quality:    "192",
		CreatedAt:  createdAt,
	}
}

func TestStoreCreateAndGet(t *testing.T) {
	store := newTestStore(t)
	job := sampleJob("a", time.Now())
	if err := store.Create(job); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := store.Get("a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.State != StatePending || got.URL != job.URL || got.OwnerID != job.OwnerID {
		t.Errorf("got %+v", got)
	}
	if got.FilePath != "" {
		t.Errorf("fresh row has file path %q", got.FilePath)
	}
}

func TestStoreDuplicateID(t *testing.T) {
	store := newTestStore(t)
	if err := store.Create(sampleJob("a", time.Now())); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Create(sampleJob("a", time.Now())); !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("err = %v, want ErrDuplicateID", err)
	}
}

func TestStoreGetUnknown(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.Get("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestStoreUpdateState(t *testing.T) {
	store := newTestStore(t)
	if err := store.Create(sampleJob("a", time.Now())); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := store.UpdateState("a", StateDownloading, ""); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ := store.Get("a")
	if got.State != StateDownloading {
		t.Errorf("state = %q", got.State)
	}

	if err := store.UpdateState("a", StateCompleted, "/tmp/file.mp3"); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ = store.Get("a")
	if got.State != StateCompleted || got.FilePath != "/tmp/file.mp3" {
		t.Errorf("got %+v", got)
	}
}

func TestStoreUpdateStateClearsPathOnError(t *testing.T) {
	store := newTestStore(t)
	if err := store.Create(sampleJob("a", time.Now())); err != nil {
		t.Fatalf("create: %v", err)
	}
	// A file path may only accompany Completed.
	if err := store.UpdateState("a", ErrorState("boom"), "/tmp/file.mp3"); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ := store.Get("a")
	if !got.State.IsError() {
		t.Errorf("state = %q", got.State)
	}
	if got.FilePath != "" {
		t.Errorf("error row carries file path %q", got.FilePath)
	}
}

func TestStoreUpdateStateUnknownID(t *testing.T) {
	store := newTestStore(t)
	if err := store.UpdateState("nope", StateDownloading, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestStoreExpiry(t *testing.T) {
	store := newTestStore(t)
	old := time.Now().Add(-2 * time.Hour)
	if err := store.Create(sampleJob("old1", old)); err != nil {
		t.Fatal(err)
	}
	if err := store.Create(sampleJob("old2", old)); err != nil {
		t.Fatal(err)
	}
	if err := store.Create(sampleJob("fresh", time.Now())); err != nil {
		t.Fatal(err)
	}

	cutoff := time.Now().Add(-time.Hour)
	expired, err := store.ListExpired(cutoff)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(expired) != 2 {
		t.Fatalf("expired = %d rows, want 2", len(expired))
	}

	n, err := store.DeleteExpired(cutoff)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n != 2 {
		t.Errorf("deleted %d rows, want 2", n)
	}
	if _, err := store.Get("old1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("old1 still present: %v", err)
	}
	if _, err := store.Get("fresh"); err != nil {
		t.Errorf("fresh row gone: %v", err)
	}

	// Idempotent.
	if n, err := store.DeleteExpired(cutoff); err != nil || n != 0 {
		t.Errorf("second delete = (%d, %v)", n, err)
	}
}

func TestStoreCountByState(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()
	for _, id := range []string{"a", "b", "c"} {
		if err := store.Create(sampleJob(id, now)); err != nil {
			t.Fatal(err)
		}
	}
	store.UpdateState("a", StateCompleted, "/tmp/a.mp3")
	store.UpdateState("b", ErrorState("boom"), "")

	counts, err := store.CountByState()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if counts["Completed"] != 1 || counts["Error"] != 1 || counts["Pending"] != 1 {
		t.Errorf("counts = %v", counts)
	}
}
