package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestReaper(t *testing.T, cfg Config) (*Reaper, *JobStore) {
	t.Helper()
	store, err := OpenJobStore(cfg.DBPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := os.MkdirAll(cfg.SessionDir, 0o755); err != nil {
		t.Fatal(err)
	}
	return NewReaper(cfg, store, &jobCache{ttl: cfg.SessionTTL}), store
}

func TestReaperRemovesExpiredJobsAndFiles(t *testing.T) {
	cfg := testConfig(t)
	reaper, store := newTestReaper(t, cfg)

	ownerDir := filepath.Join(cfg.DownloadDir, "owner-old")
	if err := os.MkdirAll(ownerDir, 0o755); err != nil {
		t.Fatal(err)
	}
	artifact := filepath.Join(ownerDir, "song.mp3")
	if err := os.WriteFile(artifact, []byte("media"), 0o644); err != nil {
		t.Fatal(err)
	}

	old := &DownloadJob{
		ID: "old", OwnerID: "owner-old", URL: "https://youtu.be/a",
		State: StatePending, CreatedAt: time.Now().Add(-2 * time.Hour),
	}
	if err := store.Create(old); err != nil {
		t.Fatal(err)
	}
	if err := store.UpdateState("old", StateCompleted, artifact); err != nil {
		t.Fatal(err)
	}

	fresh := &DownloadJob{
		ID: "fresh", OwnerID: "owner-new", URL: "https://youtu.be/b",
		State: StatePending, CreatedAt: time.Now(),
	}
	if err := store.Create(fresh); err != nil {
		t.Fatal(err)
	}

	reaper.Sweep(context.Background())

	if _, err := store.Get("old"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expired row survived: %v", err)
	}
	if _, err := os.Stat(artifact); !os.IsNotExist(err) {
		t.Error("artifact survived the sweep")
	}
	if _, err := os.Stat(ownerDir); !os.IsNotExist(err) {
		t.Error("owner dir survived the sweep")
	}
	if _, err := store.Get("fresh"); err != nil {
		t.Errorf("fresh row reaped: %v", err)
	}
}

func TestReaperSweepIsIdempotent(t *testing.T) {
	cfg := testConfig(t)
	reaper, store := newTestReaper(t, cfg)

	old := &DownloadJob{
		ID: "old", OwnerID: "owner", URL: "https://youtu.be/a",
		State: StatePending, CreatedAt: time.Now().Add(-2 * time.Hour),
	}
	if err := store.Create(old); err != nil {
		t.Fatal(err)
	}

	reaper.Sweep(context.Background())
	reaper.Sweep(context.Background()) // second pass over the same state

	if _, err := store.Get("old"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expired row survived: %v", err)
	}
}

func TestReaperToleratesMissingArtifact(t *testing.T) {
	cfg := testConfig(t)
	reaper, store := newTestReaper(t, cfg)

	old := &DownloadJob{
		ID: "old", OwnerID: "owner", URL: "https://youtu.be/a",
		State: StatePending, CreatedAt: time.Now().Add(-2 * time.Hour),
	}
	if err := store.Create(old); err != nil {
		t.Fatal(err)
	}
	// result path points at a file that is already gone
	if err := store.UpdateState("old", StateCompleted, filepath.Join(cfg.DownloadDir, "gone.mp3")); err != nil {
		t.Fatal(err)
	}

	reaper.Sweep(context.Background())

	if _, err := store.Get("old"); !errors.Is(err, ErrNotFound) {
		t.Errorf("sweep aborted on missing file: %v", err)
	}
}

func TestReaperRemovesStaleSessionRecords(t *testing.T) {
	cfg := testConfig(t)
	reaper, _ := newTestReaper(t, cfg)

	ownerDir := filepath.Join(cfg.DownloadDir, "sid-stale")
	if err := os.MkdirAll(ownerDir, 0o755); err != nil {
		t.Fatal(err)
	}

	stale := filepath.Join(cfg.SessionDir, "sess_sid-stale")
	data, _ := json.Marshal(sessionRecord{SessionID: "sid-stale", CreatedAt: time.Now().Add(-3 * time.Hour)})
	if err := os.WriteFile(stale, data, 0o644); err != nil {
		t.Fatal(err)
	}
	past := time.Now().Add(-3 * time.Hour)
	if err := os.Chtimes(stale, past, past); err != nil {
		t.Fatal(err)
	}

	active := filepath.Join(cfg.SessionDir, "sess_sid-active")
	data, _ = json.Marshal(sessionRecord{SessionID: "sid-active", CreatedAt: time.Now()})
	if err := os.WriteFile(active, data, 0o644); err != nil {
		t.Fatal(err)
	}

	reaper.Sweep(context.Background())

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("stale session record survived")
	}
	if _, err := os.Stat(ownerDir); !os.IsNotExist(err) {
		t.Error("stale session's owner dir survived")
	}
	if _, err := os.Stat(active); err != nil {
		t.Errorf("active session record removed: %v", err)
	}
}

func TestReaperToleratesCorruptSessionRecord(t *testing.T) {
	cfg := testConfig(t)
	reaper, _ := newTestReaper(t, cfg)

	corrupt := filepath.Join(cfg.SessionDir, "sess_corrupt")
	if err := os.WriteFile(corrupt, []byte("not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	past := time.Now().Add(-3 * time.Hour)
	if err := os.Chtimes(corrupt, past, past); err != nil {
		t.Fatal(err)
	}

	stale := filepath.Join(cfg.SessionDir, "sess_other")
	data, _ := json.Marshal(sessionRecord{SessionID: "other", CreatedAt: past})
	if err := os.WriteFile(stale, data, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(stale, past, past); err != nil {
		t.Fatal(err)
	}

	// A corrupt record must not abort the sweep.
	reaper.Sweep(context.Background())

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("stale record after the corrupt one survived")
	}
}
