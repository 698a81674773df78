package main

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Reaper deletes expired jobs, their artifacts, owner working
// directories and session records. It runs on its own timer and is
// also invoked lazily from the status/download handlers; individual
// failures never abort a sweep and re-running is a no-op.
type Reaper struct {
	store       *JobStore
	cache       *jobCache
	ttl         time.Duration
	interval    time.Duration
	downloadDir string
	sessionDir  string

	mu sync.Mutex // one sweep at a time
}

func NewReaper(cfg Config, store *JobStore, cache *jobCache) *Reaper {
	return &Reaper{
		store:       store,
		cache:       cache,
		ttl:         cfg.SessionTTL,
		interval:    cfg.ReaperInterval,
		downloadDir: cfg.DownloadDir,
		sessionDir:  cfg.SessionDir,
	}
}

// Run sweeps on a fixed interval until the context is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.Sweep(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (r *Reaper) Sweep(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-r.ttl)
	r.sweepJobs(ctx, cutoff)
	r.sweepSessions(cutoff)
}

// sweepJobs removes expired rows, the artifacts they point at, and the
// working directory of every owner touched.
func (r *Reaper) sweepJobs(ctx context.Context, cutoff time.Time) {
	expired, err := r.store.ListExpired(cutoff)
	if err != nil {
		log.Printf("Reaper: listing expired downloads: %v", err)
		return
	}
	if len(expired) == 0 {
		return
	}

	owners := make(map[string]struct{})
	ids := make([]string, 0, len(expired))
	for _, job := range expired {
		ids = append(ids, job.ID)
		owners[job.OwnerID] = struct{}{}
		if job.FilePath != "" {
			if err := os.Remove(job.FilePath); err != nil && !os.IsNotExist(err) {
				log.Printf("Reaper: removing %s: %v", job.FilePath, err)
			}
		}
	}
	for owner := range owners {
		dir := filepath.Join(r.downloadDir, owner)
		if err := os.RemoveAll(dir); err != nil {
			log.Printf("Reaper: removing owner dir %s: %v", dir, err)
		}
	}

	n, err := r.store.DeleteExpired(cutoff)
	if err != nil {
		log.Printf("Reaper: deleting expired rows: %v", err)
		return
	}
	r.cache.Delete(ctx, ids...)
	log.Printf("Reaper: removed %d expired downloads across %d owners", n, len(owners))
}

// sweepSessions scans serialized session records by mtime and removes
// stale ones along with the matching owner directory.
func (r *Reaper) sweepSessions(cutoff time.Time) {
	entries, err := os.ReadDir(r.sessionDir)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Reaper: reading session dir: %v", err)
		}
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), "sess_") {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(r.sessionDir, entry.Name())
		sid, err := readSessionRecord(path)
		if err != nil {
			log.Printf("Reaper: unreadable session record %s: %v", path, err)
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Printf("Reaper: removing session record %s: %v", path, err)
			continue
		}
		if sid != "" {
			dir := filepath.Join(r.downloadDir, sid)
			if err := os.RemoveAll(dir); err != nil {
				log.Printf("Reaper: removing owner dir %s: %v", dir, err)
			}
		}
	}
}
