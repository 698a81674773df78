package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

var errQueueFull = errors.New("job queue full")

type queuedJob struct {
	job      *DownloadJob
	req      DownloadRequest
	ownerDir string
}

// Pool runs download jobs on a fixed set of workers. The HTTP layer
// only enqueues; each job runs to completion or failure, no retries,
// no cancellation once submitted.
type Pool struct {
	store *JobStore
	cache *jobCache
	yt    extractor
	conv  converter
	cfg   Config

	queue chan queuedJob
	wg    sync.WaitGroup

	active    int64
	queued    int64
	completed int64
	failed    int64
}

func NewPool(cfg Config, store *JobStore, cache *jobCache, yt extractor, conv converter) *Pool {
	return &Pool{
		store: store,
		cache: cache,
		yt:    yt,
		conv:  conv,
		cfg:   cfg,
		queue: make(chan queuedJob, JobQueueCapacity),
	}
}

func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.cfg.WorkerCount; i++ {
		p.wg.Add(1)
		go func(workerID int) {
			defer p.wg.Done()
			log.Printf("Worker %d started", workerID)
			for qj := range p.queue {
				p.processJob(ctx, qj, workerID)
			}
		}(i)
	}
}

// Stop drains the queue and waits for in-flight jobs.
func (p *Pool) Stop() {
	close(p.queue)
	p.wg.Wait()
}

// Submit enqueues a job body; a full queue is reported to the caller
// rather than spawning an unbounded worker.
func (p *Pool) Submit(job *DownloadJob, req DownloadRequest, ownerDir string) error {
	select {
	case p.queue <- queuedJob{job: job, req: req, ownerDir: ownerDir}:
		atomic.AddInt64(&p.queued, 1)
		return nil
	default:
		return errQueueFull
	}
}

func (p *Pool) processJob(ctx context.Context, qj queuedJob, workerID int) {
	atomic.AddInt64(&p.active, 1)
	atomic.AddInt64(&p.queued, -1)
	defer atomic.AddInt64(&p.active, -1)

	job := qj.job
	log.Printf("Worker %d: processing download %s for URL %s", workerID, job.ID, job.URL)

	p.setState(ctx, job, StateDownloading, "")

	path, err := p.runJob(ctx, qj)
	if err != nil {
		log.Printf("Worker %d: download %s failed: %v", workerID, job.ID, err)
		p.setState(ctx, job, ErrorState(err.Error()), "")
		atomic.AddInt64(&p.failed, 1)
		return
	}

	p.setState(ctx, job, StateCompleted, path)
	atomic.AddInt64(&p.completed, 1)
	log.Printf("Worker %d: download %s completed: %s", workerID, job.ID, path)
}

func (p *Pool) setState(ctx context.Context, job *DownloadJob, state JobState, path string) {
	if err := p.store.UpdateState(job.ID, state, path); err != nil {
		// Row may already be reaped; the job keeps running but its
		// outcome has no home.
		log.Printf("Download %s: state update to %q failed: %v", job.ID, state, err)
		return
	}
	job.State = state
	if state == StateCompleted {
		job.FilePath = path
	}
	if err := p.cache.Save(ctx, job); err != nil {
		log.Printf("Download %s: cache save failed: %v", job.ID, err)
	}
}

// runJob executes the actual fetch/convert work and returns the path
// of the produced artifact.
func (p *Pool) runJob(ctx context.Context, qj queuedJob) (string, error) {
	req := qj.req
	if isPlaylist(req.URL) {
		return p.runPlaylist(ctx, qj)
	}
	if req.Kind == KindAudio {
		return p.runSingleAudio(ctx, req, qj.ownerDir)
	}
	return p.runSingleVideo(ctx, req, qj.ownerDir)
}

func (p *Pool) runSingleAudio(ctx context.Context, req DownloadRequest, ownerDir string) (string, error) {
	switch req.FormatType {
	case "aac", "ogg":
		// yt-dlp fetches the raw stream, ffmpeg handles the codec and
		// the trim window.
		raw, err := p.yt.DownloadRawAudio(ctx, req.URL, ownerDir)
		if err != nil {
			return "", err
		}
		dst := strings.TrimSuffix(raw, filepath.Ext(raw)) + "." + req.FormatType
		err = p.conv.Convert(ctx, raw, dst, ConvertOptions{
			Format:  req.FormatType,
			Bitrate: req.Quality,
			Start:   req.StartTime,
			End:     req.EndTime,
		})
		os.Remove(raw)
		if err != nil {
			return "", err
		}
		if _, statErr := os.Stat(dst); statErr != nil {
			return "", fmt.Errorf("conversion produced no file: %s", filepath.Base(dst))
		}
		return dst, nil
	default:
		return p.yt.DownloadAudio(ctx, AudioOptions{
			URL:     req.URL,
			Format:  req.FormatType,
			Bitrate: req.Quality,
			Start:   req.StartTime,
			End:     req.EndTime,
			OutDir:  ownerDir,
		})
	}
}

func (p *Pool) runSingleVideo(ctx context.Context, req DownloadRequest, ownerDir string) (string, error) {
	return p.yt.DownloadVideo(ctx, VideoOptions{
		URL:    req.URL,
		Format: req.FormatType,
		Height: Resolutions[req.Quality],
		Mute:   req.Mute,
		OutDir: ownerDir,
	})
}

var unsafeTitleChars = regexp.MustCompile(`[^\w\-_\. ]`)

func (p *Pool) runPlaylist(ctx context.Context, qj queuedJob) (string, error) {
	req := qj.req

	info, err := p.yt.Probe(ctx, req.URL, true)
	if err != nil {
		return "", fmt.Errorf("could not retrieve playlist information: %v", err)
	}
	if err := p.checkEntryDurations(req.Quality, info.Entries); err != nil {
		return "", err
	}

	title := info.Title
	if title == "" {
		title = "playlist"
	}
	title = unsafeTitleChars.ReplaceAllString(title, "_")
	stamp := time.Now().Format("20060102150405")
	playlistDir := filepath.Join(qj.ownerDir, fmt.Sprintf("%s_%s", title, stamp))
	if err := os.MkdirAll(playlistDir, 0o755); err != nil {
		return "", fmt.Errorf("could not create playlist directory: %v", err)
	}

	if req.Kind == KindAudio {
		_, err = p.yt.DownloadAudio(ctx, AudioOptions{
			URL:      req.URL,
			Format:   req.FormatType,
			Bitrate:  req.Quality,
			OutDir:   playlistDir,
			Playlist: true,
		})
	} else {
		_, err = p.yt.DownloadVideo(ctx, VideoOptions{
			URL:      req.URL,
			Format:   req.FormatType,
			Height:   Resolutions[req.Quality],
			Mute:     req.Mute,
			OutDir:   playlistDir,
			Playlist: true,
		})
	}
	if err != nil {
		return "", err
	}

	zipPath := filepath.Join(qj.ownerDir, fmt.Sprintf("%s_%s.zip", title, stamp))
	n, err := buildArchive(zipPath, playlistDir, qj.ownerDir, "."+req.FormatType)
	if err != nil {
		return "", fmt.Errorf("no playlist items downloaded: %v", err)
	}
	log.Printf("Archived %d playlist items into %s", n, zipPath)
	return zipPath, nil
}

// checkEntryDurations enforces the per-tier media length ceiling on
// every playlist member before anything is downloaded.
func (p *Pool) checkEntryDurations(tier string, entries []MediaEntry) error {
	limit, ok := p.cfg.DurationLimits[tier]
	if !ok || limit <= 0 {
		return nil
	}
	for _, e := range entries {
		if time.Duration(e.Duration)*time.Second > limit {
			return fmt.Errorf("video %q exceeds %d-minute limit for %s",
				e.Title, int(limit.Minutes()), tier)
		}
	}
	return nil
}
