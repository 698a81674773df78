package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
)

func main() {
	cfg := LoadConfig()

	if err := os.MkdirAll(cfg.DownloadDir, 0o755); err != nil {
		log.Fatalf("Creating download dir: %v", err)
	}

	store, err := OpenJobStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("Opening job store: %v", err)
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cache := newJobCache(ctx, cfg)
	defer cache.Close()

	sessions, err := NewSessionManager(cfg.SessionDir, cfg.SessionTTL)
	if err != nil {
		log.Fatalf("Creating session manager: %v", err)
	}

	yt := newYtdlpClient()
	pool := NewPool(cfg, store, cache, yt, newFfmpegConverter())
	pool.Start(ctx)

	reaper := NewReaper(cfg, store, cache)
	go reaper.Run(ctx)

	s := &server{
		cfg:       cfg,
		store:     store,
		cache:     cache,
		pool:      pool,
		reaper:    reaper,
		yt:        yt,
		sessions:  sessions,
		startedAt: time.Now(),
	}

	r := chi.NewRouter()
	r.Use(rateLimitMiddleware, corsMiddleware, sessions.Middleware)
	r.Get("/", s.handleIndex)
	r.Post("/download_audio", s.handleDownloadAudio)
	r.Post("/download_video", s.handleDownloadVideo)
	r.Get("/status/{jobID}", s.handleStatus)
	r.Get("/download/{jobID}", s.handleDownload)
	r.Get("/health", s.handleHealth)
	r.Get("/stats", s.handleStats)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}

	go func() {
		log.Printf("Server running on http://localhost:%s with %d workers", cfg.Port, cfg.WorkerCount)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutdown signal received, stopping...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown: %v", err)
	}

	// In-flight jobs run to completion; cancel (deferred) stops the
	// reaper once the pool has drained.
	done := make(chan struct{})
	go func() {
		pool.Stop()
		close(done)
	}()
	select {
	case <-done:
		log.Println("All workers stopped gracefully")
	case <-time.After(30 * time.Second):
		log.Println("Shutdown timeout, forcing exit")
	}
}
