package main

import (
	"log"
	"net/http"
	"sync/atomic"
	"time"
)

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	if atomic.LoadInt64(&s.pool.active) > int64(s.cfg.WorkerCount*2) {
		status = "overloaded"
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":      status,
		"active_jobs": atomic.LoadInt64(&s.pool.active),
		"queued_jobs": atomic.LoadInt64(&s.pool.queued),
		"workers":     s.cfg.WorkerCount,
		"uptime":      time.Since(s.startedAt).String(),
	})
}

func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.CountByState()
	if err != nil {
		log.Printf("Stats: counting rows: %v", err)
		counts = map[string]int{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"active_jobs":      atomic.LoadInt64(&s.pool.active),
		"queued_jobs":      atomic.LoadInt64(&s.pool.queued),
		"completed_jobs":   atomic.LoadInt64(&s.pool.completed),
		"failed_jobs":      atomic.LoadInt64(&s.pool.failed),
		"stored_by_status": counts,
		"workers":          s.cfg.WorkerCount,
		"queue_capacity":   JobQueueCapacity,
		"uptime_seconds":   time.Since(s.startedAt).Seconds(),
	})
}
