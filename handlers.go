package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type server struct {
	cfg      Config
	store    *JobStore
	cache    *jobCache
	pool     *Pool
	reaper   *Reaper
	yt       extractor
	sessions *SessionManager

	startedAt time.Time
}

func respondJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, code int, msg string) {
	respondJSON(w, code, map[string]string{"error": msg})
}

// handleIndex renders the landing page listing available formats and
// resolutions. The session middleware has already established the
// owner cookie by the time this runs.
func (s *server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := struct {
		AudioFormats map[string][]int
		VideoFormats []string
		Resolutions  []string
	}{
		AudioFormats: AudioFormats,
		VideoFormats: VideoFormats,
		Resolutions:  resolutionOrder,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, data); err != nil {
		log.Printf("Rendering index: %v", err)
	}
}

// handleDownloadAudio accepts url, format, bitrate and an optional
// trim window as form fields and enqueues an audio job.
func (s *server) handleDownloadAudio(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respondError(w, http.StatusBadRequest, "invalid form data")
		return
	}
	req := DownloadRequest{
		URL:        r.PostFormValue("url"),
		Kind:       KindAudio,
		FormatType: r.PostFormValue("format"),
		Quality:    r.PostFormValue("bitrate"),
		StartTime:  r.PostFormValue("start_time"),
		EndTime:    r.PostFormValue("end_time"),
	}

	if err := validateURLFormat(req.URL); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	bitrates, ok := AudioFormats[req.FormatType]
	if !ok {
		respondError(w, http.StatusBadRequest, "unsupported audio format")
		return
	}
	if kbps, err := strconv.Atoi(req.Quality); err != nil || !slices.Contains(bitrates, kbps) {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("unsupported bitrate for %s", req.FormatType))
		return
	}
	if err := validateTime(req.StartTime); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid start time: "+err.Error())
		return
	}
	if err := validateTime(req.EndTime); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid end time: "+err.Error())
		return
	}
	if err := validateTrimWindow(req.StartTime, req.EndTime); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	// Trim bounds make no sense across playlist members; rejected
	// before any row exists.
	if isPlaylist(req.URL) && (req.StartTime != "" || req.EndTime != "") {
		respondError(w, http.StatusBadRequest, "Trimming not supported for playlists")
		return
	}

	if _, err := s.yt.Probe(r.Context(), req.URL, isPlaylist(req.URL)); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid URL: "+err.Error())
		return
	}

	s.submit(w, r, req)
}

// handleDownloadVideo accepts url, format, resolution and a mute flag
// and enqueues a video job. Single items are checked against the
// per-tier duration ceiling before a job is created; playlist members
// are checked inside the worker.
func (s *server) handleDownloadVideo(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respondError(w, http.StatusBadRequest, "invalid form data")
		return
	}
	req := DownloadRequest{
		URL:        r.PostFormValue("url"),
		Kind:       KindVideo,
		FormatType: r.PostFormValue("format"),
		Quality:    r.PostFormValue("resolution"),
		Mute:       r.PostFormValue("mute") == "on",
	}

	if err := validateURLFormat(req.URL); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !slices.Contains(VideoFormats, req.FormatType) {
		respondError(w, http.StatusBadRequest, "unsupported video format")
		return
	}
	if _, ok := Resolutions[req.Quality]; !ok {
		respondError(w, http.StatusBadRequest, "unsupported resolution")
		return
	}

	playlist := isPlaylist(req.URL)
	info, err := s.yt.Probe(r.Context(), req.URL, playlist)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid URL: "+err.Error())
		return
	}
	if !playlist {
		if limit, ok := s.cfg.DurationLimits[req.Quality]; ok && limit > 0 {
			if time.Duration(info.Duration)*time.Second > limit {
				respondError(w, http.StatusBadRequest, fmt.Sprintf(
					"Video exceeds %d-minute limit for %s", int(limit.Minutes()), req.Quality))
				return
			}
		}
	}

	s.submit(w, r, req)
}

// submit persists a Pending row and hands the work to the pool,
// replying with the job id immediately.
func (s *server) submit(w http.ResponseWriter, r *http.Request, req DownloadRequest) {
	owner := ownerID(r)
	ownerDir := filepath.Join(s.cfg.DownloadDir, owner)
	if err := os.MkdirAll(ownerDir, 0o755); err != nil {
		respondError(w, http.StatusInternalServerError, "could not create working directory")
		return
	}

	job := &DownloadJob{
		ID:         uuid.New().String(),
		OwnerID:    owner,
		URL:        req.URL,
		State:      StatePending,
		FormatType: req.FormatType,
		Quality:    req.Quality,
		CreatedAt:  time.Now(),
	}
	if err := s.store.Create(job); err != nil {
		log.Printf("Creating download row: %v", err)
		respondError(w, http.StatusInternalServerError, "could not create download")
		return
	}
	if err := s.cache.Save(r.Context(), job); err != nil {
		log.Printf("Download %s: cache save failed: %v", job.ID, err)
	}

	if err := s.pool.Submit(job, req, ownerDir); err != nil {
		if delErr := s.store.Delete(job.ID); delErr != nil {
			log.Printf("Download %s: rollback failed: %v", job.ID, delErr)
		}
		respondError(w, http.StatusServiceUnavailable, "Server busy, please try again later.")
		return
	}

	log.Printf("Download %s queued for %s (owner %s)", job.ID, req.URL, owner)
	respondJSON(w, http.StatusOK, map[string]string{
		"download_id": job.ID,
		"status":      string(StatePending),
	})
}

// handleStatus reports a job's state. Stale entries are pruned lazily
// before the lookup so expired ids read as gone.
func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.reaper.Sweep(r.Context())

	jobID := chi.URLParam(r, "jobID")
	job, err := s.cache.Get(r.Context(), jobID)
	if err != nil || job == nil {
		job, err = s.store.Get(jobID)
		if err != nil {
			respondError(w, http.StatusNotFound, "Download not found")
			return
		}
	}

	resp := map[string]string{
		"download_id": job.ID,
		"status":      string(job.State),
	}
	if job.FilePath != "" {
		resp["file_path"] = job.FilePath
	}
	respondJSON(w, http.StatusOK, resp)
}

// handleDownload streams the finished artifact as an attachment. Jobs
// that have not completed, or whose file is already gone, read as 404.
func (s *server) handleDownload(w http.ResponseWriter, r *http.Request) {
	s.reaper.Sweep(r.Context())

	jobID := chi.URLParam(r, "jobID")
	job, err := s.store.Get(jobID)
	if err != nil || job.State != StateCompleted || job.FilePath == "" {
		respondError(w, http.StatusNotFound, "File not found")
		return
	}
	if _, err := os.Stat(job.FilePath); err != nil {
		respondError(w, http.StatusNotFound, "File not found")
		return
	}

	filename := filepath.Base(job.FilePath)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	http.ServeFile(w, r, job.FilePath)
}
