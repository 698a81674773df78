package main

import (
	"strings"
	"time"
)

type JobState string

const (
	StatePending     JobState = "Pending"
	StateDownloading JobState = "Downloading"
	StateCompleted   JobState = "Completed"

	errorPrefix = "Error: "
)

// ErrorState renders a failure as a job state carrying its message,
// matching how rows are stored ("Error: <message>").
func ErrorState(msg string) JobState {
	return JobState(errorPrefix + msg)
}

func (s JobState) IsError() bool {
	return strings.HasPrefix(string(s), errorPrefix)
}

func (s JobState) ErrorMessage() string {
	if !s.IsError() {
		return ""
	}
	return strings.TrimPrefix(string(s), errorPrefix)
}

func (s JobState) Terminal() bool {
	return s == StateCompleted || s.IsError()
}

// DownloadJob is one tracked download/convert request.
type DownloadJob struct {
	ID         string    `json:"download_id"`
	OwnerID    string    `json:"session_id"`
	URL        string    `json:"url"`
	State      JobState  `json:"status"`
	FormatType string    `json:"format_type"`
	Quality    string    `json:"bitrate_or_res"`
	FilePath   string    `json:"file_path,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type MediaKind string

const (
	KindAudio MediaKind = "audio"
	KindVideo MediaKind = "video"
)

// DownloadRequest is a validated submission handed to the orchestrator.
type DownloadRequest struct {
	URL        string
	Kind       MediaKind
	FormatType string
	Quality    string // bitrate for audio, resolution tier for video
	StartTime  string
	EndTime    string
	Mute       bool
}

// AudioFormats maps each audio container to its allowed bitrates (kbps).
var AudioFormats = map[string][]int{
	"mp3": {64, 128, 192, 256, 320},
	"m4a": {128},
	"aac": {96, 128, 192},
	"ogg": {64, 128, 192, 256},
}

var VideoFormats = []string{"mp4", "webm", "mkv"}

// Resolutions maps the client-facing tier name to a pixel-height ceiling.
var Resolutions = map[string]string{
	"4k": "2160", "2k": "1440", "1080p": "1080", "720p": "720",
	"480p": "480", "360p": "360", "240p": "240", "144p": "144",
}
