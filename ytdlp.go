package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os/exec"
	"strings"

	"github.com/alessio/shellescape"
)

// MediaInfo is the probe result for a URL. Entries is populated only
// for playlists (flat probe).
type MediaInfo struct {
	Title    string       `json:"title"`
	Duration float64      `json:"duration"`
	Entries  []MediaEntry `json:"entries"`
}

type MediaEntry struct {
	Title    string  `json:"title"`
	Duration float64 `json:"duration"`
}

type AudioOptions struct {
	URL      string
	Format   string // mp3, m4a, aac, ogg
	Bitrate  string // kbps
	Start    string // optional trim bounds, MM:SS or HH:MM:SS
	End      string
	OutDir   string
	Playlist bool
}

type VideoOptions struct {
	URL      string
	Format   string // mp4, webm, mkv
	Height   string // pixel-height ceiling
	Mute     bool
	OutDir   string
	Playlist bool
}

// extractor is the boundary to the external downloader tool. Worker
// tests substitute a fake; ytdlpClient is the real thing.
type extractor interface {
	Probe(ctx context.Context, rawURL string, flat bool) (*MediaInfo, error)
	DownloadAudio(ctx context.Context, opts AudioOptions) (string, error)
	DownloadRawAudio(ctx context.Context, rawURL, outDir string) (string, error)
	DownloadVideo(ctx context.Context, opts VideoOptions) (string, error)
}

type ytdlpClient struct {
	bin string
}

func newYtdlpClient() *ytdlpClient {
	return &ytdlpClient{bin: "yt-dlp"}
}

func (c *ytdlpClient) Probe(ctx context.Context, rawURL string, flat bool) (*MediaInfo, error) {
	args := []string{"-J", "--no-warnings", "--skip-download"}
	if flat {
		args = append(args, "--flat-playlist")
	}
	args = append(args, rawURL)

	out, err := c.run(ctx, args)
	if err != nil {
		return nil, err
	}
	var info MediaInfo
	if err := json.Unmarshal(out, &info); err != nil {
		return nil, fmt.Errorf("yt-dlp metadata parse error: %v", err)
	}
	return &info, nil
}

// DownloadAudio fetches audio and lets yt-dlp extract it into the
// requested codec. For playlists the produced files land under OutDir
// and the returned path is empty; per-entry failures are tolerated.
func (c *ytdlpClient) DownloadAudio(ctx context.Context, opts AudioOptions) (string, error) {
	codec := opts.Format
	if codec == "ogg" {
		codec = "vorbis"
	}
	args := []string{
		"-f", "bestaudio",
		"-x", "--audio-format", codec,
		"--audio-quality", opts.Bitrate + "K",
		"--no-warnings",
		"-o", opts.OutDir + "/%(title)s.%(ext)s",
	}
	if opts.Format == "aac" {
		args = append(args, "--postprocessor-args", "FFmpegExtractAudio:-f adts")
	}
	if opts.Start != "" && opts.End != "" {
		args = append(args, "--postprocessor-args", fmt.Sprintf("FFmpegExtractAudio:-ss %s -to %s", opts.Start, opts.End))
	}
	return c.download(ctx, args, opts.URL, opts.Playlist)
}

// DownloadRawAudio grabs the best audio stream untouched, preferring
// webm, for conversions handled by ffmpeg afterwards.
func (c *ytdlpClient) DownloadRawAudio(ctx context.Context, rawURL, outDir string) (string, error) {
	args := []string{
		"-f", "bestaudio[ext=webm]/bestaudio",
		"--no-warnings",
		"-o", outDir + "/%(title)s.%(ext)s",
	}
	return c.download(ctx, args, rawURL, false)
}

func (c *ytdlpClient) DownloadVideo(ctx context.Context, opts VideoOptions) (string, error) {
	var args []string
	if opts.Mute {
		args = []string{
			"-f", fmt.Sprintf("bestvideo[height<=%s]", opts.Height),
			"--remux-video", opts.Format,
		}
	} else {
		args = []string{
			"-f", fmt.Sprintf("bestvideo[height<=%s]+bestaudio/best[height<=%s]", opts.Height, opts.Height),
			"--merge-output-format", opts.Format,
		}
	}
	args = append(args,
		"--no-warnings",
		"-o", opts.OutDir+"/%(title)s.%(ext)s",
	)
	return c.download(ctx, args, opts.URL, opts.Playlist)
}

// download runs yt-dlp with the assembled args. Single downloads print
// the final file path on stdout; playlist runs return no path and keep
// going past broken entries.
func (c *ytdlpClient) download(ctx context.Context, args []string, rawURL string, playlist bool) (string, error) {
	if playlist {
		args = append(args, "--yes-playlist", "--ignore-errors")
	} else {
		args = append(args, "--no-playlist", "--print", "after_move:filepath", "--no-simulate")
	}
	args = append(args, rawURL)

	out, err := c.run(ctx, args)
	if err != nil {
		return "", err
	}
	if playlist {
		return "", nil
	}
	path := strings.TrimSpace(string(out))
	if path == "" {
		return "", fmt.Errorf("yt-dlp produced no output file")
	}
	return path, nil
}

func (c *ytdlpClient) run(ctx context.Context, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, c.bin, args...)
	log.Printf("Running %s", shellescape.QuoteCommand(append([]string{c.bin}, args...)))

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("yt-dlp failed: %v | %s", err, lastLine(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// lastLine keeps diagnostics short enough to store on the job row.
func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return s
}
