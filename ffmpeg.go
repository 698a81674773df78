package main

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os/exec"
	"strings"

	"github.com/alessio/shellescape"
)

type ConvertOptions struct {
	Format  string // aac or ogg
	Bitrate string // kbps
	Start   string // optional trim bounds
	End     string
}

// converter transcodes a downloaded stream into the target codec.
type converter interface {
	Convert(ctx context.Context, src, dst string, opts ConvertOptions) error
}

type ffmpegConverter struct {
	bin string
}

func newFfmpegConverter() *ffmpegConverter {
	return &ffmpegConverter{bin: "ffmpeg"}
}

func (c *ffmpegConverter) Convert(ctx context.Context, src, dst string, opts ConvertOptions) error {
	args := []string{"-y", "-loglevel", "error", "-nostdin", "-i", src}
	if opts.Start != "" {
		args = append(args, "-ss", opts.Start)
	}
	if opts.End != "" {
		args = append(args, "-to", opts.End)
	}
	switch opts.Format {
	case "aac":
		args = append(args, "-c:a", "aac", "-b:a", opts.Bitrate+"k", "-f", "adts")
	case "ogg":
		args = append(args, "-c:a", "libvorbis", "-b:a", opts.Bitrate+"k")
	default:
		return fmt.Errorf("unsupported conversion format %q", opts.Format)
	}
	args = append(args, dst)

	cmd := exec.CommandContext(ctx, c.bin, args...)
	log.Printf("Running %s", shellescape.QuoteCommand(append([]string{c.bin}, args...)))

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg failed: %v | %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
