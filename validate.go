package main

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/dannav/hhmmss"
)

var youtubeURLPattern = regexp.MustCompile(
	`^(https?://)?(www\.)?` +
		`(youtube\.com/watch\?v=|youtu\.be/|youtube\.com/playlist\?list=|youtube\.com/shorts/)` +
		`[^\s<>"]+$`,
)

// timePattern admits MM:SS or HH:MM:SS; component ranges are checked
// separately so the error messages can name the offending part.
var timePattern = regexp.MustCompile(`^\d{1,2}:\d{2}(:\d{2})?$`)

// validateURLFormat is the syntactic half of URL validation; the
// resolvability probe against yt-dlp happens at submission time.
func validateURLFormat(url string) error {
	if url == "" {
		return errors.New("URL is required")
	}
	if !youtubeURLPattern.MatchString(url) {
		return errors.New("invalid YouTube URL format")
	}
	return nil
}

func isPlaylist(url string) bool {
	return strings.Contains(strings.ToLower(url), "playlist") || strings.Contains(url, "list=")
}

// validateTime accepts an empty string (the field is optional), MM:SS
// with minutes up to 99, or HH:MM:SS with minutes and seconds below 60.
func validateTime(s string) error {
	if s == "" {
		return nil
	}
	if !timePattern.MatchString(s) {
		return errors.New("time must be in MM:SS or HH:MM:SS format")
	}
	parts := strings.Split(s, ":")
	if len(parts) == 3 {
		minutes, seconds := atoiNoErr(parts[1]), atoiNoErr(parts[2])
		if minutes > 59 || seconds > 59 {
			return errors.New("minutes and seconds must be less than 60")
		}
		return nil
	}
	minutes, seconds := atoiNoErr(parts[0]), atoiNoErr(parts[1])
	if minutes > 99 || seconds > 59 {
		return errors.New("minutes must be less than 100 and seconds less than 60")
	}
	return nil
}

// validateTrimWindow applies the cross-field rule: when both bounds are
// present the end must come strictly after the start.
func validateTrimWindow(start, end string) error {
	if start == "" || end == "" {
		return nil
	}
	startSec, err := timeToSeconds(start)
	if err != nil {
		return err
	}
	endSec, err := timeToSeconds(end)
	if err != nil {
		return err
	}
	if endSec <= startSec {
		return errors.New("end time must be after start time")
	}
	return nil
}

func timeToSeconds(s string) (int, error) {
	if strings.Count(s, ":") == 1 {
		s = "00:" + s
	}
	d, err := hhmmss.Parse(s)
	if err != nil {
		return 0, errors.New("error parsing time values")
	}
	return int(d / time.Second), nil
}

func atoiNoErr(s string) int {
	n := 0
	for _, c := range s {
		n = n*10 + int(c-'0')
	}
	return n
}
