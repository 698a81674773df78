package main

import "testing"

func TestValidateURLFormat(t *testing.T) {
	tests := []struct {
		url string
		ok  bool
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", true},
		{"http://youtube.com/watch?v=abc123", true},
		{"youtu.be/dQw4w9WgXcQ", true},
		{"https://www.youtube.com/playlist?list=PLabc", true},
		{"https://youtube.com/shorts/xyz", true},
		{"", false},
		{"https://vimeo.com/12345", false},
		{"not a url", false},
		{"https://www.youtube.com/watch?v=a b", false},
	}
	for _, tt := range tests {
		err := validateURLFormat(tt.url)
		if (err == nil) != tt.ok {
			t.Errorf("validateURLFormat(%q) = %v, want ok=%v", tt.url, err, tt.ok)
		}
	}
}

func TestIsPlaylist(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://www.youtube.com/playlist?list=PLabc", true},
		{"https://www.youtube.com/watch?v=abc&list=PLabc", true},
		{"https://www.youtube.com/watch?v=abc", false},
		{"https://youtu.be/abc", false},
	}
	for _, tt := range tests {
		if got := isPlaylist(tt.url); got != tt.want {
			t.Errorf("isPlaylist(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

func TestValidateTime(t *testing.T) {
	tests := []struct {
		in string
		ok bool
	}{
		{"", true}, // optional
		{"00:30", true},
		{"90:00", true}, // MM:SS allows minutes up to 99
		{"99:59", true},
		{"01:02:03", true},
		{"1:99", false}, // seconds >= 60
		{"00:60", false},
		{"01:60:00", false},
		{"01:00:60", false},
		{"1", false},
		{"::", false},
		{"abc", false},
		{"-1:00", false},
	}
	for _, tt := range tests {
		err := validateTime(tt.in)
		if (err == nil) != tt.ok {
			t.Errorf("validateTime(%q) = %v, want ok=%v", tt.in, err, tt.ok)
		}
	}
}

func TestValidateTrimWindow(t *testing.T) {
	tests := []struct {
		start, end string
		ok         bool
	}{
		{"", "", true},
		{"00:10", "", true},
		{"", "00:10", true},
		{"00:05", "00:10", true},
		{"00:10", "00:05", false},
		{"00:10", "00:10", false}, // strictly after
		{"01:00:00", "01:00:01", true},
		{"00:59", "01:00:00", true},
	}
	for _, tt := range tests {
		err := validateTrimWindow(tt.start, tt.end)
		if (err == nil) != tt.ok {
			t.Errorf("validateTrimWindow(%q, %q) = %v, want ok=%v", tt.start, tt.end, err, tt.ok)
		}
	}
	if err := validateTrimWindow("00:10", "00:05"); err == nil || err.Error() != "end time must be after start time" {
		t.Errorf("cross-field error = %v", err)
	}
}

func TestTimeToSeconds(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"00:30", 30},
		{"01:30", 90},
		{"90:00", 5400},
		{"01:00:00", 3600},
		{"01:02:03", 3723},
	}
	for _, tt := range tests {
		got, err := timeToSeconds(tt.in)
		if err != nil {
			t.Errorf("timeToSeconds(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("timeToSeconds(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
