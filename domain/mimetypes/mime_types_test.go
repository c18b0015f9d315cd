package mimetypes

import (
	"testing"
)

func TestMatches(t *testing.T) {
	tests := []struct {
		name     string
		detected string
		expected MIME
		want     bool
	}{
		{"PNG", "image/png", ImagePNG, true},
		{"JPEG", "image/jpeg", ImageJPEG, true},
		{"GIF", "image/gif", ImageGIF, true},
		{"WebP", "image/webp", ImageWebP, true},

		{"Mismatch", "image/png", ImageJPEG, false},
		{"Octet stream", "application/octet-stream", ImagePNG, false},
		{"Invalid MIME", "not a mime", ImagePNG, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := Matches(tt.detected, tt.expected)
			if ok != tt.want {
				t.Errorf("Matches(%q, %q) = %v; want %v", tt.detected, tt.expected, ok, tt.want)
			}
		})
	}
}

func TestIsImage(t *testing.T) {
	tests := []struct {
		detected string
		want     bool
	}{
		{"image/png", true},
		{"image/svg+xml", true},
		{"IMAGE/JPEG", true},
		{"text/plain; charset=utf-8", false},
		{"application/octet-stream", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.detected, func(t *testing.T) {
			if got := IsImage(tt.detected); got != tt.want {
				t.Errorf("IsImage(%q) = %v; want %v", tt.detected, got, tt.want)
			}
		})
	}
}
