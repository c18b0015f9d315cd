package domain

import (
	"strings"
	"time"
)

// Attachment is a binary object referenced by a message.
type Attachment struct {
	Name        string
	ContentType string
	Size        int64
	Data        []byte
	StoredAt    time.Time
}

// IsImage reports whether the detected content type is an image.
func (a Attachment) IsImage() bool {
	return strings.HasPrefix(a.ContentType, "image/")
}
