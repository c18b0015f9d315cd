// Package domain contains core concepts of the chat relay.
// This file defines Message records and the rules they obey once stored.
// Messages are immutable and validated by the domain.
package domain

import (
	"fmt"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// MessageID is the position of a message in the log.
// Ids start at 1 and strictly increase in append order.
type MessageID uint64

// Cursor marks everything up to and including an id as seen.
type Cursor = MessageID

// Beginning is the cursor to use for a full history replay.
const Beginning MessageID = 0

func (id MessageID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// ParseMessageID is the inverse of MessageID.String.
func ParseMessageID(s string) (MessageID, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return MessageID(v), nil
}

// Message represents an immutable chat entry.
// Exactly one of Text or ImageRef carries the payload.
type Message struct {
	ID       MessageID
	Text     string `validate:"required_without=ImageRef,excluded_with=ImageRef"`
	Author   string `validate:"required"`
	ImageRef string `validate:"required_without=Text"`
	At       time.Time
}

// HasImage reports whether the message points to an attachment.
func (m Message) HasImage() bool { return m.ImageRef != "" }

var validate = validator.New()

// Validate checks the payload and author rules. Every string must be valid
// UTF-8 since it ends up in protobuf string fields.
// The id and timestamp are assigned by the store and are not checked here.
func (m Message) Validate() error {
	for field, value := range map[string]string{"Text": m.Text, "Author": m.Author, "ImageRef": m.ImageRef} {
		if !utf8.ValidString(value) {
			return fmt.Errorf("%s is not valid UTF-8", field)
		}
	}
	return validate.Struct(m)
}
