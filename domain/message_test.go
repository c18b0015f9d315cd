package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMessage_Validate(t *testing.T) {
	tests := []struct {
		name    string
		message Message
		wantErr bool
	}{
		{"Text message", Message{Text: "hi", Author: "alice"}, false},
		{"Image message", Message{ImageRef: "blob://chat_photos/cat.png", Author: "alice"}, false},
		{"Both text and image", Message{Text: "hi", ImageRef: "blob://chat_photos/cat.png", Author: "alice"}, true},
		{"Neither text nor image", Message{Author: "alice"}, true},
		{"Missing author", Message{Text: "hi"}, true},
		{"Text not UTF-8", Message{Text: "caf\xe9", Author: "alice"}, true},
		{"Author not UTF-8", Message{Text: "hi", Author: "b\xffb"}, true},
		{"Image reference not UTF-8", Message{ImageRef: "blob://chat_photos/\xc3", Author: "alice"}, true},
		{"Multibyte text", Message{Text: "café ☕", Author: "zoé"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			err := tt.message.Validate()
			if tt.wantErr {
				req.Error(err)
			} else {
				req.NoError(err)
			}
		})
	}
}

func TestMessageID_String_Round_Trip(t *testing.T) {
	req := require.New(t)
	id := MessageID(18446744073709551615)

	parsed, err := ParseMessageID(id.String())

	req.NoError(err)
	req.Equal(id, parsed)
}
