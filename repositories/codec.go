package repositories

import (
	"chat-relay/domain"
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the stored records. They follow protobuf wire rules so
// a .proto description of the records can be added without a migration.
const (
	messageIDField       protowire.Number = 1
	messageTextField     protowire.Number = 2
	messageAuthorField   protowire.Number = 3
	messageImageRefField protowire.Number = 4
	messageAtField       protowire.Number = 5

	blobNameField        protowire.Number = 1
	blobContentTypeField protowire.Number = 2
	blobSizeField        protowire.Number = 3
	blobDataField        protowire.Number = 4
	blobStoredAtField    protowire.Number = 5
)

func encodeMessage(m domain.Message) []byte {
	b := make([]byte, 0, 32+len(m.Text)+len(m.Author)+len(m.ImageRef))
	b = appendVarint(b, messageIDField, uint64(m.ID))
	b = appendString(b, messageTextField, m.Text)
	b = appendString(b, messageAuthorField, m.Author)
	b = appendString(b, messageImageRefField, m.ImageRef)
	b = appendVarint(b, messageAtField, uint64(m.At.UnixNano()))
	return b
}

func decodeMessage(b []byte) (domain.Message, error) {
	var m domain.Message
	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, value []byte) int {
		switch {
		case num == messageIDField && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(value)
			m.ID = domain.MessageID(v)
			return n
		case num == messageTextField && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(value)
			m.Text = v
			return n
		case num == messageAuthorField && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(value)
			m.Author = v
			return n
		case num == messageImageRefField && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(value)
			m.ImageRef = v
			return n
		case num == messageAtField && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(value)
			m.At = time.Unix(0, int64(v)).UTC()
			return n
		}
		return protowire.ConsumeFieldValue(num, typ, value)
	})
	if err != nil {
		return domain.Message{}, fmt.Errorf("decode message: %w", err)
	}
	return m, nil
}

func encodeBlob(a domain.Attachment) []byte {
	b := make([]byte, 0, 48+len(a.Name)+len(a.ContentType)+len(a.Data))
	b = appendString(b, blobNameField, a.Name)
	b = appendString(b, blobContentTypeField, a.ContentType)
	b = appendVarint(b, blobSizeField, uint64(a.Size))
	b = protowire.AppendTag(b, blobDataField, protowire.BytesType)
	b = protowire.AppendBytes(b, a.Data)
	b = appendVarint(b, blobStoredAtField, uint64(a.StoredAt.UnixNano()))
	return b
}

func decodeBlob(b []byte) (domain.Attachment, error) {
	var a domain.Attachment
	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, value []byte) int {
		switch {
		case num == blobNameField && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(value)
			a.Name = v
			return n
		case num == blobContentTypeField && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(value)
			a.ContentType = v
			return n
		case num == blobSizeField && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(value)
			a.Size = int64(v)
			return n
		case num == blobDataField && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(value)
			// value is only valid inside the badger transaction
			a.Data = append([]byte(nil), v...)
			return n
		case num == blobStoredAtField && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(value)
			a.StoredAt = time.Unix(0, int64(v)).UTC()
			return n
		}
		return protowire.ConsumeFieldValue(num, typ, value)
	})
	if err != nil {
		return domain.Attachment{}, fmt.Errorf("decode blob: %w", err)
	}
	return a, nil
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

// appendString skips empty strings, as proto3 does for default values.
func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

// consumeFields walks every field of a record. fn returns how many bytes
// of value it consumed, or a negative protowire error code.
func consumeFields(b []byte, fn func(num protowire.Number, typ protowire.Type, value []byte) int) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		n = fn(num, typ, b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
	}
	return nil
}
