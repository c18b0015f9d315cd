package relay

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"
)

// knownReasons lets a client recover the sentinel behind a Cancelled event.
var knownReasons = []error{
	errors.ErrSubscriberTooSlow,
	errors.ErrSignedOut,
	errors.ErrHubClosed,
	errors.ErrClientClosed,
}

// EncodeEvent flattens a change event into a Struct with a "kind" field.
func EncodeEvent(evt event.ChangeEvent) (*structpb.Struct, error) {
	fields := map[string]any{"kind": evt.Kind().String()}
	switch e := evt.(type) {
	case event.Added:
		putMessage(fields, e.Message)
	case event.Changed:
		putMessage(fields, e.Message)
	case event.Removed:
		putMessage(fields, e.Message)
	case event.Moved:
		putMessage(fields, e.Message)
		fields["previous_id"] = float64(e.PreviousID)
	case event.Cancelled:
		reason := errors.ErrDeliveryCancelled.Error()
		if e.Reason != nil {
			reason = e.Reason.Error()
		}
		fields["reason"] = reason
	default:
		return nil, fmt.Errorf("unsupported event %T", evt)
	}
	return structpb.NewStruct(fields)
}

// DecodeEvent is the inverse of EncodeEvent.
func DecodeEvent(s *structpb.Struct) (event.ChangeEvent, error) {
	fields := s.GetFields()
	kind := fields["kind"].GetStringValue()
	switch kind {
	case event.KindAdded.String():
		return event.Added{Message: getMessage(fields)}, nil
	case event.KindChanged.String():
		return event.Changed{Message: getMessage(fields)}, nil
	case event.KindRemoved.String():
		return event.Removed{Message: getMessage(fields)}, nil
	case event.KindMoved.String():
		return event.Moved{
			Message:    getMessage(fields),
			PreviousID: domain.MessageID(fields["previous_id"].GetNumberValue()),
		}, nil
	case event.KindCancelled.String():
		return event.Cancelled{Reason: decodeReason(fields["reason"].GetStringValue())}, nil
	default:
		return nil, fmt.Errorf("unknown event kind %q", kind)
	}
}

func putMessage(fields map[string]any, message domain.Message) {
	// ids stay far below 2^53, so a JSON number holds them exactly
	fields["id"] = float64(message.ID)
	fields["author"] = message.Author
	if message.Text != "" {
		fields["text"] = message.Text
	}
	if message.ImageRef != "" {
		fields["image_ref"] = message.ImageRef
	}
	if !message.At.IsZero() {
		fields["at"] = message.At.UTC().Format(time.RFC3339Nano)
	}
}

func getMessage(fields map[string]*structpb.Value) domain.Message {
	message := domain.Message{
		ID:       domain.MessageID(fields["id"].GetNumberValue()),
		Author:   fields["author"].GetStringValue(),
		Text:     fields["text"].GetStringValue(),
		ImageRef: fields["image_ref"].GetStringValue(),
	}
	if at, err := time.Parse(time.RFC3339Nano, fields["at"].GetStringValue()); err == nil {
		message.At = at
	}
	return message
}

func decodeReason(reason string) error {
	for _, known := range knownReasons {
		if known.Error() == reason {
			return known
		}
	}
	if reason == errors.ErrDeliveryCancelled.Error() {
		return errors.ErrDeliveryCancelled
	}
	return fmt.Errorf("%w: %s", errors.ErrDeliveryCancelled, reason)
}
