package client

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/infrastructure/grpc/relay"
	"context"
	"io"
	"iter"
	"math"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// RelayClient is the typed stub of relay.v1.RelayService.
// OpenSession must be called first; the token is attached to every call.
type RelayClient struct {
	conn  grpc.ClientConnInterface
	mu    sync.RWMutex
	token string
}

func NewRelayClient(conn grpc.ClientConnInterface) *RelayClient {
	return &RelayClient{conn: conn}
}

func (c *RelayClient) OpenSession(ctx context.Context) error {
	out := new(wrapperspb.StringValue)
	if err := c.conn.Invoke(ctx, relay.OpenSessionMethod, &emptypb.Empty{}, out); err != nil {
		return err
	}
	c.mu.Lock()
	c.token = out.GetValue()
	c.mu.Unlock()
	return nil
}

func (c *RelayClient) CloseSession(ctx context.Context) error {
	return c.conn.Invoke(c.authorized(ctx), relay.CloseSessionMethod, &emptypb.Empty{}, new(emptypb.Empty))
}

func (c *RelayClient) SignIn(ctx context.Context, identity string) error {
	return c.conn.Invoke(c.authorized(ctx), relay.SignInMethod, wrapperspb.String(identity), new(emptypb.Empty))
}

func (c *RelayClient) SignOut(ctx context.Context) error {
	return c.conn.Invoke(c.authorized(ctx), relay.SignOutMethod, &emptypb.Empty{}, new(emptypb.Empty))
}

func (c *RelayClient) SendText(ctx context.Context, text string) (domain.MessageID, error) {
	out := new(wrapperspb.UInt64Value)
	if err := c.conn.Invoke(c.authorized(ctx), relay.SendTextMethod, wrapperspb.String(text), out); err != nil {
		return domain.Beginning, err
	}
	return domain.MessageID(out.GetValue()), nil
}

func (c *RelayClient) SendImage(ctx context.Context, content []byte, name string) (domain.MessageID, error) {
	ctx = metadata.AppendToOutgoingContext(c.authorized(ctx), relay.AttachmentNameKey, name)
	out := new(wrapperspb.UInt64Value)
	if err := c.conn.Invoke(ctx, relay.SendImageMethod, wrapperspb.Bytes(content), out); err != nil {
		return domain.Beginning, err
	}
	return domain.MessageID(out.GetValue()), nil
}

func (c *RelayClient) FetchAttachment(ctx context.Context, reference string) (domain.Attachment, error) {
	var header metadata.MD
	out := new(wrapperspb.BytesValue)
	err := c.conn.Invoke(c.authorized(ctx), relay.FetchAttachmentMethod,
		wrapperspb.String(reference), out, grpc.Header(&header), grpc.MaxCallRecvMsgSize(math.MaxInt32))
	if err != nil {
		return domain.Attachment{}, err
	}
	attachment := domain.Attachment{
		Name: reference,
		Data: out.GetValue(),
		Size: int64(len(out.GetValue())),
	}
	if values := header.Get(relay.ContentTypeKey); len(values) > 0 {
		attachment.ContentType = values[0]
	}
	return attachment, nil
}

// Subscribe opens the event stream. Iteration ends when ctx is done, or
// with the status error that closed the stream (codes.Aborted after a
// Cancelled event).
func (c *RelayClient) Subscribe(ctx context.Context, since domain.Cursor) (iter.Seq2[event.ChangeEvent, error], error) {
	stream, err := c.conn.NewStream(c.authorized(ctx), relay.SubscribeStreamDesc, relay.SubscribeMethod)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(wrapperspb.UInt64(uint64(since))); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}

	return func(yield func(event.ChangeEvent, error) bool) {
		for {
			payload := new(structpb.Struct)
			if err := stream.RecvMsg(payload); err != nil {
				if !errors.Is(err, io.EOF) {
					yield(nil, err)
				}
				return
			}
			evt, err := relay.DecodeEvent(payload)
			if !yield(evt, err) {
				return
			}
		}
	}, nil
}

func (c *RelayClient) authorized(ctx context.Context) context.Context {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.token == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, relay.AuthorizationKey, "Bearer "+c.token)
}
