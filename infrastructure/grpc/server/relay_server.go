package server

import (
	"bytes"
	"chat-relay/auth"
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/infrastructure/grpc/relay"
	"chat-relay/observability"
	"chat-relay/runtime"
	"chat-relay/services"
	"context"
	"log/slog"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

var _ relay.RelayServiceServer = (*RelayServer)(nil)

// RelayServer exposes one services.Client per open session.
type RelayServer struct {
	log          *slog.Logger
	store        *runtime.MessageStore
	hub          *runtime.Hub
	resolver     contract.IAttachmentResolver
	issuer       *auth.TokenIssuer
	metrics      *observability.Metrics
	clientConfig services.ClientConfig

	mu       sync.RWMutex
	sessions map[string]*services.Client
}

func NewRelayServer(log *slog.Logger, store *runtime.MessageStore, hub *runtime.Hub,
	resolver contract.IAttachmentResolver, issuer *auth.TokenIssuer,
	metrics *observability.Metrics, clientConfig services.ClientConfig) *RelayServer {
	return &RelayServer{
		log:          log,
		store:        store,
		hub:          hub,
		resolver:     resolver,
		issuer:       issuer,
		metrics:      metrics,
		clientConfig: clientConfig,
		sessions:     make(map[string]*services.Client),
	}
}

// ServerOptions authenticates every call but OpenSession and lifts the
// receive limit to fit attachments of maxAttachmentSize bytes.
func ServerOptions(issuer *auth.TokenIssuer, maxAttachmentSize int64) []grpc.ServerOption {
	return []grpc.ServerOption{
		grpc.UnaryInterceptor(auth.UnaryInterceptor(issuer, relay.PublicMethods...)),
		grpc.StreamInterceptor(auth.StreamInterceptor(issuer, relay.PublicMethods...)),
		grpc.MaxRecvMsgSize(relay.MaxMessageSize(maxAttachmentSize)),
	}
}

// OpenSession creates a signed out client and returns its bearer token.
func (s *RelayServer) OpenSession(_ context.Context, _ *emptypb.Empty) (*wrapperspb.StringValue, error) {
	client := services.NewClient(s.log, s.store, s.hub, s.resolver, s.clientConfig)
	token, err := s.issuer.Issue(client.ID())
	if err != nil {
		_ = client.Close()
		s.log.Error("Token not issued", "error", err)
		return nil, status.Error(codes.Internal, "token generation failed")
	}

	s.mu.Lock()
	s.sessions[client.ID()] = client
	s.mu.Unlock()
	s.metrics.SessionOpened()
	s.log.Info("Session opened", "session", client.ID())
	return wrapperspb.String(token), nil
}

func (s *RelayServer) CloseSession(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	id, ok := auth.SessionIDFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "session is missing")
	}
	s.mu.Lock()
	client, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return nil, errors.MapToGRPCError(errors.ErrUnknownSession)
	}

	_ = client.Close()
	s.metrics.SessionClosed()
	s.log.Info("Session closed", "session", id)
	return &emptypb.Empty{}, nil
}

func (s *RelayServer) SignIn(ctx context.Context, req *wrapperspb.StringValue) (*emptypb.Empty, error) {
	client, err := s.client(ctx)
	if err != nil {
		return nil, err
	}
	if err := auth.ValidateSignIn(auth.SignInRequest{Identity: req.GetValue()}); err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	if err := client.SignIn(req.GetValue()); err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	return &emptypb.Empty{}, nil
}

func (s *RelayServer) SignOut(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	client, err := s.client(ctx)
	if err != nil {
		return nil, err
	}
	if err := client.SignOut(); err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	return &emptypb.Empty{}, nil
}

func (s *RelayServer) SendText(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.UInt64Value, error) {
	client, err := s.client(ctx)
	if err != nil {
		return nil, err
	}
	id, err := client.SendText(ctx, req.GetValue())
	if err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	return wrapperspb.UInt64(uint64(id)), nil
}

// SendImage expects the file name in the x-attachment-name metadata.
func (s *RelayServer) SendImage(ctx context.Context, req *wrapperspb.BytesValue) (*wrapperspb.UInt64Value, error) {
	client, err := s.client(ctx)
	if err != nil {
		return nil, err
	}
	md, _ := metadata.FromIncomingContext(ctx)
	names := md.Get(relay.AttachmentNameKey)
	if len(names) == 0 || names[0] == "" {
		return nil, status.Errorf(codes.InvalidArgument, "%s metadata is missing", relay.AttachmentNameKey)
	}
	id, err := client.SendImage(ctx, bytes.NewReader(req.GetValue()), names[0])
	if err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	return wrapperspb.UInt64(uint64(id)), nil
}

func (s *RelayServer) FetchAttachment(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	client, err := s.client(ctx)
	if err != nil {
		return nil, err
	}
	attachment, err := client.ResolveImage(ctx, req.GetValue())
	if err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	if err := grpc.SetHeader(ctx, metadata.Pairs(relay.ContentTypeKey, attachment.ContentType)); err != nil {
		s.log.Warn("Content type header not set", "error", err)
	}
	return wrapperspb.Bytes(attachment.Data), nil
}

// Subscribe replays from the cursor then streams the live tail until the
// caller goes away. A cancelled subscription sends its Cancelled event and
// ends the call with codes.Aborted so the caller can resume from its last id.
func (s *RelayServer) Subscribe(req *wrapperspb.UInt64Value, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	ctx := stream.Context()
	client, err := s.client(ctx)
	if err != nil {
		return err
	}
	sub, err := client.Subscribe(ctx, domain.MessageID(req.GetValue()))
	if err != nil {
		return errors.MapToGRPCError(err)
	}
	defer client.Unsubscribe(sub)
	s.log.Debug("Stream opened", "session", client.ID(), "subscription", sub.ID(), "since", sub.Since())

	for evt := range sub.Events() {
		payload, err := relay.EncodeEvent(evt)
		if err != nil {
			return status.Error(codes.Internal, err.Error())
		}
		if err := stream.Send(payload); err != nil {
			s.log.Warn("Failed to push event to stream",
				"session", client.ID(), "subscription", sub.ID(), "error", err)
			return err
		}
		if cancelled, ok := evt.(event.Cancelled); ok {
			return errors.MapToGRPCError(cancelled.Reason)
		}
	}
	s.log.Debug("Stream closed", "session", client.ID(), "subscription", sub.ID())
	return nil
}

// Sessions returns the number of open sessions.
func (s *RelayServer) Sessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Close ends every session, cancelling their subscriptions.
func (s *RelayServer) Close() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*services.Client)
	s.mu.Unlock()

	for _, client := range sessions {
		_ = client.Close()
		s.metrics.SessionClosed()
	}
	s.log.Info("Sessions closed", "count", len(sessions))
}

func (s *RelayServer) client(ctx context.Context) (*services.Client, error) {
	id, ok := auth.SessionIDFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "session is missing")
	}
	s.mu.RLock()
	client, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, errors.MapToGRPCError(errors.ErrUnknownSession)
	}
	return client, nil
}
