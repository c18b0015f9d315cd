package server_test

import (
	"bytes"
	"chat-relay/attachment"
	"chat-relay/auth"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/infrastructure/grpc/client"
	"chat-relay/infrastructure/grpc/relay"
	"chat-relay/infrastructure/grpc/server"
	"chat-relay/observability"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/services"
	"context"
	"iter"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

type harness struct {
	conn   *grpc.ClientConn
	relay  *server.RelayServer
	issuer *auth.TokenIssuer
}

func newHarness(t *testing.T) harness {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	store, err := runtime.NewMessageStore(log, repositories.NewMessageRepository(db, log), metrics, 0)
	require.NoError(t, err)
	hub := runtime.NewHub(log, store, runtime.NewRegistry(), metrics, 0)
	resolver := attachment.NewResolver(log, repositories.NewBlobRepository(db, log), metrics, "", 0)
	issuer, err := auth.NewTokenIssuer("0123456789abcdef0123456789abcdef", time.Hour)
	require.NoError(t, err)
	relayServer := server.NewRelayServer(log, store, hub, resolver, issuer, metrics, services.ClientConfig{})

	listener := bufconn.Listen(1 << 20)
	grpcServer := grpc.NewServer(server.ServerOptions(issuer, attachment.DefaultMaxSize)...)
	relay.RegisterRelayServiceServer(grpcServer, relayServer)
	go func() { _ = grpcServer.Serve(listener) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return listener.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = hub.Close(ctx)
		relayServer.Close()
		grpcServer.Stop()
	})
	return harness{conn: conn, relay: relayServer, issuer: issuer}
}

func (h harness) session(t *testing.T, identity string) *client.RelayClient {
	t.Helper()
	c := client.NewRelayClient(h.conn)
	require.NoError(t, c.OpenSession(context.Background()))
	if identity != "" {
		require.NoError(t, c.SignIn(context.Background(), identity))
	}
	return c
}

// pull reads the next item of a pull-based iterator.
func pull(t *testing.T, next func() (event.ChangeEvent, error, bool)) (event.ChangeEvent, error) {
	t.Helper()
	type item struct {
		evt event.ChangeEvent
		err error
		ok  bool
	}
	ch := make(chan item, 1)
	go func() {
		evt, err, ok := next()
		ch <- item{evt, err, ok}
	}()
	select {
	case it := <-ch:
		require.True(t, it.ok, "stream ended")
		return it.evt, it.err
	case <-time.After(5 * time.Second):
		t.Fatal("no event received")
		return nil, nil
	}
}

func added(t *testing.T, next func() (event.ChangeEvent, error, bool)) domain.Message {
	t.Helper()
	evt, err := pull(t, next)
	require.NoError(t, err)
	a, ok := evt.(event.Added)
	require.True(t, ok, "expected Added, got %#v", evt)
	return a.Message
}

func subscribe(t *testing.T, c *client.RelayClient, since domain.Cursor) func() (event.ChangeEvent, error, bool) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	seq, err := c.Subscribe(ctx, since)
	require.NoError(t, err)
	next, stop := iter.Pull2(seq)
	t.Cleanup(func() {
		cancel()
		stop()
	})
	return next
}

func TestRelayServer_Requires_Session(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	anonymous := client.NewRelayClient(h.conn)

	_, err := anonymous.SendText(context.Background(), "hi")

	req.Equal(codes.Unauthenticated, status.Code(err))
}

func TestRelayServer_Rejects_Token_Of_Unknown_Session(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	c := h.session(t, "")

	// When the session is closed server side
	req.NoError(c.CloseSession(context.Background()))

	// Then the still valid token is refused
	_, err := c.SendText(context.Background(), "hi")
	req.Equal(codes.Unauthenticated, status.Code(err))
}

func TestRelayServer_Alice_And_Bob(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	ctx := context.Background()
	alice := h.session(t, "alice")
	bob := h.session(t, "bob")

	id, err := alice.SendText(ctx, "hi")
	req.NoError(err)
	req.Equal(domain.MessageID(1), id)

	next := subscribe(t, bob, domain.Beginning)
	message := added(t, next)
	req.Equal(domain.MessageID(1), message.ID)
	req.Equal("hi", message.Text)
	req.Equal("alice", message.Author)
	req.False(message.At.IsZero())

	_, err = bob.SendText(ctx, "yo")
	req.NoError(err)
	message = added(t, next)
	req.Equal(domain.MessageID(2), message.ID)
	req.Equal("yo", message.Text)
	req.Equal("bob", message.Author)
	req.Equal(2, h.relay.Sessions())
}

func TestRelayServer_Sign_Out_Aborts_Streams(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	ctx := context.Background()
	c := h.session(t, "carol")
	_, err := c.SendText(ctx, "first")
	req.NoError(err)

	next := subscribe(t, c, domain.Beginning)
	added(t, next)

	// When the session signs out
	req.NoError(c.SignOut(ctx))

	// Then the stream carries Cancelled and ends with Aborted
	evt, err := pull(t, next)
	req.NoError(err)
	cancelled, ok := evt.(event.Cancelled)
	req.True(ok)
	req.ErrorIs(cancelled.Reason, errors.ErrSignedOut)
	_, err = pull(t, next)
	req.Equal(codes.Aborted, status.Code(err))

	// And a fresh subscription after sign in replays everything
	req.NoError(c.SignIn(ctx, "carol"))
	again := subscribe(t, c, domain.Beginning)
	req.Equal(domain.MessageID(1), added(t, again).ID)
}

func TestRelayServer_Image_Round_Trip(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	ctx := context.Background()
	c := h.session(t, "dave")
	content := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{3}, 2048)...)

	id, err := c.SendImage(ctx, content, "holiday.png")
	req.NoError(err)

	next := subscribe(t, c, domain.Beginning)
	message := added(t, next)
	req.Equal(id, message.ID)
	req.Equal("blob://chat_photos/holiday.png", message.ImageRef)

	fetched, err := c.FetchAttachment(ctx, message.ImageRef)
	req.NoError(err)
	req.Equal(content, fetched.Data)
	req.Equal("image/png", fetched.ContentType)
}

func TestRelayServer_Large_Image(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	ctx := context.Background()
	c := h.session(t, "dave")

	// Given a photo above the default gRPC message limit
	content := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{7}, 6<<20)...)

	// When it is sent
	id, err := c.SendImage(ctx, content, "panorama.png")

	// Then it is stored and can be fetched back
	req.NoError(err)
	req.Equal(domain.MessageID(1), id)
	fetched, err := c.FetchAttachment(ctx, "blob://chat_photos/panorama.png")
	req.NoError(err)
	req.Equal(len(content), len(fetched.Data))

	// And a photo one byte over the cap is refused by the size check
	tooLarge := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{7}, attachment.DefaultMaxSize+1-len(pngHeader))...)
	_, err = c.SendImage(ctx, tooLarge, "huge.png")
	req.Equal(codes.InvalidArgument, status.Code(err))
}

func TestRelayServer_Argument_Errors(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	ctx := context.Background()
	c := h.session(t, "")

	_, err := c.SendText(ctx, "   ")
	req.Equal(codes.InvalidArgument, status.Code(err))

	_, err = c.SendImage(ctx, []byte("not a photo"), "notes.txt")
	req.Equal(codes.InvalidArgument, status.Code(err))

	_, err = c.SendImage(ctx, pngHeader, "")
	req.Equal(codes.InvalidArgument, status.Code(err))

	err = c.SignIn(ctx, "")
	req.Equal(codes.InvalidArgument, status.Code(err))

	_, err = c.FetchAttachment(ctx, "blob://chat_photos/missing.png")
	req.Equal(codes.NotFound, status.Code(err))
}
