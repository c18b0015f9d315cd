package e2e

import (
	"chat-relay/infrastructure/grpc/client"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/gookit/color"
	"github.com/stretchr/testify/suite"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

type BaseGrpcSuite struct {
	suite.Suite
	Config Config
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseGrpcSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.RelayAddr == "" {
		s.T().Skip("E2E_RELAY_ADDR is not set")
	}
}

// GrpcConn connects to the relay; every unary call is logged to t.
func (s *BaseGrpcSuite) GrpcConn(t *testing.T, name string) *grpc.ClientConn {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	t.Log(header)

	logf := func(line string) { t.Log(line) }
	conn, err := grpc.NewClient(s.Config.RelayAddr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(client.LoggingInterceptor(logf, s.Config.DebugJSON)),
	)
	s.Require().NoError(err, "Failed to connect to gRPC server at "+s.Config.RelayAddr)
	return conn
}

// WithSession runs fn with a client holding a freshly opened session.
func (s *BaseGrpcSuite) WithSession(name string, fn func(ctx context.Context, relay *client.RelayClient)) {
	conn := s.GrpcConn(s.T(), name)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	relay := client.NewRelayClient(conn)
	s.Require().NoError(relay.OpenSession(ctx))
	defer func() { _ = relay.CloseSession(context.Background()) }()

	fn(ctx, relay)
}
