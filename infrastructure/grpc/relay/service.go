// Package relay declares the relay.v1.RelayService gRPC contract.
// Payloads are protobuf well-known types so no generated code is needed.
package relay

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	ServiceName = "relay.v1.RelayService"

	OpenSessionMethod     = "/" + ServiceName + "/OpenSession"
	CloseSessionMethod    = "/" + ServiceName + "/CloseSession"
	SignInMethod          = "/" + ServiceName + "/SignIn"
	SignOutMethod         = "/" + ServiceName + "/SignOut"
	SendTextMethod        = "/" + ServiceName + "/SendText"
	SendImageMethod       = "/" + ServiceName + "/SendImage"
	FetchAttachmentMethod = "/" + ServiceName + "/FetchAttachment"
	SubscribeMethod       = "/" + ServiceName + "/Subscribe"

	AuthorizationKey = "authorization"

	// AttachmentNameKey carries the file name of a SendImage call.
	AttachmentNameKey = "x-attachment-name"

	// ContentTypeKey is the header holding the type of a fetched attachment.
	ContentTypeKey = "x-content-type"
)

// envelopeSize covers the wrapper and metadata around an attachment payload.
const envelopeSize = 1 << 10

// MaxMessageSize is the largest request the server must accept so that an
// attachment of maxAttachmentSize bytes reaches the size check.
func MaxMessageSize(maxAttachmentSize int64) int {
	return int(maxAttachmentSize) + envelopeSize
}

// PublicMethods can be called without a session token.
var PublicMethods = []string{OpenSessionMethod}

type RelayServiceServer interface {
	OpenSession(context.Context, *emptypb.Empty) (*wrapperspb.StringValue, error)
	CloseSession(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
	SignIn(context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error)
	SignOut(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
	SendText(context.Context, *wrapperspb.StringValue) (*wrapperspb.UInt64Value, error)
	SendImage(context.Context, *wrapperspb.BytesValue) (*wrapperspb.UInt64Value, error)
	FetchAttachment(context.Context, *wrapperspb.StringValue) (*wrapperspb.BytesValue, error)
	Subscribe(*wrapperspb.UInt64Value, grpc.ServerStreamingServer[structpb.Struct]) error
}

func RegisterRelayServiceServer(s grpc.ServiceRegistrar, srv RelayServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RelayServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "OpenSession", Handler: unary(OpenSessionMethod, RelayServiceServer.OpenSession)},
		{MethodName: "CloseSession", Handler: unary(CloseSessionMethod, RelayServiceServer.CloseSession)},
		{MethodName: "SignIn", Handler: unary(SignInMethod, RelayServiceServer.SignIn)},
		{MethodName: "SignOut", Handler: unary(SignOutMethod, RelayServiceServer.SignOut)},
		{MethodName: "SendText", Handler: unary(SendTextMethod, RelayServiceServer.SendText)},
		{MethodName: "SendImage", Handler: unary(SendImageMethod, RelayServiceServer.SendImage)},
		{MethodName: "FetchAttachment", Handler: unary(FetchAttachmentMethod, RelayServiceServer.FetchAttachment)},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Subscribe", Handler: subscribeHandler, ServerStreams: true},
	},
	Metadata: "relay/v1/relay.proto",
}

// SubscribeStreamDesc is used by clients to open the Subscribe stream.
var SubscribeStreamDesc = &ServiceDesc.Streams[0]

// unary builds the handler the protoc plugin would generate for one method.
func unary[Req any, Res any](fullMethod string,
	call func(RelayServiceServer, context.Context, *Req) (*Res, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error,
		interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(RelayServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(RelayServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func subscribeHandler(srv any, stream grpc.ServerStream) error {
	in := new(wrapperspb.UInt64Value)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(RelayServiceServer).Subscribe(in,
		&grpc.GenericServerStream[wrapperspb.UInt64Value, structpb.Struct]{ServerStream: stream})
}
