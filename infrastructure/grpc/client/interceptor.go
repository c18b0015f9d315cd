package client

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// LoggingInterceptor reports every unary call through logf. With dumpJSON
// the request and the response or error follow as indented JSON.
func LoggingInterceptor(logf func(string), dumpJSON bool) grpc.UnaryClientInterceptor {
	marshaler := protojson.MarshalOptions{
		UseProtoNames:   true,
		Multiline:       true,
		EmitUnpopulated: true,
	}
	format := func(v any) string {
		if m, ok := v.(proto.Message); ok {
			return marshaler.Format(m)
		}
		return fmt.Sprint(v)
	}

	return func(ctx context.Context, method string, req, reply any,
		cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		start := time.Now()
		err := invoker(ctx, method, req, reply, cc, opts...)

		var b strings.Builder
		fmt.Fprintf(&b, "GRPC %s [%s] in %v", method, status.Code(err), time.Since(start))
		if dumpJSON {
			fmt.Fprintf(&b, "\nREQUEST:\n%s", format(req))
			if err != nil {
				fmt.Fprintf(&b, "\nERROR: %v", err)
			} else {
				fmt.Fprintf(&b, "\nRESPONSE:\n%s", format(reply))
			}
		}
		logf(b.String())
		return err
	}
}
