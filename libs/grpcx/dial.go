package grpcx

import (
	"context"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Dial opens a traced, request-id propagating client connection. It
// blocks until the connection is up or the timeout elapses. Transport
// is plaintext; services talk over the cluster network and TLS, when
// wanted, belongs to the mesh layer. Pass extra options to override.
func Dial(ctx context.Context, addr string, timeout time.Duration, extra ...grpc.DialOption) (*grpc.ClientConn, error) {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
		grpc.WithChainUnaryInterceptor(UnaryClientRequestIDInterceptor()),
		grpc.WithBlock(),
	}
	opts = append(opts, extra...)

	return grpc.DialContext(ctx, addr, opts...)
}
