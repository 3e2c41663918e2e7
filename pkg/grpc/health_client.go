package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/vogiaan1904/listenroom/pkg/logger"
)

type cleanupFunc func()

// NewHealthClient dials addr without transport security. Extra dial options
// are appended after the defaults.
func NewHealthClient(addr string, l logger.Logger, opts ...grpc.DialOption) (grpc_health_v1.HealthClient, cleanupFunc, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		l.Errorf(context.Background(), "pkg.grpc.NewHealthClient: %v", err)
		return nil, nil, err
	}

	l.Debugf(context.Background(), "gRPC health client created for %s", addr)
	return grpc_health_v1.NewHealthClient(conn), func() { conn.Close() }, nil
}
