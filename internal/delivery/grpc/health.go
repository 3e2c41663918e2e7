package grpc

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/vogiaan1904/listenroom/internal/service"
	"github.com/vogiaan1904/listenroom/pkg/logger"
)

// ServiceName is the name probes ask for. The empty name reports the same status.
const ServiceName = "listenroom.RoomService"

// HealthReporter serves grpc.health.v1 and reports SERVING only while the
// reconciliation sweeper is running.
type HealthReporter struct {
	hs      *health.Server
	sweeper service.Sweeper
	l       logger.Logger
}

func NewHealthReporter(sweeper service.Sweeper, l logger.Logger) *HealthReporter {
	r := &HealthReporter{
		hs:      health.NewServer(),
		sweeper: sweeper,
		l:       l,
	}
	r.set(grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	return r
}

func (r *HealthReporter) Register(s *grpc.Server) {
	grpc_health_v1.RegisterHealthServer(s, r.hs)
}

// Refresh recomputes the status from the sweeper.
func (r *HealthReporter) Refresh() grpc_health_v1.HealthCheckResponse_ServingStatus {
	status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if r.sweeper.GetStatus().IsRunning {
		status = grpc_health_v1.HealthCheckResponse_SERVING
	}
	r.set(status)
	return status
}

// Run refreshes every interval until ctx is done, then marks the service as
// shutting down so watchers see it go away.
func (r *HealthReporter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.Refresh()
	for {
		select {
		case <-ctx.Done():
			r.hs.Shutdown()
			r.l.Infof(ctx, "Health reporter stopped")
			return
		case <-ticker.C:
			r.Refresh()
		}
	}
}

func (r *HealthReporter) set(status grpc_health_v1.HealthCheckResponse_ServingStatus) {
	r.hs.SetServingStatus("", status)
	r.hs.SetServingStatus(ServiceName, status)
}
