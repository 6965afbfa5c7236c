package database

import (
	"context"
	"net"
	"time"

	"direct_chat_service/pkg/logger"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthCheck report a dependency error, nil means serving
type HealthCheck func(ctx context.Context) error

// HealthServer grpc health service, status follows the registered checks
type HealthServer struct {
	server  *grpc.Server
	health  *health.Server
	service string
	checks  map[string]HealthCheck
}

// NewHealthServer create grpc server with health service registered
func NewHealthServer(service string, checks map[string]HealthCheck) *HealthServer {
	s := grpc.NewServer()
	h := health.NewServer()
	healthpb.RegisterHealthServer(s, h)
	h.SetServingStatus(service, healthpb.HealthCheckResponse_NOT_SERVING)
	return &HealthServer{server: s, health: h, service: service, checks: checks}
}

// Refresh run every check once and update the serving status
func (h *HealthServer) Refresh(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			logger.Log.Warn("health check failed", zap.String("dependency", name), zap.Error(err))
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	h.health.SetServingStatus(h.service, status)
	h.health.SetServingStatus("", status)
	return status
}

// Serve listen on lis and refresh status every interval until ctx is done
func (h *HealthServer) Serve(ctx context.Context, lis net.Listener, interval time.Duration) error {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			h.Refresh(ctx)
			select {
			case <-ctx.Done():
				h.health.Shutdown()
				h.server.GracefulStop()
				return
			case <-ticker.C:
			}
		}
	}()
	return h.server.Serve(lis)
}
