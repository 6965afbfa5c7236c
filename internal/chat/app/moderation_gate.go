package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"direct_chat_service/internal/chat/domain"
	"direct_chat_service/internal/chat/repository"
	"direct_chat_service/pkg/logger"
	"direct_chat_service/pkg/metrics"

	"go.uber.org/zap"
)

// Decision result of a moderation check
type Decision struct {
	Allowed bool
	Reason  string
}

// ModerationGate runs outbound text through moderation before it may touch the store.
// It fails closed.
type ModerationGate struct {
	client repository.ModerationClient
}

// NewModerationGate create ModerationGate
func NewModerationGate(client repository.ModerationClient) *ModerationGate {
	return &ModerationGate{client: client}
}

// Check blank text is allowed without asking the service
func (g *ModerationGate) Check(ctx context.Context, text string) (Decision, error) {
	if strings.TrimSpace(text) == "" {
		return Decision{Allowed: true}, nil
	}

	start := time.Now()
	verdict, err := g.client.Check(ctx, text)
	metrics.ModerationLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ModerationTotal.WithLabelValues("unavailable").Inc()
		logger.Log.Warn("moderation failed", zap.Error(err))
		return Decision{}, fmt.Errorf("%w: %v", domain.ErrModerationUnavailable, err)
	}

	if !verdict.Safe {
		metrics.ModerationTotal.WithLabelValues("rejected").Inc()
		return Decision{Allowed: false, Reason: verdict.Reason}, nil
	}
	metrics.ModerationTotal.WithLabelValues("allowed").Inc()
	return Decision{Allowed: true}, nil
}

// Require Check, turning a rejection into *domain.ModerationRejectedError
func (g *ModerationGate) Require(ctx context.Context, text string) error {
	decision, err := g.Check(ctx, text)
	if err != nil {
		return err
	}
	if !decision.Allowed {
		return &domain.ModerationRejectedError{Reason: decision.Reason}
	}
	return nil
}
