package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"direct_chat_service/internal/chat/domain"
	"direct_chat_service/pkg/config"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"
)

const defaultModerationTimeout = 5 * time.Second

// ModerationClient content moderation collaborator
type ModerationClient interface {
	Check(ctx context.Context, text string) (*domain.ModerationVerdict, error)
}

type moderationRequest struct {
	Text string `json:"text"`
}

type httpModerationClient struct {
	url     string
	apiKey  string
	timeout time.Duration
	limiter *rate.Limiter
}

// NewHTTPModerationClient create moderation client posting {"text"} and reading {"safe","reason"}
func NewHTTPModerationClient(c config.ModerationConfig) ModerationClient {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultModerationTimeout
	}
	var limiter *rate.Limiter
	if c.RPS > 0 {
		burst := c.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(c.RPS), burst)
	}
	return &httpModerationClient{
		url:     c.URL,
		apiKey:  c.APIKey,
		timeout: timeout,
		limiter: limiter,
	}
}

func (m *httpModerationClient) Check(ctx context.Context, text string) (*domain.ModerationVerdict, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.limiter != nil {
		if err := m.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("moderation throttled: %w", err)
		}
	}

	timeout := m.timeout
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < timeout {
		timeout = time.Until(deadline)
	}
	if timeout <= 0 {
		return nil, context.DeadlineExceeded
	}

	a := fiber.Post(m.url)
	if m.apiKey != "" {
		a.Set(fiber.HeaderAuthorization, "Bearer "+m.apiKey)
	}

	var verdict domain.ModerationVerdict
	code, body, errs := a.JSON(moderationRequest{Text: text}).Timeout(timeout).Struct(&verdict)
	if code != fiber.StatusOK {
		if len(errs) > 0 {
			return nil, fmt.Errorf("moderation request: %w", errors.Join(errs...))
		}
		return nil, fmt.Errorf("moderation status %d: %s", code, body)
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("moderation response: %w", errors.Join(errs...))
	}
	return &verdict, nil
}
