// Package metrics holds the prometheus collectors of the chat service.
package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

const namespace = "chat"

var (
	// MessagesTotal count message writes by op (send, edit, delete_everyone, delete_me) and result
	MessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_total",
		Help:      "Message operations by op and result.",
	}, []string{"op", "result"})

	// ModerationTotal count moderation verdicts (allowed, rejected, unavailable)
	ModerationTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "moderation_total",
		Help:      "Moderation verdicts.",
	}, []string{"verdict"})

	// ModerationLatency observe moderation round trip seconds
	ModerationLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "moderation_latency_seconds",
		Help:      "Moderation round trip latency.",
		Buckets:   prometheus.DefBuckets,
	})

	// SummaryFailuresTotal count room summary steps that failed after the message write committed
	SummaryFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "summary_failures_total",
		Help:      "Room summary update failures by step.",
	}, []string{"step"})

	// NotifyFailuresTotal count change notifications or events that could not be published
	NotifyFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notify_failures_total",
		Help:      "Failed change notifications by sink.",
	}, []string{"sink"})

	// ActiveSubscriptions gauge open message feeds
	ActiveSubscriptions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_subscriptions",
		Help:      "Open message feed subscriptions.",
	})

	// WebsocketConnections gauge open websocket connections
	WebsocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "websocket_connections",
		Help:      "Open websocket connections.",
	})
)

// Handler expose the default registry on a fiber route
func Handler() fiber.Handler {
	h := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	return func(c *fiber.Ctx) error {
		h(c.Context())
		return nil
	}
}

// Result label for an operation outcome
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
