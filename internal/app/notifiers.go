package app

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/backoffice-api/internal/config"
	"github.com/noah-isme/backoffice-api/internal/events"
	"github.com/noah-isme/backoffice-api/internal/notify"
	"github.com/noah-isme/backoffice-api/internal/resilience"
)

// WorkerNotifiers lists what the worker runs for each dispatched event:
// dashboard invalidation, then outbound webhooks when endpoints are configured.
func WorkerNotifiers(cfg *config.Config, infra *Infra, svc *Services) ([]events.Notifier, error) {
	out := []events.Notifier{svc.Dashboard.Invalidator()}
	endpoints, err := notify.ParseEndpoints(cfg.WebhookEndpoints)
	if err != nil {
		return nil, err
	}
	if len(endpoints) == 0 {
		return out, nil
	}
	out = append(out, &notify.Webhook{
		Endpoints: endpoints,
		HTTP: resilience.HTTPClient{
			Client:      &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
			Breaker:     resilience.NewBreaker("webhook-delivery", cfg.CircuitVendorMinRequests, cfg.CircuitVendorFailureRate, cfg.CircuitVendorOpenFor),
			MaxAttempts: cfg.WebhookMaxAttempts,
			Jitter:      0.2,
			Timeout:     cfg.WebhookTimeout,
		},
		Replay:    notify.RedisReplayProtector{Client: infra.Redis, Prefix: "bo:"},
		ReplayTTL: cfg.WebhookReplayTTL,
	})
	return out, nil
}
