package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/backoffice-api/internal/events"
	"github.com/noah-isme/backoffice-api/internal/obs"
)

// Doer sends one HTTP request. resilience.HTTPClient satisfies it.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Endpoint is a webhook receiver. An empty Topics list subscribes to everything.
type Endpoint struct {
	URL    string
	Secret string
	Topics []string
}

func (e Endpoint) wants(topic string) bool {
	return len(e.Topics) == 0 || slices.Contains(e.Topics, topic)
}

// Webhook posts signed domain events to configured endpoints. A failed
// delivery returns an error so the dispatch task is retried; endpoints that
// already accepted the event are skipped through the replay guard.
type Webhook struct {
	Endpoints []Endpoint
	HTTP      Doer
	Replay    ReplayProtector
	ReplayTTL time.Duration
	Now       func() time.Time
}

var _ events.Notifier = (*Webhook)(nil)

// Notify implements events.Notifier.
func (w *Webhook) Notify(ctx context.Context, ev events.Event) error {
	if w == nil || w.HTTP == nil {
		return nil
	}
	var joined error
	for _, ep := range w.Endpoints {
		if !ep.wants(ev.Topic) {
			continue
		}
		err := w.deliverOnce(ctx, ep, ev)
		obs.Inc(obs.WebhookDeliveriesTotal, obs.Result(err))
		if err != nil {
			joined = errors.Join(joined, fmt.Errorf("webhook %s: %w", ep.URL, err))
		}
	}
	return joined
}

func (w *Webhook) deliverOnce(ctx context.Context, ep Endpoint, ev events.Event) error {
	if w.Replay == nil || w.ReplayTTL <= 0 {
		return w.deliver(ctx, ep, ev)
	}
	key := replayKey(ep.URL, ev.ID.String())
	ok, err := w.Replay.Acquire(ctx, key, w.ReplayTTL)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if err := w.deliver(ctx, ep, ev); err != nil {
		_ = w.Replay.Release(context.WithoutCancel(ctx), key)
		return err
	}
	return nil
}

func (w *Webhook) deliver(ctx context.Context, ep Endpoint, ev events.Event) error {
	ctx, span := otel.Tracer("notify.Webhook").Start(ctx, "Webhook.deliver")
	defer span.End()
	span.SetAttributes(
		attribute.String("webhook.topic", ev.Topic),
		attribute.String("webhook.event_id", ev.ID.String()),
	)
	if err := ValidateURL(ep.URL); err != nil {
		span.RecordError(err)
		return err
	}

	body, err := json.Marshal(struct {
		EventID     string          `json:"eventId"`
		Topic       string          `json:"topic"`
		AggregateID string          `json:"aggregateId"`
		Data        json.RawMessage `json:"data"`
		OccurredAt  time.Time       `json:"occurredAt"`
	}{
		EventID:     ev.ID.String(),
		Topic:       ev.Topic,
		AggregateID: ev.AggregateID.String(),
		Data:        payloadOrEmpty(ev.Payload),
		OccurredAt:  ev.OccurredAt,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	ts := w.now().Unix()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "backoffice-webhooks/1.0")
	req.Header.Set("X-Event-ID", ev.ID.String())
	req.Header.Set("X-Event-Topic", ev.Topic)
	req.Header.Set("X-Timestamp", strconv.FormatInt(ts, 10))
	req.Header.Set("X-Signature", ComputeSignature(ep.Secret, ts, ev.ID.String(), body))

	resp, err := w.HTTP.Do(ctx, req)
	if err != nil {
		span.RecordError(err)
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (w *Webhook) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now()
}

func payloadOrEmpty(p json.RawMessage) json.RawMessage {
	if len(p) == 0 {
		return json.RawMessage(`{}`)
	}
	return p
}

// ValidateURL accepts https endpoints, and plain http only for localhost.
func ValidateURL(raw string) error {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid endpoint url: %w", err)
	}
	if parsed.Scheme != "https" && parsed.Scheme != "http" {
		return errors.New("webhook url must be http or https")
	}
	if parsed.Host == "" {
		return errors.New("webhook url must include host")
	}
	if parsed.Scheme == "http" {
		host := parsed.Hostname()
		if host != "localhost" && host != "127.0.0.1" {
			return errors.New("http webhook only allowed for localhost")
		}
	}
	return nil
}

// ComputeSignature calculates the webhook signature: HMAC-SHA256 over
// "<ts>.<eventID>.<body>" keyed with the endpoint secret, hex encoded.
func ComputeSignature(secret string, ts int64, eventID string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(strconv.FormatInt(ts, 10)))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write([]byte(eventID))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func replayKey(endpoint, eventID string) string {
	sum := sha256.Sum256([]byte(endpoint))
	return "wh:" + hex.EncodeToString(sum[:8]) + ":" + eventID
}
