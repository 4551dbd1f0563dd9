// Package webhook pushes playback session events to host-registered HTTP
// endpoints, so embedders learn about surfaced errors without polling the
// daemon.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/playscope/playkit/internal/telemetry"
)

// Endpoint is one host-registered event receiver
type Endpoint struct {
	URL    string   `mapstructure:"url"`
	Secret string   `mapstructure:"secret"`
	Events []string `mapstructure:"events"`
}

// wants reports whether the endpoint subscribed to an event type; an empty
// subscription list means every type
func (e Endpoint) wants(eventType string) bool {
	if len(e.Events) == 0 {
		return true
	}
	for _, t := range e.Events {
		if t == eventType {
			return true
		}
	}
	return false
}

// Notifier delivers session events to registered endpoints. It implements
// the event publisher contract so it can sit in a fanout next to the other
// sinks.
type Notifier struct {
	client    *http.Client
	endpoints []Endpoint
	log       zerolog.Logger
}

// NewNotifier creates a notifier for a fixed endpoint list
func NewNotifier(endpoints []Endpoint, log zerolog.Logger) *Notifier {
	return &Notifier{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		endpoints: endpoints,
		log:       log.With().Str("component", "webhook").Logger(),
	}
}

// Publish delivers the event to every subscribed endpoint. Delivery failures
// are logged per endpoint; one unreachable receiver must not fail the rest.
func (n *Notifier) Publish(ctx context.Context, event telemetry.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	for _, ep := range n.endpoints {
		if !ep.wants(event.Type) {
			continue
		}
		if err := n.deliver(ctx, ep, event.Type, payload); err != nil {
			n.log.Warn().
				Err(err).
				Str("url", ep.URL).
				Str("type", event.Type).
				Msg("Webhook delivery failed")
		}
	}

	return nil
}

// Close implements the publisher contract
func (n *Notifier) Close() error {
	n.client.CloseIdleConnections()
	return nil
}

func (n *Notifier) deliver(ctx context.Context, ep Endpoint, eventType string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Playkit-Webhook/1.0")
	req.Header.Set("X-Playkit-Event", eventType)
	req.Header.Set("X-Playkit-Delivery", uuid.New().String())

	if ep.Secret != "" {
		req.Header.Set("X-Playkit-Signature", signPayload(payload, ep.Secret))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("receiver returned status %d", resp.StatusCode)
	}
	return nil
}

// signPayload generates the HMAC-SHA256 signature receivers verify
func signPayload(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return "sha256=" + hex.EncodeToString(h.Sum(nil))
}
