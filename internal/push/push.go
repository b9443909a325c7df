package push

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"golang.org/x/sync/errgroup"

	"github.com/userstack/userstack/internal/config"
	"github.com/userstack/userstack/internal/metrics"
)

// maxInFlight bounds concurrent deliveries within one fan-out.
const maxInFlight = 8

// payload is the JSON body delivered to every subscriber.
type payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// sendFunc matches webpush.SendNotificationWithContext; injectable for tests.
type sendFunc func(ctx context.Context, message []byte, sub *webpush.Subscription, opts *webpush.Options) (*http.Response, error)

// Sender fans a push notification out to every registered subscriber.
// Individual delivery failures are logged and isolated; Notify never reports
// an error to the caller.
//
// Sender is safe for concurrent use.
type Sender struct {
	registry *Registry
	subject  string
	public   string
	private  string
	client   *http.Client
	send     sendFunc

	mu          sync.RWMutex
	pruneFailed bool
}

// New creates a Sender delivering to the subscriptions in reg. VAPID keys are
// resolved from the environment via cfg; if either key is empty the Sender is
// disabled and Notify becomes a no-op.
func New(reg *Registry, cfg config.PushConfig) *Sender {
	return &Sender{
		registry:    reg,
		subject:     cfg.Subject,
		public:      cfg.VAPIDPublic(),
		private:     cfg.VAPIDPrivate(),
		client:      &http.Client{Timeout: 10 * time.Second},
		send:        webpush.SendNotificationWithContext,
		pruneFailed: cfg.PruneFailed,
	}
}

// Enabled reports whether VAPID keys are configured.
func (s *Sender) Enabled() bool {
	return s.public != "" && s.private != ""
}

// SetPruneFailed updates the pruning policy; applied by config hot-reload.
func (s *Sender) SetPruneFailed(v bool) {
	s.mu.Lock()
	s.pruneFailed = v
	s.mu.Unlock()
}

// Notify builds one {title, body} payload and attempts delivery to every
// currently registered subscriber. One subscriber's failure never prevents
// attempts to the others and nothing surfaces to the caller beyond
// "attempted". Failed deliveries are not retried.
func (s *Sender) Notify(ctx context.Context, action, message string) {
	if !s.Enabled() {
		return
	}

	body, err := json.Marshal(payload{Title: action, Body: message})
	if err != nil {
		slog.Error("push: marshal payload", "err", err)
		return
	}

	subs := s.registry.Snapshot()
	if len(subs) == 0 {
		return
	}

	s.mu.RLock()
	prune := s.pruneFailed
	s.mu.RUnlock()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxInFlight)
	for i := range subs {
		sub := subs[i]
		// Always return nil — failures are isolated per subscriber, never
		// propagated, so the group must not cancel siblings.
		g.Go(func() error {
			if err := s.deliver(ctx, body, &sub); err != nil {
				metrics.PushDeliveries.WithLabelValues("error").Inc()
				slog.Error("push: delivery failed",
					"endpoint", sub.Endpoint,
					"err", err,
				)
				if prune && isGone(err) {
					s.registry.Remove(sub.Endpoint)
					slog.Info("push: pruned gone subscriber", "endpoint", sub.Endpoint)
				}
				return nil
			}
			metrics.PushDeliveries.WithLabelValues("ok").Inc()
			return nil
		})
	}
	g.Wait() //nolint:errcheck
}

// goneError marks a delivery rejected because the subscription no longer
// exists at the push service.
type goneError struct{ status int }

func (e *goneError) Error() string {
	return fmt.Sprintf("push service returned HTTP %d (subscription gone)", e.status)
}

func isGone(err error) bool {
	_, ok := err.(*goneError)
	return ok
}

func (s *Sender) deliver(ctx context.Context, body []byte, sub *webpush.Subscription) error {
	resp, err := s.send(ctx, body, sub, &webpush.Options{
		Subscriber:      s.subject,
		VAPIDPublicKey:  s.public,
		VAPIDPrivateKey: s.private,
		TTL:             60,
		HTTPClient:      s.client,
	})
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return &goneError{status: resp.StatusCode}
	case resp.StatusCode >= 400:
		return fmt.Errorf("push service returned HTTP %d", resp.StatusCode)
	}
	return nil
}
