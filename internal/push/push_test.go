package push

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/userstack/userstack/internal/config"
)

func sub(endpoint string) webpush.Subscription {
	s := webpush.Subscription{Endpoint: endpoint}
	s.Keys.Auth = "auth"
	s.Keys.P256dh = "p256dh"
	return s
}

// fakeTransport records deliveries and fails the endpoints listed in fail.
type fakeTransport struct {
	mu       sync.Mutex
	attempts []string
	payloads []string
	fail     map[string]int // endpoint → status code to answer with
}

func (f *fakeTransport) send(_ context.Context, message []byte, s *webpush.Subscription, _ *webpush.Options) (*http.Response, error) {
	f.mu.Lock()
	f.attempts = append(f.attempts, s.Endpoint)
	f.payloads = append(f.payloads, string(message))
	status, failed := f.fail[s.Endpoint]
	f.mu.Unlock()

	if failed && status == 0 {
		return nil, fmt.Errorf("unreachable endpoint")
	}
	code := http.StatusCreated
	if failed {
		code = status
	}
	return &http.Response{
		StatusCode: code,
		Body:       io.NopCloser(strings.NewReader("")),
	}, nil
}

func newSender(t *testing.T, reg *Registry, ft *fakeTransport, prune bool) *Sender {
	t.Helper()
	t.Setenv("TEST_VAPID_PUB", "pub-key")
	t.Setenv("TEST_VAPID_PRIV", "priv-key")
	s := New(reg, config.PushConfig{
		VAPIDPublicEnv:  "TEST_VAPID_PUB",
		VAPIDPrivateEnv: "TEST_VAPID_PRIV",
		Subject:         "mailto:test@example.com",
		PruneFailed:     prune,
	})
	s.send = ft.send
	return s
}

func TestNotify_AttemptsAllSubscribers(t *testing.T) {
	reg := NewRegistry()
	for i := 0; i < 5; i++ {
		if err := reg.Add(sub(fmt.Sprintf("https://push.example/%d", i))); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	ft := &fakeTransport{}
	s := newSender(t, reg, ft, false)

	s.Notify(context.Background(), "User Added", "User has been added.")

	if len(ft.attempts) != 5 {
		t.Fatalf("attempts: got %d, want 5", len(ft.attempts))
	}
	var p payload
	if err := json.Unmarshal([]byte(ft.payloads[0]), &p); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if p.Title != "User Added" || p.Body != "User has been added." {
		t.Errorf("payload: got %+v", p)
	}
}

func TestNotify_OneFailureDoesNotStopOthers(t *testing.T) {
	reg := NewRegistry()
	reg.Add(sub("https://push.example/a")) //nolint:errcheck
	reg.Add(sub("https://push.example/b")) //nolint:errcheck
	reg.Add(sub("https://push.example/c")) //nolint:errcheck

	ft := &fakeTransport{fail: map[string]int{"https://push.example/b": 0}}
	s := newSender(t, reg, ft, false)

	s.Notify(context.Background(), "User Deleted", "User has been deleted.")

	if len(ft.attempts) != 3 {
		t.Fatalf("attempts: got %d, want all 3 despite one failure", len(ft.attempts))
	}
	// Failure without pruning keeps the subscriber registered.
	if reg.Len() != 3 {
		t.Errorf("registry: got %d subscribers, want 3", reg.Len())
	}
}

func TestNotify_PrunesGoneSubscriber(t *testing.T) {
	reg := NewRegistry()
	reg.Add(sub("https://push.example/live")) //nolint:errcheck
	reg.Add(sub("https://push.example/gone")) //nolint:errcheck

	ft := &fakeTransport{fail: map[string]int{"https://push.example/gone": http.StatusGone}}
	s := newSender(t, reg, ft, true)

	s.Notify(context.Background(), "User Updated", "User has been updated.")

	if reg.Len() != 1 {
		t.Fatalf("registry: got %d subscribers after prune, want 1", reg.Len())
	}
	if reg.Snapshot()[0].Endpoint != "https://push.example/live" {
		t.Errorf("remaining endpoint: got %q", reg.Snapshot()[0].Endpoint)
	}
}

func TestNotify_ServerErrorNeverPrunes(t *testing.T) {
	reg := NewRegistry()
	reg.Add(sub("https://push.example/flaky")) //nolint:errcheck

	ft := &fakeTransport{fail: map[string]int{"https://push.example/flaky": http.StatusInternalServerError}}
	s := newSender(t, reg, ft, true)

	s.Notify(context.Background(), "User Added", "User has been added.")

	if reg.Len() != 1 {
		t.Errorf("registry: got %d subscribers, want 1 (5xx must not prune)", reg.Len())
	}
}

func TestNotify_DisabledWithoutKeys(t *testing.T) {
	reg := NewRegistry()
	reg.Add(sub("https://push.example/a")) //nolint:errcheck

	ft := &fakeTransport{}
	s := New(reg, config.PushConfig{Subject: "mailto:test@example.com"})
	s.send = ft.send

	if s.Enabled() {
		t.Fatal("Enabled: got true without VAPID keys")
	}
	s.Notify(context.Background(), "User Added", "User has been added.")
	if len(ft.attempts) != 0 {
		t.Errorf("attempts: got %d, want 0 when disabled", len(ft.attempts))
	}
}

func TestRegistry_AddRejectsEmptyEndpoint(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Add(webpush.Subscription{}); err == nil {
		t.Fatal("Add: expected error for empty endpoint")
	}
}

func TestRegistry_SnapshotIsIsolated(t *testing.T) {
	reg := NewRegistry()
	reg.Add(sub("https://push.example/a")) //nolint:errcheck

	snap := reg.Snapshot()
	reg.Add(sub("https://push.example/b")) //nolint:errcheck

	if len(snap) != 1 {
		t.Errorf("snapshot: got %d entries, want 1 (appends after snapshot invisible)", len(snap))
	}
	if reg.Len() != 2 {
		t.Errorf("registry: got %d entries, want 2", reg.Len())
	}
}

func TestRegistry_ConcurrentAddAndSnapshot(t *testing.T) {
	reg := NewRegistry()
	done := make(chan struct{})

	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			reg.Add(sub(fmt.Sprintf("https://push.example/%d", i))) //nolint:errcheck
		}
	}()
	for i := 0; i < 500; i++ {
		reg.Snapshot()
	}
	<-done

	if reg.Len() != 500 {
		t.Errorf("registry: got %d entries, want 500", reg.Len())
	}
}
