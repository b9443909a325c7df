package push

import (
	"fmt"
	"sync"

	webpush "github.com/SherClockHolmes/webpush-go"
)

// Registry is the process-wide list of push subscriptions. Registration
// appends; fan-out iterates a snapshot, so delivery never holds a lock that
// would block a concurrent registration.
type Registry struct {
	mu   sync.RWMutex
	subs []webpush.Subscription
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Add appends sub to the registry. The endpoint must be non-empty; duplicate
// endpoints are accepted as-is (the browser owns subscription identity).
func (r *Registry) Add(sub webpush.Subscription) error {
	if sub.Endpoint == "" {
		return fmt.Errorf("push: subscription endpoint is required")
	}
	r.mu.Lock()
	r.subs = append(r.subs, sub)
	r.mu.Unlock()
	return nil
}

// Snapshot returns a copy of the current subscription list. Appends that
// happen after the snapshot is taken are not seen by the caller.
func (r *Registry) Snapshot() []webpush.Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]webpush.Subscription, len(r.subs))
	copy(out, r.subs)
	return out
}

// Len returns the number of registered subscriptions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}

// Remove drops every subscription with the given endpoint. Used only by the
// prune_failed policy when a push service reports the endpoint gone.
func (r *Registry) Remove(endpoint string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.subs[:0]
	for _, s := range r.subs {
		if s.Endpoint != endpoint {
			kept = append(kept, s)
		}
	}
	r.subs = kept
}
