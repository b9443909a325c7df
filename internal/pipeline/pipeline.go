package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/userstack/userstack/internal/cache"
	"github.com/userstack/userstack/internal/config"
	"github.com/userstack/userstack/internal/metrics"
	"github.com/userstack/userstack/internal/store"
	"github.com/userstack/userstack/internal/ws"
)

// UsersKey is the collection-level cache key: the serialized result of
// "list all users". Every mutation invalidates and rehydrates this one entry.
const UsersKey = "/users"

// RecordStore is the durable record store the pipeline writes to.
type RecordStore interface {
	FindAll(ctx context.Context) ([]store.User, error)
	Insert(ctx context.Context, u store.User) (store.User, error)
	UpdateFields(ctx context.Context, id string, f store.Fields) (int64, error)
	DeleteByID(ctx context.Context, id string) (int64, error)
}

// Broadcaster pushes a mutation event to currently connected observers.
type Broadcaster interface {
	Publish(event string, data any)
}

// Notifier fans a push notification out to registered subscribers.
type Notifier interface {
	Notify(ctx context.Context, action, message string)
}

// UpdatedEvent is the payload of a user-updated broadcast: the identifier
// plus only the fields the caller submitted.
type UpdatedEvent struct {
	ID      string            `json:"id"`
	Updates map[string]string `json:"updates"`
}

// Pipeline runs every mutation through the same four phases: persist to the
// record store, refresh the collection cache, broadcast the mutation event,
// and trigger the push fan-out. Only phase 1 can fail an operation; phases
// 2–4 are best-effort and their failures are logged and swallowed.
//
// Pipeline is safe for concurrent use.
type Pipeline struct {
	store    RecordStore
	cache    cache.Cache
	hub      Broadcaster
	notifier Notifier

	cacheTimeout  time.Duration
	notifyTimeout time.Duration

	mu       sync.RWMutex
	cacheTTL time.Duration
}

// New wires a Pipeline. cacheCfg provides the collection entry TTL and the
// per-operation cache deadline; notifyTimeout bounds one whole fan-out.
func New(st RecordStore, c cache.Cache, b Broadcaster, n Notifier, cacheCfg config.CacheConfig, notifyTimeout time.Duration) *Pipeline {
	return &Pipeline{
		store:         st,
		cache:         c,
		hub:           b,
		notifier:      n,
		cacheTimeout:  cacheCfg.Timeout,
		notifyTimeout: notifyTimeout,
		cacheTTL:      cacheCfg.TTL,
	}
}

// SetCacheTTL updates the collection entry TTL; applied by config hot-reload.
func (p *Pipeline) SetCacheTTL(d time.Duration) {
	p.mu.Lock()
	p.cacheTTL = d
	p.mu.Unlock()
}

func (p *Pipeline) ttl() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cacheTTL
}

// List returns the serialized user collection, read-through: a fresh cache
// entry is served directly; a miss — or any cache failure — falls through to
// the record store and repopulates the cache.
func (p *Pipeline) List(ctx context.Context) ([]byte, error) {
	cctx, cancel := context.WithTimeout(ctx, p.cacheTimeout)
	v, ok, err := p.cache.Get(cctx, UsersKey)
	cancel()
	if err != nil {
		// Fail-open: a broken cache must never block the read path.
		slog.Error("pipeline: cache get failed — falling through to store", "key", UsersKey, "err", err)
	} else if ok {
		metrics.CacheHits.Inc()
		return v, nil
	}
	metrics.CacheMisses.Inc()

	users, err := p.store.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("pipeline: list users: %w", err)
	}
	data, err := json.Marshal(users)
	if err != nil {
		return nil, fmt.Errorf("pipeline: marshal users: %w", err)
	}

	cctx, cancel = context.WithTimeout(ctx, p.cacheTimeout)
	if err := p.cache.Set(cctx, UsersKey, data, p.ttl()); err != nil {
		slog.Error("pipeline: cache set failed after read", "key", UsersKey, "err", err)
	}
	cancel()

	return data, nil
}

// Create inserts u and returns the stored record with its assigned id.
func (p *Pipeline) Create(ctx context.Context, u store.User) (store.User, error) {
	rec, err := p.store.Insert(ctx, u)
	if err != nil {
		return store.User{}, err
	}
	metrics.Mutations.WithLabelValues("created").Inc()

	p.refreshCache(ctx)
	p.hub.Publish(ws.EventUserAdded, rec)
	p.notifyAsync("User Added", "User has been added.")
	return rec, nil
}

// Update merge-patches the record with the given id, applying only the
// submitted fields. Returns the number of rows matched (0 for an unknown id).
// A malformed id fails fast with store.ErrInvalidID before any phase runs.
func (p *Pipeline) Update(ctx context.Context, id string, f store.Fields) (int64, error) {
	if !store.ValidID(id) {
		return 0, store.ErrInvalidID
	}

	n, err := p.store.UpdateFields(ctx, id, f)
	if err != nil {
		return 0, err
	}
	metrics.Mutations.WithLabelValues("updated").Inc()

	p.refreshCache(ctx)
	p.hub.Publish(ws.EventUserUpdated, UpdatedEvent{ID: id, Updates: submitted(f)})
	p.notifyAsync("User Updated", "User has been updated.")
	return n, nil
}

// Delete removes the record with the given id. Returns the number of rows
// deleted (0 for an unknown id). A malformed id fails fast with
// store.ErrInvalidID before any phase runs.
func (p *Pipeline) Delete(ctx context.Context, id string) (int64, error) {
	if !store.ValidID(id) {
		return 0, store.ErrInvalidID
	}

	n, err := p.store.DeleteByID(ctx, id)
	if err != nil {
		return 0, err
	}
	metrics.Mutations.WithLabelValues("deleted").Inc()

	p.refreshCache(ctx)
	p.hub.Publish(ws.EventUserDeleted, id)
	p.notifyAsync("User Deleted", "User has been deleted.")
	return n, nil
}

// refreshCache invalidates the collection entry, re-reads the full current
// collection, and stores it with the configured TTL. Any failure leaves the
// cache stale or empty — logged and swallowed, the mutation is already
// durable. The whole phase is bounded by the cache timeout so a stalled
// backend cannot stall the mutation.
//
// Concurrent mutations race here harmlessly: each reads the full collection
// at repopulation time, so whichever Set lands last still matches the store.
func (p *Pipeline) refreshCache(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, p.cacheTimeout)
	defer cancel()

	if err := p.cache.Invalidate(ctx, UsersKey); err != nil {
		slog.Error("pipeline: cache invalidate failed", "key", UsersKey, "err", err)
		// Fall through: a successful Set below overwrites the stale entry anyway.
	}

	users, err := p.store.FindAll(ctx)
	if err != nil {
		slog.Error("pipeline: cache refresh read failed — entry stays invalidated", "err", err)
		return
	}
	data, err := json.Marshal(users)
	if err != nil {
		slog.Error("pipeline: cache refresh marshal failed", "err", err)
		return
	}
	if err := p.cache.Set(ctx, UsersKey, data, p.ttl()); err != nil {
		slog.Error("pipeline: cache refresh set failed", "key", UsersKey, "err", err)
	}
}

// notifyAsync submits the push fan-out as a detached background task with its
// own deadline. It runs after the mutation's response is on its way and its
// outcome never affects the mutation's reported success.
func (p *Pipeline) notifyAsync(action, message string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), p.notifyTimeout)
		defer cancel()
		p.notifier.Notify(ctx, action, message)
	}()
}

// submitted returns only the fields the caller actually sent.
func submitted(f store.Fields) map[string]string {
	out := make(map[string]string, 3)
	if f.Name != nil {
		out["name"] = *f.Name
	}
	if f.Email != nil {
		out["email"] = *f.Email
	}
	if f.ImageURL != nil {
		out["imageUrl"] = *f.ImageURL
	}
	return out
}
