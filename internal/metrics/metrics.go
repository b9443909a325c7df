package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits counts collection reads served from the cache.
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "userstack_cache_hits_total",
		Help: "Collection reads served from the cache.",
	})

	// CacheMisses counts collection reads that fell through to the record store.
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "userstack_cache_misses_total",
		Help: "Collection reads that fell through to the record store.",
	})

	// Mutations counts completed mutations by kind (created|updated|deleted).
	Mutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "userstack_mutations_total",
		Help: "Completed record mutations by kind.",
	}, []string{"kind"})

	// PushDeliveries counts push notification attempts by outcome (ok|error).
	PushDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "userstack_push_deliveries_total",
		Help: "Push notification delivery attempts by outcome.",
	}, []string{"outcome"})

	// WSClients tracks the number of currently connected realtime observers.
	WSClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "userstack_ws_clients",
		Help: "Currently connected WebSocket observers.",
	})
)
