// Package metrics defines the Prometheus collectors exposed on /metrics.
package metrics
