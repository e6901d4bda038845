// Package metrics exports runtime counters to Prometheus.
package metrics
