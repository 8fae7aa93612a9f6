// Package metrics exposes Prometheus collectors for generation activity.
package metrics
