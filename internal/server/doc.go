// Package server implements the optional HTTP status endpoint that runs
// alongside a transfer. It reports health, the current transfer progress and
// Prometheus metrics.
package server
