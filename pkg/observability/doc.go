// Package observability provides structured logging, Prometheus metrics and
// the dependency health checker for the configuration engine.
package observability
