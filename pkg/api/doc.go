// Package api exposes the configuration resolver over HTTP: per-category
// config reads and writes, audit history, cache administration, health
// and metrics.
package api
