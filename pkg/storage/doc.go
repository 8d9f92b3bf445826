// Package storage defines the persisted configuration store contract: one
// current row per category with an atomically bumped version counter, plus
// write notifications consumed by the change tracker. An in-memory
// implementation lives here; SQL-backed implementations live in the postgres
// and sqlite subpackages.
package storage
