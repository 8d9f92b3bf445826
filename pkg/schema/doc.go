// Package schema defines the closed set of site configuration categories,
// their field schemas with defaults and constraints, and the pure
// normalization and validation passes applied to every payload before it is
// persisted or served.
package schema
