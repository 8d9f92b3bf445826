// Package config loads application configuration from environment
// variables, with validated defaults suitable for local development.
package config
