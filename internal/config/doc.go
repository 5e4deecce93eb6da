// Package config loads, normalizes, and validates the TOML configuration for
// the daemon and CLI. Defaults live in defaults.go, environment fallbacks and
// path expansion in normalize.go, and usability checks in validate.go.
package config
