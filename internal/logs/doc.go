// Package logs reads the daemon log file incrementally, tracking byte offsets
// so the CLI can page through history and follow new output as it lands.
package logs
