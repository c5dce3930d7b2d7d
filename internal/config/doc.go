// Package config loads, normalizes, and validates printlapse configuration.
//
// It supplies repository defaults, expands tilde paths, reads TOML files,
// and centralizes every knob the daemon and CLI need. Always obtain settings
// through this package so downstream code receives sanitized paths and
// values clamped to usable ranges.
package config
