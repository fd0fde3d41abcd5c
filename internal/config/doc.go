// Package config loads, normalizes, and validates voxid configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), and reads TOML files. The Config type centralizes every knob
// the trainer and inference runner need: dataset location, checkpoint paths,
// batch geometry, schedule lengths, and encoder dimensions.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths and clear validation errors before any work starts.
package config
