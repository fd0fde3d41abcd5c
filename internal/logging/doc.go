// Package logging assembles structured slog loggers and formatting helpers
// used across the pipeline.
//
// It owns the configurable console/JSON handlers, centralizes level and
// output plumbing, and exposes attr helpers plus standardized field names so
// training and inference code tag log lines with run IDs and step numbers
// the same way everywhere. The package also provides a no-op logger for
// tests and wiring code that cannot fail.
//
// Prefer these constructors over hand-rolled slog setup so every component
// emits data with the same shape.
package logging
