// Package services defines the shared error taxonomy for the pipeline.
//
// All failures surfaced by the dataset, training, and inference components
// carry one of the exported sentinel markers so callers can classify them
// with errors.Is without inspecting message text. Wrap is the single helper
// for attaching component and operation context while preserving the marker.
//
// The taxonomy is deliberately small: configuration problems are caught
// before any work starts, missing feature files and malformed batches abort
// a run, and encoder failures are never retried.
package services
