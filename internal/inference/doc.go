// Package inference runs a trained encoder over the held-back utterance set
// and writes the predictions as a CSV results table. Unlike training,
// features are used at full length with no segment sampling or padding, one
// utterance per forward pass, so row order matches dataset order exactly.
package inference
