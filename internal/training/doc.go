// Package training drives optimization of the sequence encoder.
//
// The Loop owns the step counter, the warmup/half-cosine learning-rate
// schedule, and the in-memory best checkpoint; it periodically hands off to
// the validation runner and to a pluggable checkpoint saver. The loop is a
// single logical control flow: parameters and optimizer state are only ever
// touched between Next and Step of one iteration, with parallelism confined
// to the dataset loader feeding it.
package training
