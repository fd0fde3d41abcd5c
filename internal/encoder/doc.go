// Package encoder defines the sequence-encoder capability that maps padded
// batches of mel-spectrogram frames to per-speaker logits, and provides the
// default pure-Go implementation.
//
// The capability is split in two: Encoder is the forward-only surface the
// inference runner needs, Trainable adds backpropagation, the AdamW update,
// and parameter snapshot/restore for the training loop. Test code substitutes
// deterministic stubs; nothing outside this package depends on the concrete
// network.
//
// The production Network is an attention/convolution hybrid: an input
// projection followed by blocks of pre-norm self-attention, depthwise
// temporal convolution, and position-wise feed-forward sub-layers with
// residual connections, then mean pooling over time and a linear classifier.
// Mean pooling runs over the padded length on purpose; pad frames carry a
// large negative log-energy constant and their pull on the pooled statistics
// is an accepted approximation.
//
// All linear algebra is gonum; gradients are computed by hand layer by
// layer. A Network is not safe for concurrent use: the training loop is the
// single writer of parameters and optimizer state.
package encoder
