package encoder

import (
	"gonum.org/v1/gonum/mat"

	"voxid/internal/config"
	"voxid/internal/dataset"
)

// Config enumerates the encoder's construction-time dimensions.
type Config struct {
	InputDim           int     `msgpack:"input_dim"`
	DModel             int     `msgpack:"d_model"`
	Heads              int     `msgpack:"n_heads"`
	FFExpansion        int     `msgpack:"ff_expansion"`
	ConvKernel         int     `msgpack:"conv_kernel"`
	Blocks             int     `msgpack:"blocks"`
	Classes            int     `msgpack:"classes"`
	DropoutAttention   float64 `msgpack:"dropout_attention"`
	DropoutFeedForward float64 `msgpack:"dropout_feedforward"`
	DropoutConvolution float64 `msgpack:"dropout_convolution"`
}

// FromModelConfig builds an encoder config from the application model
// section and the corpus speaker count.
func FromModelConfig(m config.Model, classes int) Config {
	return Config{
		InputDim:           dataset.FeatureDim,
		DModel:             m.DModel,
		Heads:              m.Heads,
		FFExpansion:        m.FFExpansion,
		ConvKernel:         m.ConvKernel,
		Blocks:             m.Blocks,
		Classes:            classes,
		DropoutAttention:   m.DropoutAttention,
		DropoutFeedForward: m.DropoutFeedForward,
		DropoutConvolution: m.DropoutConvolution,
	}
}

// Encoder maps a padded batch of feature sequences to per-class logits,
// one row per batch item.
type Encoder interface {
	Forward(batch *dataset.Batch) (*mat.Dense, error)
}

// Trainable extends Encoder with everything the training loop needs.
type Trainable interface {
	Encoder

	// Backward propagates loss gradients w.r.t. the logits of the most
	// recent Forward call, accumulating parameter gradients.
	Backward(dLogits *mat.Dense) error
	// Step applies one AdamW update at the given learning rate.
	Step(lr float64)
	// ZeroGrad clears accumulated gradients.
	ZeroGrad()
	// SetTraining toggles dropout. Validation must restore the previous
	// value before the loop resumes.
	SetTraining(training bool)
	Training() bool
	// State snapshots all parameters; LoadState restores them.
	State() *State
	LoadState(state *State) error
}

// Tensor is a serializable parameter matrix.
type Tensor struct {
	Rows int       `msgpack:"rows"`
	Cols int       `msgpack:"cols"`
	Data []float64 `msgpack:"data"`
}

// State is an opaque snapshot of encoder parameters keyed by name.
type State struct {
	Config Config            `msgpack:"config"`
	Params map[string]Tensor `msgpack:"params"`
}
