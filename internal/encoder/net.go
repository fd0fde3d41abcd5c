package encoder

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"voxid/internal/dataset"
	"voxid/internal/services"
)

const (
	adamBeta1       = 0.9
	adamBeta2       = 0.98
	adamEps         = 1e-9
	adamWeightDecay = 1e-2
)

// block is one encoder layer: pre-norm self-attention, depthwise temporal
// convolution, and a position-wise feed-forward sub-layer, each wrapped in a
// residual connection.
type block struct {
	ln1  *layerNorm
	attn *attention
	dr1  *dropout

	ln2      *layerNorm
	conv     *depthwiseConv
	convAct  *relu
	convProj *linear
	dr2      *dropout

	ln3    *layerNorm
	ff1    *linear
	ffAct  *relu
	ffDrop *dropout
	ff2    *linear
	dr3    *dropout
}

func newBlock(r *registry, name string, cfg Config) *block {
	d := cfg.DModel
	return &block{
		ln1:  r.layerNorm(name+".ln1", d),
		attn: r.attention(name+".attn", d, cfg.Heads, cfg.DropoutAttention),
		dr1:  &dropout{rate: cfg.DropoutAttention},

		ln2:      r.layerNorm(name+".ln2", d),
		conv:     r.depthwiseConv(name+".conv", d, cfg.ConvKernel),
		convAct:  &relu{},
		convProj: r.linear(name+".conv_proj", d, d),
		dr2:      &dropout{rate: cfg.DropoutConvolution},

		ln3:    r.layerNorm(name+".ln3", d),
		ff1:    r.linear(name+".ff1", d, d*cfg.FFExpansion),
		ffAct:  &relu{},
		ffDrop: &dropout{rate: cfg.DropoutFeedForward},
		ff2:    r.linear(name+".ff2", d*cfg.FFExpansion, d),
		dr3:    &dropout{rate: cfg.DropoutFeedForward},
	}
}

func (b *block) reset(n int) {
	b.ln1.reset(n)
	b.attn.reset(n)
	b.dr1.reset(n)
	b.ln2.reset(n)
	b.conv.reset(n)
	b.convAct.reset(n)
	b.convProj.reset(n)
	b.dr2.reset(n)
	b.ln3.reset(n)
	b.ff1.reset(n)
	b.ffAct.reset(n)
	b.ffDrop.reset(n)
	b.ff2.reset(n)
	b.dr3.reset(n)
}

func (b *block) forward(i int, x *mat.Dense, training bool, rng *rand.Rand) *mat.Dense {
	branch := b.dr1.forward(i, b.attn.forward(i, b.ln1.forward(i, x), training, rng), training, rng)
	x = addMat(x, branch)

	branch = b.dr2.forward(i, b.convProj.forward(i, b.convAct.forward(i, b.conv.forward(i, b.ln2.forward(i, x)))), training, rng)
	x = addMat(x, branch)

	h := b.ffDrop.forward(i, b.ffAct.forward(i, b.ff1.forward(i, b.ln3.forward(i, x))), training, rng)
	branch = b.dr3.forward(i, b.ff2.forward(i, h), training, rng)
	return addMat(x, branch)
}

func (b *block) backward(i int, dy *mat.Dense) *mat.Dense {
	// Feed-forward residual.
	dBranch := b.ff2.backward(i, b.dr3.backward(i, dy))
	dBranch = b.ln3.backward(i, b.ff1.backward(i, b.ffAct.backward(i, b.ffDrop.backward(i, dBranch))))
	dy = addMat(dy, dBranch)

	// Convolution residual.
	dBranch = b.convProj.backward(i, b.dr2.backward(i, dy))
	dBranch = b.ln2.backward(i, b.conv.backward(i, b.convAct.backward(i, dBranch)))
	dy = addMat(dy, dBranch)

	// Attention residual.
	dBranch = b.ln1.backward(i, b.attn.backward(i, b.dr1.backward(i, dy)))
	return addMat(dy, dBranch)
}

func addMat(a, b *mat.Dense) *mat.Dense {
	rows, cols := a.Dims()
	out := mat.NewDense(rows, cols, nil)
	out.Add(a, b)
	return out
}

// Network is the production sequence encoder.
type Network struct {
	cfg Config
	rng *rand.Rand

	inProj     *linear
	blocks     []*block
	finalNorm  *layerNorm
	pool       *meanPool
	classifier *linear

	params    []*param
	training  bool
	adamSteps int
	lastBatch int
}

var _ Trainable = (*Network)(nil)

// New builds a randomly initialized network from the configuration. The
// seed makes initialization and dropout reproducible.
func New(cfg Config, seed int64) (*Network, error) {
	if err := checkConfig(cfg); err != nil {
		return nil, err
	}

	r := &registry{rng: rand.New(rand.NewSource(seed))}
	net := &Network{
		cfg:    cfg,
		rng:    r.rng,
		inProj: r.linear("in_proj", cfg.InputDim, cfg.DModel),
		pool:   &meanPool{},
	}
	for i := 0; i < cfg.Blocks; i++ {
		net.blocks = append(net.blocks, newBlock(r, fmt.Sprintf("block%d", i), cfg))
	}
	net.finalNorm = r.layerNorm("final_norm", cfg.DModel)
	net.classifier = r.linear("classifier", cfg.DModel, cfg.Classes)
	net.params = r.params
	return net, nil
}

func checkConfig(cfg Config) error {
	switch {
	case cfg.InputDim <= 0 || cfg.DModel <= 0 || cfg.Classes <= 0 || cfg.Blocks <= 0:
		return services.Wrap(services.ErrConfiguration, "encoder", "new",
			fmt.Sprintf("non-positive dimension in %+v", cfg), nil)
	case cfg.Heads <= 0 || cfg.DModel%cfg.Heads != 0:
		return services.Wrap(services.ErrConfiguration, "encoder", "new",
			fmt.Sprintf("model width %d not divisible by %d heads", cfg.DModel, cfg.Heads), nil)
	case cfg.ConvKernel <= 0 || cfg.ConvKernel%2 == 0:
		return services.Wrap(services.ErrConfiguration, "encoder", "new",
			fmt.Sprintf("convolution kernel %d must be odd and positive", cfg.ConvKernel), nil)
	case cfg.FFExpansion <= 0:
		return services.Wrap(services.ErrConfiguration, "encoder", "new", "feed-forward expansion must be positive", nil)
	}
	return nil
}

// Config returns the construction-time configuration.
func (n *Network) Config() Config { return n.cfg }

// SetTraining toggles dropout.
func (n *Network) SetTraining(training bool) { n.training = training }

// Training reports the current mode flag.
func (n *Network) Training() bool { return n.training }

// Forward runs the batch through the encoder and returns one row of logits
// per item.
func (n *Network) Forward(batch *dataset.Batch) (*mat.Dense, error) {
	if batch == nil || batch.Size() == 0 {
		return nil, services.Wrap(services.ErrInvalidBatch, "encoder", "forward", "empty batch", nil)
	}

	size := batch.Size()
	n.resetCaches(size)
	n.lastBatch = 0
	logits := mat.NewDense(size, n.cfg.Classes, nil)

	for i, feat := range batch.Feats {
		rows, cols := feat.Dims()
		if rows == 0 || cols != n.cfg.InputDim {
			return nil, services.Wrap(services.ErrCompute, "encoder", "forward",
				fmt.Sprintf("item %d has shape (%d, %d), want (frames, %d)", i, rows, cols, n.cfg.InputDim), nil)
		}
		x := n.inProj.forward(i, feat)
		for _, blk := range n.blocks {
			x = blk.forward(i, x, n.training, n.rng)
		}
		x = n.finalNorm.forward(i, x)
		pooled := n.pool.forward(i, x)
		out := n.classifier.forward(i, pooled)
		logits.SetRow(i, out.RawRowView(0))
	}

	n.lastBatch = size
	return logits, nil
}

// Backward accumulates parameter gradients from logits gradients of the most
// recent Forward call.
func (n *Network) Backward(dLogits *mat.Dense) error {
	if n.lastBatch == 0 {
		return services.Wrap(services.ErrCompute, "encoder", "backward", "no forward pass cached", nil)
	}
	rows, cols := dLogits.Dims()
	if rows != n.lastBatch || cols != n.cfg.Classes {
		return services.Wrap(services.ErrCompute, "encoder", "backward",
			fmt.Sprintf("gradient shape (%d, %d) does not match logits (%d, %d)", rows, cols, n.lastBatch, n.cfg.Classes), nil)
	}

	for i := 0; i < n.lastBatch; i++ {
		row := mat.NewDense(1, cols, nil)
		for j := 0; j < cols; j++ {
			row.Set(0, j, dLogits.At(i, j))
		}
		dx := n.classifier.backward(i, row)
		dx = n.pool.backward(i, dx)
		dx = n.finalNorm.backward(i, dx)
		for b := len(n.blocks) - 1; b >= 0; b-- {
			dx = n.blocks[b].backward(i, dx)
		}
		n.inProj.backward(i, dx)
	}
	return nil
}

// ZeroGrad clears accumulated gradients.
func (n *Network) ZeroGrad() {
	for _, p := range n.params {
		p.zeroGrad()
	}
}

// Step applies one AdamW update at the given learning rate and advances the
// bias-correction counter.
func (n *Network) Step(lr float64) {
	n.adamSteps++
	correct1 := 1 - math.Pow(adamBeta1, float64(n.adamSteps))
	correct2 := 1 - math.Pow(adamBeta2, float64(n.adamSteps))

	for _, p := range n.params {
		rows, cols := p.val.Dims()
		for r := 0; r < rows; r++ {
			for c := 0; c < cols; c++ {
				g := p.grad.At(r, c)
				m := adamBeta1*p.m.At(r, c) + (1-adamBeta1)*g
				v := adamBeta2*p.v.At(r, c) + (1-adamBeta2)*g*g
				p.m.Set(r, c, m)
				p.v.Set(r, c, v)

				update := (m / correct1) / (math.Sqrt(v/correct2) + adamEps)
				w := p.val.At(r, c)
				p.val.Set(r, c, w-lr*(update+adamWeightDecay*w))
			}
		}
	}
}

// State snapshots every parameter into a serializable value.
func (n *Network) State() *State {
	params := make(map[string]Tensor, len(n.params))
	for _, p := range n.params {
		rows, cols := p.val.Dims()
		data := make([]float64, rows*cols)
		copy(data, p.val.RawMatrix().Data)
		params[p.name] = Tensor{Rows: rows, Cols: cols, Data: data}
	}
	return &State{Config: n.cfg, Params: params}
}

// LoadState restores parameters from a snapshot. Optimizer moments are
// reset; a warm start begins a fresh schedule.
func (n *Network) LoadState(state *State) error {
	if state == nil {
		return services.Wrap(services.ErrCompute, "encoder", "load state", "nil state", nil)
	}
	for _, p := range n.params {
		tensor, ok := state.Params[p.name]
		if !ok {
			return services.Wrap(services.ErrCompute, "encoder", "load state",
				fmt.Sprintf("missing parameter %q", p.name), nil)
		}
		rows, cols := p.val.Dims()
		if tensor.Rows != rows || tensor.Cols != cols || len(tensor.Data) != rows*cols {
			return services.Wrap(services.ErrCompute, "encoder", "load state",
				fmt.Sprintf("parameter %q has shape (%d, %d), want (%d, %d)", p.name, tensor.Rows, tensor.Cols, rows, cols), nil)
		}
	}
	for _, p := range n.params {
		tensor := state.Params[p.name]
		copy(p.val.RawMatrix().Data, tensor.Data)
		p.m.Zero()
		p.v.Zero()
	}
	n.adamSteps = 0
	return nil
}

func (n *Network) resetCaches(size int) {
	n.inProj.reset(size)
	for _, blk := range n.blocks {
		blk.reset(size)
	}
	n.finalNorm.reset(size)
	n.pool.reset(size)
	n.classifier.reset(size)
}
