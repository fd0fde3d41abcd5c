package encoder

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

const layerNormEps = 1e-5

// param is one trainable matrix with its gradient and AdamW moments.
type param struct {
	name string
	val  *mat.Dense
	grad *mat.Dense
	m    *mat.Dense
	v    *mat.Dense
}

func (p *param) zeroGrad() {
	p.grad.Zero()
}

// registry allocates parameters and records them for the optimizer.
type registry struct {
	rng    *rand.Rand
	params []*param
}

func (r *registry) newParam(name string, rows, cols int, std float64) *param {
	data := make([]float64, rows*cols)
	if std > 0 {
		for i := range data {
			data[i] = r.rng.NormFloat64() * std
		}
	}
	p := &param{
		name: name,
		val:  mat.NewDense(rows, cols, data),
		grad: mat.NewDense(rows, cols, nil),
		m:    mat.NewDense(rows, cols, nil),
		v:    mat.NewDense(rows, cols, nil),
	}
	r.params = append(r.params, p)
	return p
}

func (r *registry) ones(name string, cols int) *param {
	p := r.newParam(name, 1, cols, 0)
	for j := 0; j < cols; j++ {
		p.val.Set(0, j, 1)
	}
	return p
}

// linear is y = x·Wᵀ + b applied row-wise to a T×in matrix.
type linear struct {
	w *param // out×in
	b *param // 1×out
	x []*mat.Dense
}

func (r *registry) linear(name string, in, out int) *linear {
	std := math.Sqrt(2.0 / float64(in+out))
	return &linear{
		w: r.newParam(name+".weight", out, in, std),
		b: r.newParam(name+".bias", 1, out, 0),
	}
}

func (l *linear) reset(n int) { l.x = make([]*mat.Dense, n) }

func (l *linear) forward(i int, x *mat.Dense) *mat.Dense {
	rows, _ := x.Dims()
	out, _ := l.w.val.Dims()
	y := mat.NewDense(rows, out, nil)
	y.Mul(x, l.w.val.T())
	for t := 0; t < rows; t++ {
		for j := 0; j < out; j++ {
			y.Set(t, j, y.At(t, j)+l.b.val.At(0, j))
		}
	}
	l.x[i] = x
	return y
}

func (l *linear) backward(i int, dy *mat.Dense) *mat.Dense {
	x := l.x[i]
	rows, in := x.Dims()
	_, out := dy.Dims()

	var dw mat.Dense
	dw.Mul(dy.T(), x)
	l.w.grad.Add(l.w.grad, &dw)

	for j := 0; j < out; j++ {
		sum := l.b.grad.At(0, j)
		for t := 0; t < rows; t++ {
			sum += dy.At(t, j)
		}
		l.b.grad.Set(0, j, sum)
	}

	dx := mat.NewDense(rows, in, nil)
	dx.Mul(dy, l.w.val)
	return dx
}

// layerNorm normalizes each row to zero mean and unit variance, then applies
// a learned gain and bias.
type layerNorm struct {
	gain *param // 1×d
	bias *param // 1×d

	xhat   []*mat.Dense
	invStd [][]float64
}

func (r *registry) layerNorm(name string, d int) *layerNorm {
	return &layerNorm{
		gain: r.ones(name+".gain", d),
		bias: r.newParam(name+".bias", 1, d, 0),
	}
}

func (n *layerNorm) reset(count int) {
	n.xhat = make([]*mat.Dense, count)
	n.invStd = make([][]float64, count)
}

func (n *layerNorm) forward(i int, x *mat.Dense) *mat.Dense {
	rows, d := x.Dims()
	y := mat.NewDense(rows, d, nil)
	xhat := mat.NewDense(rows, d, nil)
	inv := make([]float64, rows)

	for t := 0; t < rows; t++ {
		mean := 0.0
		for j := 0; j < d; j++ {
			mean += x.At(t, j)
		}
		mean /= float64(d)

		variance := 0.0
		for j := 0; j < d; j++ {
			diff := x.At(t, j) - mean
			variance += diff * diff
		}
		variance /= float64(d)
		inv[t] = 1 / math.Sqrt(variance+layerNormEps)

		for j := 0; j < d; j++ {
			h := (x.At(t, j) - mean) * inv[t]
			xhat.Set(t, j, h)
			y.Set(t, j, h*n.gain.val.At(0, j)+n.bias.val.At(0, j))
		}
	}

	n.xhat[i] = xhat
	n.invStd[i] = inv
	return y
}

func (n *layerNorm) backward(i int, dy *mat.Dense) *mat.Dense {
	xhat := n.xhat[i]
	inv := n.invStd[i]
	rows, d := dy.Dims()
	dx := mat.NewDense(rows, d, nil)

	for t := 0; t < rows; t++ {
		meanDh := 0.0
		meanDhXhat := 0.0
		for j := 0; j < d; j++ {
			dh := dy.At(t, j) * n.gain.val.At(0, j)
			meanDh += dh
			meanDhXhat += dh * xhat.At(t, j)
		}
		meanDh /= float64(d)
		meanDhXhat /= float64(d)

		for j := 0; j < d; j++ {
			dh := dy.At(t, j) * n.gain.val.At(0, j)
			dx.Set(t, j, inv[t]*(dh-meanDh-xhat.At(t, j)*meanDhXhat))

			n.gain.grad.Set(0, j, n.gain.grad.At(0, j)+dy.At(t, j)*xhat.At(t, j))
			n.bias.grad.Set(0, j, n.bias.grad.At(0, j)+dy.At(t, j))
		}
	}
	return dx
}

// relu with cached activation sign.
type relu struct {
	x []*mat.Dense
}

func (r *relu) reset(n int) { r.x = make([]*mat.Dense, n) }

func (r *relu) forward(i int, x *mat.Dense) *mat.Dense {
	rows, cols := x.Dims()
	y := mat.NewDense(rows, cols, nil)
	for t := 0; t < rows; t++ {
		for j := 0; j < cols; j++ {
			if v := x.At(t, j); v > 0 {
				y.Set(t, j, v)
			}
		}
	}
	r.x[i] = x
	return y
}

func (r *relu) backward(i int, dy *mat.Dense) *mat.Dense {
	x := r.x[i]
	rows, cols := dy.Dims()
	dx := mat.NewDense(rows, cols, nil)
	for t := 0; t < rows; t++ {
		for j := 0; j < cols; j++ {
			if x.At(t, j) > 0 {
				dx.Set(t, j, dy.At(t, j))
			}
		}
	}
	return dx
}

// dropout zeroes activations with probability rate during training and
// rescales survivors by 1/(1-rate). Eval mode is the identity.
type dropout struct {
	rate float64
	mask []*mat.Dense
}

func (d *dropout) reset(n int) { d.mask = make([]*mat.Dense, n) }

func (d *dropout) forward(i int, x *mat.Dense, training bool, rng *rand.Rand) *mat.Dense {
	if !training || d.rate <= 0 {
		d.mask[i] = nil
		return x
	}
	rows, cols := x.Dims()
	scale := 1 / (1 - d.rate)
	mask := mat.NewDense(rows, cols, nil)
	y := mat.NewDense(rows, cols, nil)
	for t := 0; t < rows; t++ {
		for j := 0; j < cols; j++ {
			if rng.Float64() >= d.rate {
				mask.Set(t, j, scale)
				y.Set(t, j, x.At(t, j)*scale)
			}
		}
	}
	d.mask[i] = mask
	return y
}

func (d *dropout) backward(i int, dy *mat.Dense) *mat.Dense {
	mask := d.mask[i]
	if mask == nil {
		return dy
	}
	rows, cols := dy.Dims()
	dx := mat.NewDense(rows, cols, nil)
	dx.MulElem(dy, mask)
	return dx
}

// depthwiseConv applies an independent 1-D kernel along time per channel,
// zero-padded so the output length matches the input.
type depthwiseConv struct {
	w *param // d×K
	b *param // 1×d
	x []*mat.Dense
}

func (r *registry) depthwiseConv(name string, d, kernel int) *depthwiseConv {
	std := math.Sqrt(2.0 / float64(kernel+1))
	return &depthwiseConv{
		w: r.newParam(name+".weight", d, kernel, std),
		b: r.newParam(name+".bias", 1, d, 0),
	}
}

func (c *depthwiseConv) reset(n int) { c.x = make([]*mat.Dense, n) }

func (c *depthwiseConv) forward(i int, x *mat.Dense) *mat.Dense {
	rows, d := x.Dims()
	_, kernel := c.w.val.Dims()
	pad := kernel / 2

	y := mat.NewDense(rows, d, nil)
	for t := 0; t < rows; t++ {
		for ch := 0; ch < d; ch++ {
			sum := c.b.val.At(0, ch)
			for k := 0; k < kernel; k++ {
				s := t + k - pad
				if s < 0 || s >= rows {
					continue
				}
				sum += c.w.val.At(ch, k) * x.At(s, ch)
			}
			y.Set(t, ch, sum)
		}
	}
	c.x[i] = x
	return y
}

func (c *depthwiseConv) backward(i int, dy *mat.Dense) *mat.Dense {
	x := c.x[i]
	rows, d := x.Dims()
	_, kernel := c.w.val.Dims()
	pad := kernel / 2

	dx := mat.NewDense(rows, d, nil)
	for t := 0; t < rows; t++ {
		for ch := 0; ch < d; ch++ {
			g := dy.At(t, ch)
			if g == 0 {
				continue
			}
			c.b.grad.Set(0, ch, c.b.grad.At(0, ch)+g)
			for k := 0; k < kernel; k++ {
				s := t + k - pad
				if s < 0 || s >= rows {
					continue
				}
				c.w.grad.Set(ch, k, c.w.grad.At(ch, k)+g*x.At(s, ch))
				dx.Set(s, ch, dx.At(s, ch)+g*c.w.val.At(ch, k))
			}
		}
	}
	return dx
}

// meanPool collapses a T×d sequence into its 1×d column means. Pooling runs
// over the padded length; see the package comment.
type meanPool struct {
	rows []int
}

func (p *meanPool) reset(n int) { p.rows = make([]int, n) }

func (p *meanPool) forward(i int, x *mat.Dense) *mat.Dense {
	rows, d := x.Dims()
	y := mat.NewDense(1, d, nil)
	for j := 0; j < d; j++ {
		sum := 0.0
		for t := 0; t < rows; t++ {
			sum += x.At(t, j)
		}
		y.Set(0, j, sum/float64(rows))
	}
	p.rows[i] = rows
	return y
}

func (p *meanPool) backward(i int, dy *mat.Dense) *mat.Dense {
	rows := p.rows[i]
	_, d := dy.Dims()
	dx := mat.NewDense(rows, d, nil)
	for t := 0; t < rows; t++ {
		for j := 0; j < d; j++ {
			dx.Set(t, j, dy.At(0, j)/float64(rows))
		}
	}
	return dx
}
