package encoder

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// attention is multi-head scaled dot-product self-attention over one
// sequence. Head count must divide the model width.
type attention struct {
	wq, wk, wv, wo *linear
	heads          int
	dropRate       float64

	q, k, v []*mat.Dense
	// probs holds the post-softmax attention matrices per item and head;
	// masks holds the dropout masks applied to them (nil in eval mode).
	probs [][]*mat.Dense
	masks [][]*mat.Dense
}

func (r *registry) attention(name string, d, heads int, dropRate float64) *attention {
	return &attention{
		wq:       r.linear(name+".wq", d, d),
		wk:       r.linear(name+".wk", d, d),
		wv:       r.linear(name+".wv", d, d),
		wo:       r.linear(name+".wo", d, d),
		heads:    heads,
		dropRate: dropRate,
	}
}

func (a *attention) reset(n int) {
	a.wq.reset(n)
	a.wk.reset(n)
	a.wv.reset(n)
	a.wo.reset(n)
	a.q = make([]*mat.Dense, n)
	a.k = make([]*mat.Dense, n)
	a.v = make([]*mat.Dense, n)
	a.probs = make([][]*mat.Dense, n)
	a.masks = make([][]*mat.Dense, n)
}

func (a *attention) forward(i int, x *mat.Dense, training bool, rng *rand.Rand) *mat.Dense {
	rows, d := x.Dims()
	dh := d / a.heads
	scale := 1 / math.Sqrt(float64(dh))

	q := a.wq.forward(i, x)
	k := a.wk.forward(i, x)
	v := a.wv.forward(i, x)

	concat := mat.NewDense(rows, d, nil)
	probs := make([]*mat.Dense, a.heads)
	masks := make([]*mat.Dense, a.heads)

	for h := 0; h < a.heads; h++ {
		lo, hi := h*dh, (h+1)*dh
		qh := q.Slice(0, rows, lo, hi)
		kh := k.Slice(0, rows, lo, hi)
		vh := v.Slice(0, rows, lo, hi)

		scores := mat.NewDense(rows, rows, nil)
		scores.Mul(qh, kh.T())
		scores.Scale(scale, scores)
		prob := rowSoftmax(scores)
		probs[h] = prob

		effective := prob
		if training && a.dropRate > 0 {
			mask := mat.NewDense(rows, rows, nil)
			dropped := mat.NewDense(rows, rows, nil)
			keep := 1 / (1 - a.dropRate)
			for t := 0; t < rows; t++ {
				for u := 0; u < rows; u++ {
					if rng.Float64() >= a.dropRate {
						mask.Set(t, u, keep)
						dropped.Set(t, u, prob.At(t, u)*keep)
					}
				}
			}
			masks[h] = mask
			effective = dropped
		}

		out := mat.NewDense(rows, dh, nil)
		out.Mul(effective, vh)
		concat.Slice(0, rows, lo, hi).(*mat.Dense).Copy(out)
	}

	a.q[i], a.k[i], a.v[i] = q, k, v
	a.probs[i], a.masks[i] = probs, masks
	return a.wo.forward(i, concat)
}

func (a *attention) backward(i int, dy *mat.Dense) *mat.Dense {
	dConcat := a.wo.backward(i, dy)
	q, k, v := a.q[i], a.k[i], a.v[i]
	rows, d := q.Dims()
	dh := d / a.heads
	scale := 1 / math.Sqrt(float64(dh))

	dq := mat.NewDense(rows, d, nil)
	dk := mat.NewDense(rows, d, nil)
	dv := mat.NewDense(rows, d, nil)

	for h := 0; h < a.heads; h++ {
		lo, hi := h*dh, (h+1)*dh
		qh := q.Slice(0, rows, lo, hi)
		kh := k.Slice(0, rows, lo, hi)
		vh := v.Slice(0, rows, lo, hi)
		prob := a.probs[i][h]
		mask := a.masks[i][h]

		dOut := dConcat.Slice(0, rows, lo, hi)

		// Effective attention used for the value mix was prob (or its
		// dropout-scaled variant), so gradients flow through the same path.
		effective := prob
		if mask != nil {
			scaled := mat.NewDense(rows, rows, nil)
			scaled.MulElem(prob, mask)
			effective = scaled
		}

		dvh := mat.NewDense(rows, dh, nil)
		dvh.Mul(effective.T(), dOut)
		dvSlice := dv.Slice(0, rows, lo, hi).(*mat.Dense)
		dvSlice.Add(dvSlice, dvh)

		dEff := mat.NewDense(rows, rows, nil)
		dEff.Mul(dOut, vh.T())
		if mask != nil {
			dEff.MulElem(dEff, mask)
		}

		// Row-wise softmax backward: dS = P ⊙ (dP − rowdot(dP, P)).
		dScores := mat.NewDense(rows, rows, nil)
		for t := 0; t < rows; t++ {
			dot := 0.0
			for u := 0; u < rows; u++ {
				dot += dEff.At(t, u) * prob.At(t, u)
			}
			for u := 0; u < rows; u++ {
				dScores.Set(t, u, prob.At(t, u)*(dEff.At(t, u)-dot))
			}
		}
		dScores.Scale(scale, dScores)

		dqh := mat.NewDense(rows, dh, nil)
		dqh.Mul(dScores, kh)
		dqSlice := dq.Slice(0, rows, lo, hi).(*mat.Dense)
		dqSlice.Add(dqSlice, dqh)

		dkh := mat.NewDense(rows, dh, nil)
		dkh.Mul(dScores.T(), qh)
		dkSlice := dk.Slice(0, rows, lo, hi).(*mat.Dense)
		dkSlice.Add(dkSlice, dkh)
	}

	dx := a.wq.backward(i, dq)
	dx.Add(dx, a.wk.backward(i, dk))
	dx.Add(dx, a.wv.backward(i, dv))
	return dx
}

func rowSoftmax(scores *mat.Dense) *mat.Dense {
	rows, cols := scores.Dims()
	out := mat.NewDense(rows, cols, nil)
	for t := 0; t < rows; t++ {
		max := scores.At(t, 0)
		for u := 1; u < cols; u++ {
			if v := scores.At(t, u); v > max {
				max = v
			}
		}
		sum := 0.0
		for u := 0; u < cols; u++ {
			e := math.Exp(scores.At(t, u) - max)
			out.Set(t, u, e)
			sum += e
		}
		for u := 0; u < cols; u++ {
			out.Set(t, u, out.At(t, u)/sum)
		}
	}
	return out
}
