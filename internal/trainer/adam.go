package trainer

import "math"

const (
	adamBeta1   = 0.9
	adamBeta2   = 0.999
	adamEpsilon = 1e-7
)

// adam keeps first and second moment estimates for one flat parameter slice.
type adam struct {
	lr   float64
	step int
	m    []float64
	v    []float64
}

func newAdam(size int, lr float64) *adam {
	return &adam{lr: lr, m: make([]float64, size), v: make([]float64, size)}
}

// update applies one bias-corrected Adam step to params in place.
func (a *adam) update(params []float32, grads []float64) {
	a.step++
	t := float64(a.step)
	lrT := a.lr * math.Sqrt(1-math.Pow(adamBeta2, t)) / (1 - math.Pow(adamBeta1, t))

	for i, g := range grads {
		a.m[i] = adamBeta1*a.m[i] + (1-adamBeta1)*g
		a.v[i] = adamBeta2*a.v[i] + (1-adamBeta2)*g*g
		params[i] -= float32(lrT * a.m[i] / (math.Sqrt(a.v[i]) + adamEpsilon))
	}
}
