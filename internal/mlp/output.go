package mlp

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// output applies the final transform: logistic for a single unit,
// softmax otherwise.
func (n *Network) output(z *mat.Dense) *mat.Dense {
	if n.cfg.Outputs() == 1 {
		out := new(mat.Dense)
		out.Apply(func(_, _ int, v float64) float64 { return logistic(v) }, z)
		return out
	}
	return softmax(z)
}

// outputDerivative is the derivative of the output transform at z. The
// softmax case pairs with a cross-entropy style error, so its factor is 1.
func (n *Network) outputDerivative(z *mat.Dense) *mat.Dense {
	out := new(mat.Dense)
	if n.cfg.Outputs() == 1 {
		out.Apply(func(_, _ int, v float64) float64 {
			s := logistic(v)
			return s * (1 - s)
		}, z)
		return out
	}
	out.Apply(func(_, _ int, _ float64) float64 { return 1 }, z)
	return out
}

func softmax(z *mat.Dense) *mat.Dense {
	top := mat.Max(z)
	out := new(mat.Dense)
	out.Apply(func(_, _ int, v float64) float64 { return math.Exp(v - top) }, z)
	out.Scale(1/mat.Sum(out), out)
	return out
}
