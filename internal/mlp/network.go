// Package mlp implements a small fully connected feed-forward network
// trained with online backpropagation.
package mlp

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// Network is a multilayer perceptron. It is not safe for concurrent use:
// FeedForward overwrites the activation cache that backpropagation reads.
type Network struct {
	cfg     Config
	weights []*mat.Dense // weights[i] is layers[i+1] x layers[i]
	biases  []*mat.Dense // biases[i] is layers[i+1] x 1
	a       []*mat.Dense // activations of the last forward pass, a[0] is the input
	rng     *rand.Rand
}

// New creates a network with weights and biases drawn uniformly from
// [-0.5, 0.5]. It panics if cfg is invalid.
func New(cfg Config, opts ...Option) *Network {
	if err := cfg.Validate(); err != nil {
		panic(err)
	}
	n := &Network{cfg: cloneConfig(cfg)}
	for _, opt := range opts {
		opt(n)
	}
	if n.rng == nil {
		n.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	layers := n.cfg.Layers
	n.weights = make([]*mat.Dense, len(layers)-1)
	n.biases = make([]*mat.Dense, len(layers)-1)
	for i := 0; i < len(layers)-1; i++ {
		n.weights[i] = n.uniform(layers[i+1], layers[i])
		n.biases[i] = n.uniform(layers[i+1], 1)
	}
	return n
}

func (n *Network) uniform(r, c int) *mat.Dense {
	data := make([]float64, r*c)
	for i := range data {
		data[i] = n.rng.Float64() - 0.5
	}
	return mat.NewDense(r, c, data)
}

// Config returns a copy of the network configuration.
func (n *Network) Config() Config {
	return cloneConfig(n.cfg)
}

// SetReporter attaches a progress reporter used by Train.
func (n *Network) SetReporter(r ProgressReporter) {
	n.cfg.Reporter = r
}

// FeedForward runs a forward pass and returns a copy of the output layer.
// It panics if len(input) does not match the input layer.
func (n *Network) FeedForward(input []float64) []float64 {
	if len(input) != n.cfg.Inputs() {
		panic(fmt.Sprintf("mlp: got %d inputs, network expects %d", len(input), n.cfg.Inputs()))
	}
	a := mat.NewDense(len(input), 1, append([]float64(nil), input...))
	n.a = append(n.a[:0], a)
	last := len(n.weights) - 1
	for i := range n.weights {
		z := n.preActivation(i, a)
		if i == last {
			a = n.output(z)
		} else {
			a = n.activate(z)
		}
		n.a = append(n.a, a)
	}
	return mat.Col(nil, 0, a)
}

// Train runs online gradient descent over inputs and targets for the
// given number of epochs.
func (n *Network) Train(inputs, targets [][]float64, epochs int) {
	if len(inputs) != len(targets) {
		panic(fmt.Sprintf("mlp: %d inputs but %d targets", len(inputs), len(targets)))
	}
	var mse float64
	for epoch := 1; epoch <= epochs; epoch++ {
		for j := range inputs {
			n.FeedForward(inputs[j])
			mse = n.backPropagate(targets[j])
		}
		if n.cfg.Reporter != nil && (epochs < 100 || epoch%(epochs/100) == 0) {
			n.cfg.Reporter.ReportProgress(TrainingState{
				Epoch:       epoch,
				TotalEpochs: epochs,
				MSE:         mse,
			})
		}
	}
}

// backPropagate updates every layer from the error of the last forward
// pass against target and returns the mean squared value of the final
// error signal.
func (n *Network) backPropagate(target []float64) float64 {
	L := len(n.weights)
	if len(n.a) != L+1 {
		panic("mlp: backPropagate called without a forward pass")
	}
	if len(target) != n.cfg.Outputs() {
		panic(fmt.Sprintf("mlp: got %d targets, network outputs %d", len(target), n.cfg.Outputs()))
	}

	y := mat.NewDense(len(target), 1, append([]float64(nil), target...))
	delta := new(mat.Dense)
	delta.Sub(n.a[L], y)
	delta.MulElem(delta, n.outputDerivative(n.preActivation(L-1, n.a[L-1])))

	lr := n.cfg.LearningRate
	for l := L - 1; l >= 0; l-- {
		// the signal for layer l-1 must see W[l] before its update
		var next *mat.Dense
		if l > 0 {
			z := n.preActivation(l-1, n.a[l-1])
			next = new(mat.Dense)
			next.Mul(n.weights[l].T(), delta)
			next.MulElem(next, n.derivative(z))
		}

		var dW mat.Dense
		dW.Mul(delta, n.a[l].T())
		dW.Scale(lr, &dW)
		n.weights[l].Sub(n.weights[l], &dW)

		var db mat.Dense
		db.Scale(lr, delta)
		n.biases[l].Sub(n.biases[l], &db)

		if next != nil {
			delta = next
		}
	}

	r, _ := delta.Dims()
	var sum float64
	for i := 0; i < r; i++ {
		v := delta.At(i, 0)
		sum += v * v
	}
	return sum / float64(r)
}

func (n *Network) preActivation(i int, a mat.Matrix) *mat.Dense {
	z := new(mat.Dense)
	z.Mul(n.weights[i], a)
	z.Add(z, n.biases[i])
	return z
}

func (n *Network) activate(z *mat.Dense) *mat.Dense {
	out := new(mat.Dense)
	out.Apply(func(_, _ int, v float64) float64 { return n.cfg.Activation.Function(v) }, z)
	return out
}

func (n *Network) derivative(z *mat.Dense) *mat.Dense {
	out := new(mat.Dense)
	out.Apply(func(_, _ int, v float64) float64 { return n.cfg.Activation.Derivative(v) }, z)
	return out
}

func cloneConfig(c Config) Config {
	c.Layers = append([]int(nil), c.Layers...)
	return c
}
