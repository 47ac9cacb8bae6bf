package mlp

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"gonum.org/v1/gonum/mat"
)

// FormatVersion is the persisted model format version.
const FormatVersion = 1

type document struct {
	Version      *int          `json:"version,omitempty"`
	Layers       []int         `json:"layers"`
	Activation   Activation    `json:"activation"`
	LearningRate float64       `json:"learning_rate"`
	Weights      [][][]float64 `json:"weights"`
	Biases       [][][]float64 `json:"biases"`
}

// Encode writes the network parameters as JSON.
func (n *Network) Encode(w io.Writer) error {
	v := FormatVersion
	doc := document{
		Version:      &v,
		Layers:       n.cfg.Layers,
		Activation:   n.cfg.Activation,
		LearningRate: n.cfg.LearningRate,
		Weights:      make([][][]float64, len(n.weights)),
		Biases:       make([][][]float64, len(n.biases)),
	}
	for i := range n.weights {
		doc.Weights[i] = rows(n.weights[i])
		doc.Biases[i] = rows(n.biases[i])
	}
	if err := json.NewEncoder(w).Encode(doc); err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	return nil
}

// Dump writes the network to path, replacing any existing file.
func (n *Network) Dump(path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: %w", ErrIO, cerr)
		}
	}()
	return n.Encode(f)
}

// Decode reads a network written by Encode and attaches reporter.
func Decode(r io.Reader, reporter ProgressReporter) (*Network, error) {
	var doc document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, ErrDecode) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if doc.Version != nil && *doc.Version != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrDecode, *doc.Version)
	}

	cfg := Config{
		Layers:       doc.Layers,
		Activation:   doc.Activation,
		LearningRate: doc.LearningRate,
		Reporter:     reporter,
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	want := len(cfg.Layers) - 1
	if len(doc.Weights) != want || len(doc.Biases) != want {
		return nil, fmt.Errorf("%w: expected %d weight and bias matrices, got %d and %d",
			ErrDecode, want, len(doc.Weights), len(doc.Biases))
	}

	n := &Network{
		cfg:     cfg,
		weights: make([]*mat.Dense, want),
		biases:  make([]*mat.Dense, want),
	}
	for i := 0; i < want; i++ {
		w, err := dense(doc.Weights[i], cfg.Layers[i+1], cfg.Layers[i])
		if err != nil {
			return nil, fmt.Errorf("%w: weights[%d]: %w", ErrDecode, i, err)
		}
		b, err := dense(doc.Biases[i], cfg.Layers[i+1], 1)
		if err != nil {
			return nil, fmt.Errorf("%w: biases[%d]: %w", ErrDecode, i, err)
		}
		n.weights[i], n.biases[i] = w, b
	}
	return n, nil
}

// Load reads a network from path and attaches reporter.
func Load(path string, reporter ProgressReporter) (*Network, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}
	defer f.Close()
	return Decode(f, reporter)
}

func rows(m *mat.Dense) [][]float64 {
	r, _ := m.Dims()
	out := make([][]float64, r)
	for i := range out {
		out[i] = mat.Row(nil, i, m)
	}
	return out
}

func dense(data [][]float64, r, c int) (*mat.Dense, error) {
	if len(data) != r {
		return nil, fmt.Errorf("want %d rows, got %d", r, len(data))
	}
	flat := make([]float64, 0, r*c)
	for i, row := range data {
		if len(row) != c {
			return nil, fmt.Errorf("row %d: want %d columns, got %d", i, c, len(row))
		}
		flat = append(flat, row...)
	}
	return mat.NewDense(r, c, flat), nil
}
