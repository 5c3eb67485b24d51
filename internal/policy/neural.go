package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/patrikeh/go-deep"

	"pacbench/internal/env"
)

// NetworkWeights is the persisted form of a trained evaluation network.
type NetworkWeights struct {
	Name         string        `json:"name"`
	Inputs       int           `json:"inputs"`
	HiddenLayers []int         `json:"hidden_layers"`
	Weights      [][][]float64 `json:"weights,omitempty"`
}

// DefaultNetworkWeights describes the untrained architecture used when no
// weights file is supplied.
func DefaultNetworkWeights() NetworkWeights {
	return NetworkWeights{
		Name:         "default",
		Inputs:       env.FeatureCount,
		HiddenLayers: []int{32, 16},
	}
}

// Neural is the learned variant: a feedforward network scores every action
// from the observation's feature vector and the best-scoring legal action
// wins. Training is out of scope here; the network loads pre-trained weights
// from JSON and only runs inference.
type Neural struct {
	network *deep.Neural
	config  NetworkWeights
}

func NewNeural(weightsPath string) (*Neural, error) {
	config := DefaultNetworkWeights()
	if weightsPath != "" {
		loaded, err := LoadNetworkWeights(weightsPath)
		if err != nil {
			return nil, err
		}
		config = loaded
	}
	if config.Inputs != env.FeatureCount {
		return nil, fmt.Errorf("network expects %d inputs, environment produces %d", config.Inputs, env.FeatureCount)
	}

	layout := append([]int(nil), config.HiddenLayers...)
	layout = append(layout, actionCount())

	network := deep.NewNeural(&deep.Config{
		Inputs:     config.Inputs,
		Layout:     layout,
		Activation: deep.ActivationReLU,
		Mode:       deep.ModeRegression,
		Weight:     deep.NewNormal(0.0, 0.1),
		Bias:       true,
	})
	if config.Weights != nil {
		network.ApplyWeights(config.Weights)
	}
	return &Neural{network: network, config: config}, nil
}

func (n *Neural) Name() string { return "neural" }

func (n *Neural) Reset(int64) {}

func (n *Neural) Act(_ context.Context, obs env.Observation) (env.Action, error) {
	scores := n.network.Predict(env.Features(obs))
	if len(scores) < actionCount() {
		return env.ActionNoop, fmt.Errorf("network produced %d scores, want %d", len(scores), actionCount())
	}

	best := env.ActionNoop
	bestScore := 0.0
	first := true
	for _, a := range obs.Legal {
		score := scores[int(a)]
		if first || score > bestScore {
			first = false
			bestScore = score
			best = a
		}
	}
	return best, nil
}

// LoadNetworkWeights reads a JSON weights file produced by a training run.
func LoadNetworkWeights(path string) (NetworkWeights, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return NetworkWeights{}, fmt.Errorf("load network weights: %w", err)
	}
	var config NetworkWeights
	if err := json.Unmarshal(data, &config); err != nil {
		return NetworkWeights{}, fmt.Errorf("decode network weights: %w", err)
	}
	if config.Inputs == 0 {
		config.Inputs = env.FeatureCount
	}
	if len(config.HiddenLayers) == 0 {
		config.HiddenLayers = DefaultNetworkWeights().HiddenLayers
	}
	return config, nil
}

// SaveNetworkWeights writes a weights file loadable by NewNeural.
func SaveNetworkWeights(path string, config NetworkWeights) error {
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func actionCount() int {
	return env.NewPaclite().ActionSpace().N
}
