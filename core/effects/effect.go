package effects

import (
	"time"

	"github.com/kilianp07/solaris/core/model"
)

const hoursPerYear = 8760.0

// Effect transforms the state and output of one panel for one step.
type Effect interface {
	Name() string
	Apply(st model.PanelState, env model.EnvironmentSample, out model.Output) (model.PanelState, model.Output)
}

// Chain is the fixed Soiling -> Degradation -> Failure pipeline.
type Chain struct {
	Soiling     SoilingModel
	Degradation DegradationModel
	Failure     FailureModel
}

// NewChain validates cfg and builds the chain.
func NewChain(cfg Config) (Chain, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return Chain{}, err
	}
	return Chain{
		Soiling:     SoilingModel{Config: cfg.Soiling},
		Degradation: DegradationModel{Config: cfg.Degradation},
		Failure:     FailureModel{Config: cfg.Failure},
	}, nil
}

// Effects returns the models in execution order.
func (c Chain) Effects() []Effect {
	return []Effect{c.Soiling, c.Degradation, c.Failure}
}

// Apply runs every effect and stamps the state with the step time.
func (c Chain) Apply(st model.PanelState, env model.EnvironmentSample, ideal model.Output) (model.PanelState, model.Output) {
	out := ideal
	for _, e := range c.Effects() {
		st, out = e.Apply(st, env, out)
	}
	if out.PowerW > ideal.PowerW {
		out.PowerW = ideal.PowerW
	}
	if out.CurrentA > ideal.CurrentA {
		out.CurrentA = ideal.CurrentA
	}
	st.LastStepAt = env.Timestamp
	st.LastOutput = out
	return st, out
}

// elapsed is the simulated time covered by the step.
func elapsed(st model.PanelState, env model.EnvironmentSample) time.Duration {
	if env.Timestamp.Before(st.LastStepAt) {
		return 0
	}
	return env.Timestamp.Sub(st.LastStepAt)
}
