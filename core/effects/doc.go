// Package effects implements the models that turn the ideal output of a panel
// into its actual output.
//
// The set of effects is closed. A Chain always runs, in this order:
//
//   - SoilingModel: dirt accumulation and cleaning, scales output by (1 - soiling).
//   - DegradationModel: age-driven capacity loss, scales output by the degradation factor.
//   - FailureModel: stochastic failure draw, forces output to zero once failed.
//
// Failure comes last because its hazard depends on the soiling and
// degradation state already updated for the step, and because it must see the
// attenuated output.
//
// Every model is a pure function of the panel state, the environment sample
// and the incoming output. Randomness only comes from the stream stored in the
// panel state, so replaying a state replays its draws.
package effects
