// Package dynamo provides core primitives shared by the planar point-mass
// model, the LQR solver and the rollout simulator:
//
//   - [State]: x, vx, y, vy column vector
//   - [Control]: ux, uy acceleration command
//   - [Horizon]: validated step count built from duration and time step
//   - [SimulationError]: step-tagged error wrapper
//
// # Horizons
//
// Every entry point converts (duration, dt) through [NewHorizon], which
// rejects fractional step counts instead of rounding them:
//
//	h, err := dynamo.NewHorizon(9.0, 0.03) // h.Steps == 300
//	_, err = dynamo.NewHorizon(9.0, 0.011) // errors.Is(err, dynamo.ErrInvalidHorizon)
package dynamo
