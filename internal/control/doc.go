// Package control synthesises and applies discrete-time LQR feedback for
// goal tracking.
//
//   - [SolveLQR]: finite-horizon gain sequence by backward Riccati recursion
//   - [SolveSteadyState]: fixed-iteration infinite-horizon gain
//   - [GainSequence]: contiguous arena of per-step gains
//   - [LQR]: applies a gain sequence step by step
//   - [Tracker]: replans when the goal moves or the plan runs out
//   - [Solver]: binds model matrices and [Costs] into a [GainSource]
//
// # Non-zero goals
//
// Tracking a goal g turns the error dynamics affine. The solver appends a
// constant 1 to the state so the problem becomes a plain regulator:
//
//	A' = [A, A g − g; 0, 1]   B' = [B; 0]   Q' = [Q, 0; 0, 0]
//
// Every gain therefore has n+1 columns and acts on (x − g, 1).
//
// # Usage
//
//	pm, _ := physics.NewPointMass(0.02, physics.DefaultDamping)
//	solver := control.NewSolver(pm.A(), pm.B(), control.DefaultCosts())
//	gains, err := solver.Gains(goal, 150)
//	u := control.NewLQR(gains, goal).Compute(x, step)
package control
