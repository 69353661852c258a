// Package physics provides the discrete-time damped point-mass model.
//
// [PointMass] exposes its transition matrix A (4×4) and input matrix B (4×2)
// for control synthesis, plus a pure one-step propagation rule:
//
//	pm, _ := physics.NewPointMass(0.01, physics.DefaultDamping)
//	next := pm.Step(x, nil)   // free motion, A x
//	next = pm.Step(x, u)      // controlled, A x + B u
//
// The x and y axes never couple: A is block diagonal by axis and B drives
// only the velocity rows.
package physics
