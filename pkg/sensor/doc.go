// Package sensor reads the optical feed sensors and debounces their transitions.
//
// WaitStable is independent of any particular sensor: it polls a level source and only
// accepts the target level once it has been held for a full stabilization window.
package sensor
