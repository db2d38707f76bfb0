package fsm

import "decision-maker/internal/types"

// Observer receives axis transitions as they are applied. StateContext wires
// logging and metrics through it; a nil Observer is allowed.
type Observer interface {
	// OnTransition runs after the axis has moved from -> to. It must not
	// read other axes: their in-pass states are not settled yet.
	OnTransition(kind types.AxisKind, from, to string)
}

// ObserverFunc adapts a plain function to Observer.
type ObserverFunc func(kind types.AxisKind, from, to string)

func (f ObserverFunc) OnTransition(kind types.AxisKind, from, to string) {
	f(kind, from, to)
}
