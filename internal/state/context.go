// Package state owns the decision axes and publishes their combination as
// immutable snapshots.
package state

import (
	"sync"
	"sync/atomic"

	"decision-maker/internal/fsm"
	"decision-maker/internal/logger"
	"decision-maker/internal/spatial"
	"decision-maker/internal/types"
)

// Context evaluates all axes once per cycle. Readers only ever see snapshots
// of completed passes; Evaluate calls are serialized.
type Context struct {
	evalMu   sync.Mutex
	axes     []fsm.StateAxis
	snapshot atomic.Pointer[Snapshot]
	logger   *logger.Logger
}

// NewContext takes ownership of axes; their order is the evaluation and
// rendering order. The initial snapshot (Seq 0) holds each axis's initial
// state.
func NewContext(axes []fsm.StateAxis, l *logger.Logger) *Context {
	c := &Context{
		axes:   append([]fsm.StateAxis(nil), axes...),
		logger: l.WithTag("StateContext"),
	}
	c.snapshot.Store(c.collect(0))
	return c
}

// FromAxes is a convenience for the concrete axes returned by fsm.Build.
func FromAxes(axes []*fsm.Axis, l *logger.Logger) *Context {
	generic := make([]fsm.StateAxis, len(axes))
	for i, a := range axes {
		generic[i] = a
	}
	return NewContext(generic, l)
}

// Evaluate runs one pass over every axis with the same inputs and publishes
// the resulting snapshot atomically.
func (c *Context) Evaluate(sc spatial.View, telemetry types.Telemetry, path []types.Waypoint) *Snapshot {
	c.evalMu.Lock()
	defer c.evalMu.Unlock()

	prev := c.snapshot.Load()
	in := fsm.Inputs{
		Spatial:   sc,
		Telemetry: telemetry,
		Path:      path,
		Previous:  prev.names(),
	}

	for _, axis := range c.axes {
		if state, changed := axis.Evaluate(in); changed {
			c.logger.Debugf("%s: %s -> %s", axis.Kind(), prev.Name(axis.Kind()), state)
		}
	}

	next := c.collect(prev.Seq + 1)
	c.snapshot.Store(next)
	return next
}

// collect reads every axis after all writes of the pass are done.
func (c *Context) collect(seq uint64) *Snapshot {
	axes := make([]AxisState, len(c.axes))
	for i, axis := range c.axes {
		axes[i] = AxisState{Kind: axis.Kind(), Name: axis.CurrentStateName()}
	}
	return &Snapshot{
		Seq:  seq,
		Axes: axes,
		Text: renderText(axes),
	}
}

// Snapshot returns the last completed snapshot.
func (c *Context) Snapshot() *Snapshot {
	return c.snapshot.Load()
}

// CurrentStateName reads one axis from the last completed snapshot.
func (c *Context) CurrentStateName(kind types.AxisKind) string {
	return c.snapshot.Load().Name(kind)
}

// CreateStateMessageText renders the last completed snapshot.
func (c *Context) CreateStateMessageText() string {
	return c.snapshot.Load().Text
}

// Kinds returns the configured axes in evaluation order.
func (c *Context) Kinds() []types.AxisKind {
	kinds := make([]types.AxisKind, len(c.axes))
	for i, a := range c.axes {
		kinds[i] = a.Kind()
	}
	return kinds
}

// DeclaredStates returns the declared state set of kind.
func (c *Context) DeclaredStates(kind types.AxisKind) []string {
	for _, a := range c.axes {
		if a.Kind() == kind {
			return a.States()
		}
	}
	return nil
}
