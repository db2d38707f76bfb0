package state

import (
	"strings"
	"time"

	"decision-maker/internal/types"
)

// AxisState is one axis's state name inside a snapshot.
type AxisState struct {
	Kind types.AxisKind
	Name string
}

// Snapshot is the combined state produced by one completed evaluation pass.
// It is never mutated after publication.
type Snapshot struct {
	Seq  uint64
	Axes []AxisState
	Text string
}

// Name returns the state of kind, or "" when the axis is not configured.
func (s *Snapshot) Name(kind types.AxisKind) string {
	if s == nil {
		return ""
	}
	for _, a := range s.Axes {
		if a.Kind == kind {
			return a.Name
		}
	}
	return ""
}

func (s *Snapshot) Main() string {
	return s.Name(types.AxisMain)
}

func (s *Snapshot) names() map[types.AxisKind]string {
	out := make(map[types.AxisKind]string, len(s.Axes))
	for _, a := range s.Axes {
		out[a.Kind] = a.Name
	}
	return out
}

// Record is the combined-state record published for downstream consumers.
type Record struct {
	NodeID        string    `json:"node_id,omitempty"`
	Seq           uint64    `json:"seq"`
	MainState     string    `json:"main_state"`
	BehaviorState string    `json:"behavior_state"`
	AccState      string    `json:"acc_state"`
	StrState      string    `json:"str_state"`
	Stamp         time.Time `json:"stamp"`
}

func (s *Snapshot) Record(nodeID string, stamp time.Time) Record {
	return Record{
		NodeID:        nodeID,
		Seq:           s.Seq,
		MainState:     s.Name(types.AxisMain),
		BehaviorState: s.Name(types.AxisBehavior),
		AccState:      s.Name(types.AxisAcceleration),
		StrState:      s.Name(types.AxisSteering),
		Stamp:         stamp,
	}
}

// renderText produces the status overlay text: one "KIND: name" line per axis
// in evaluation order. It depends only on the axis states.
func renderText(axes []AxisState) string {
	var b strings.Builder
	for _, a := range axes {
		b.WriteString(string(a.Kind))
		b.WriteString(": ")
		b.WriteString(a.Name)
		b.WriteByte('\n')
	}
	return b.String()
}

// Change is the difference between two consecutive snapshots.
type Change struct {
	MainChanged  bool
	PreviousMain string
	CurrentMain  string
	Changed      []types.AxisKind
}

// Diff compares prev and next axis by axis. A nil prev counts every axis of
// next as changed. MAIN is compared by name.
func Diff(prev, next *Snapshot) Change {
	c := Change{
		PreviousMain: prev.Main(),
		CurrentMain:  next.Main(),
	}
	c.MainChanged = c.PreviousMain != c.CurrentMain
	if next == nil {
		return c
	}
	for _, a := range next.Axes {
		if prev == nil || prev.Name(a.Kind) != a.Name {
			c.Changed = append(c.Changed, a.Kind)
		}
	}
	return c
}
