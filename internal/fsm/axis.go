package fsm

import (
	"context"
	"sort"

	lfsm "github.com/looplab/fsm"

	"decision-maker/internal/logger"
	"decision-maker/internal/types"
)

// StateAxis is one independent state variable of the combined decision state.
type StateAxis interface {
	Kind() types.AxisKind
	// Evaluate applies at most one transition from the current state and
	// returns the resulting state name.
	Evaluate(in Inputs) (state string, changed bool)
	CurrentStateName() string
	States() []string
}

// Transition is a compiled table entry.
type Transition struct {
	From      string
	To        string
	GuardName string
	Negate    bool
	Priority  int

	guard Guard
	event string
	order int
}

// Holds reports whether the transition may fire for in.
func (t Transition) Holds(in Inputs) bool {
	if t.guard == nil {
		return true
	}
	return t.guard(in) != t.Negate
}

// Axis is the single StateAxis implementation; Kind tags what it models.
type Axis struct {
	kind        types.AxisKind
	states      []string
	stateSet    map[string]struct{}
	transitions map[string][]Transition
	machine     *lfsm.FSM
	observer    Observer
	logger      *logger.Logger
}

var _ StateAxis = (*Axis)(nil)

func newAxis(kind types.AxisKind, states []string, initial string, transitions []Transition, l *logger.Logger) *Axis {
	a := &Axis{
		kind:        kind,
		states:      append([]string(nil), states...),
		stateSet:    make(map[string]struct{}, len(states)),
		transitions: make(map[string][]Transition),
		logger:      l.WithTag(string(kind)),
	}
	for _, s := range states {
		a.stateSet[s] = struct{}{}
	}

	seen := make(map[string]bool)
	var events lfsm.Events
	for _, t := range transitions {
		a.transitions[t.From] = append(a.transitions[t.From], t)
		if !seen[t.event] {
			seen[t.event] = true
			events = append(events, lfsm.EventDesc{Name: t.event, Src: []string{t.From}, Dst: t.To})
		}
	}

	// Higher priority first; equal priority keeps table order.
	for from := range a.transitions {
		candidates := a.transitions[from]
		sort.SliceStable(candidates, func(i, j int) bool {
			if candidates[i].Priority != candidates[j].Priority {
				return candidates[i].Priority > candidates[j].Priority
			}
			return candidates[i].order < candidates[j].order
		})
	}

	a.machine = lfsm.NewFSM(initial, events, lfsm.Callbacks{
		"enter_state": func(_ context.Context, e *lfsm.Event) {
			a.logger.Debugf("Transition %s: %s -> %s", e.Event, e.Src, e.Dst)
		},
	})
	return a
}

func (a *Axis) Kind() types.AxisKind {
	return a.kind
}

func (a *Axis) CurrentStateName() string {
	return a.machine.Current()
}

// States returns the declared states in table order.
func (a *Axis) States() []string {
	return append([]string(nil), a.states...)
}

func (a *Axis) HasState(state string) bool {
	_, ok := a.stateSet[state]
	return ok
}

// Transitions returns the candidates from state in evaluation order.
func (a *Axis) Transitions(state string) []Transition {
	return append([]Transition(nil), a.transitions[state]...)
}

// SetObserver registers the transition observer. Not safe to call while an
// evaluation is running.
func (a *Axis) SetObserver(o Observer) {
	a.observer = o
}

func (a *Axis) Evaluate(in Inputs) (string, bool) {
	current := a.machine.Current()
	for _, t := range a.transitions[current] {
		if !t.Holds(in) {
			continue
		}
		if err := a.machine.Event(context.Background(), t.event); err != nil {
			// Unreachable with a validated table; hold state rather than guess.
			a.logger.Errorf("Failed to apply %s: %v", t.event, err)
			return current, false
		}
		if a.observer != nil {
			a.observer.OnTransition(a.kind, current, t.To)
		}
		return t.To, true
	}
	return current, false
}
