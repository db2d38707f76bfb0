package fsm

import (
	"errors"
	"fmt"

	"decision-maker/internal/logger"
	"decision-maker/internal/types"
)

// ErrInvalidTable marks a malformed axis definition. It is fatal at startup.
var ErrInvalidTable = errors.New("invalid transition table")

// TransitionSpec is one table row as written in configuration.
type TransitionSpec struct {
	From     string         `yaml:"from"`
	To       string         `yaml:"to"`
	Guard    string         `yaml:"guard,omitempty"`
	Args     map[string]any `yaml:"args,omitempty"`
	Negate   bool           `yaml:"negate,omitempty"`
	Priority int            `yaml:"priority,omitempty"`
}

// AxisSpec declares one axis. Axes are evaluated in the order they are listed.
type AxisSpec struct {
	Kind        types.AxisKind   `yaml:"kind"`
	Initial     string           `yaml:"initial"`
	States      []string         `yaml:"states"`
	Transitions []TransitionSpec `yaml:"transitions"`
}

// Build validates specs and compiles them into axes.
func Build(specs []AxisSpec, l *logger.Logger) ([]*Axis, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("%w: no axes declared", ErrInvalidTable)
	}

	kinds := make(map[types.AxisKind]bool, len(specs))
	axes := make([]*Axis, 0, len(specs))
	for _, spec := range specs {
		kind, err := types.ParseAxisKind(string(spec.Kind))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidTable, err)
		}
		if kinds[kind] {
			return nil, fmt.Errorf("%w: axis %s declared twice", ErrInvalidTable, kind)
		}
		kinds[kind] = true

		axis, err := buildAxis(kind, spec, l)
		if err != nil {
			return nil, err
		}
		axes = append(axes, axis)
	}

	if !kinds[types.AxisMain] {
		return nil, fmt.Errorf("%w: %s axis is required", ErrInvalidTable, types.AxisMain)
	}
	return axes, nil
}

func buildAxis(kind types.AxisKind, spec AxisSpec, l *logger.Logger) (*Axis, error) {
	if len(spec.States) == 0 {
		return nil, fmt.Errorf("%w: %s declares no states", ErrInvalidTable, kind)
	}
	declared := make(map[string]bool, len(spec.States))
	for _, s := range spec.States {
		if s == "" {
			return nil, fmt.Errorf("%w: %s has an empty state name", ErrInvalidTable, kind)
		}
		if declared[s] {
			return nil, fmt.Errorf("%w: %s declares %q twice", ErrInvalidTable, kind, s)
		}
		declared[s] = true
	}
	if !declared[spec.Initial] {
		return nil, fmt.Errorf("%w: %s initial state %q is not declared", ErrInvalidTable, kind, spec.Initial)
	}

	transitions := make([]Transition, 0, len(spec.Transitions))
	for i, ts := range spec.Transitions {
		if !declared[ts.From] {
			return nil, fmt.Errorf("%w: %s transition %d: source %q is not declared", ErrInvalidTable, kind, i, ts.From)
		}
		if !declared[ts.To] {
			return nil, fmt.Errorf("%w: %s transition %d: target %q is not declared", ErrInvalidTable, kind, i, ts.To)
		}
		if ts.From == ts.To {
			return nil, fmt.Errorf("%w: %s transition %d: self-transition on %q", ErrInvalidTable, kind, i, ts.From)
		}

		t := Transition{
			From:      ts.From,
			To:        ts.To,
			GuardName: ts.Guard,
			Negate:    ts.Negate,
			Priority:  ts.Priority,
			event:     eventName(ts.From, ts.To),
			order:     i,
		}
		if ts.Guard != "" {
			g, err := compileGuard(ts.Guard, ts.Args)
			if err != nil {
				return nil, fmt.Errorf("%w: %s transition %d: %v", ErrInvalidTable, kind, i, err)
			}
			t.guard = g
		} else if ts.Negate {
			return nil, fmt.Errorf("%w: %s transition %d: negate without guard", ErrInvalidTable, kind, i)
		}
		transitions = append(transitions, t)
	}

	return newAxis(kind, spec.States, spec.Initial, transitions, l), nil
}

// DefaultDefinition is the built-in decision table.
func DefaultDefinition() []AxisSpec {
	return []AxisSpec{
		{
			Kind:    types.AxisMain,
			Initial: types.MainInit,
			States:  MainStates,
			Transitions: []TransitionSpec{
				{From: types.MainInit, To: types.MainReady},
				{From: types.MainReady, To: types.MainDrive, Guard: GuardHasPath},
				// Vehicle came to rest and the planner dropped the path
				{From: types.MainDrive, To: types.MainReady, Guard: GuardHasPath, Negate: true},
			},
		},
		{
			Kind:    types.AxisBehavior,
			Initial: types.BehaviorLaneFollow,
			States:  BehaviorStates,
			Transitions: []TransitionSpec{
				{From: types.BehaviorLaneFollow, To: types.BehaviorCrossroadInside, Guard: GuardInCrossroad, Priority: 1},
				{From: types.BehaviorLaneFollow, To: types.BehaviorCrossroadApproach, Guard: GuardApproachingCrossroad},
				{From: types.BehaviorLaneFollow, To: types.BehaviorCrossroadApproach, Guard: GuardPathEntersCrossroad, Args: map[string]any{"lookahead": 10}},
				{From: types.BehaviorCrossroadApproach, To: types.BehaviorCrossroadInside, Guard: GuardInCrossroad},
				{From: types.BehaviorCrossroadApproach, To: types.BehaviorLaneFollow, Guard: GuardClearOfCrossroad},
				{From: types.BehaviorCrossroadInside, To: types.BehaviorLaneFollow, Guard: GuardClearOfCrossroad},
			},
		},
		{
			Kind:    types.AxisAcceleration,
			Initial: types.AccelerationStop,
			States:  AccelerationStates,
			Transitions: []TransitionSpec{
				{From: types.AccelerationStop, To: types.AccelerationAccelerate, Guard: GuardSpeedAbove, Args: map[string]any{"kmph": 0.5}},
				{From: types.AccelerationKeep, To: types.AccelerationStop, Guard: GuardSpeedBelow, Args: map[string]any{"kmph": 0.5}, Priority: 1},
				{From: types.AccelerationKeep, To: types.AccelerationAccelerate, Guard: GuardAccelAbove, Args: map[string]any{"mps2": 0.3}},
				{From: types.AccelerationKeep, To: types.AccelerationDecelerate, Guard: GuardAccelBelow, Args: map[string]any{"mps2": -0.3}},
				{From: types.AccelerationAccelerate, To: types.AccelerationStop, Guard: GuardSpeedBelow, Args: map[string]any{"kmph": 0.5}, Priority: 1},
				{From: types.AccelerationAccelerate, To: types.AccelerationDecelerate, Guard: GuardAccelBelow, Args: map[string]any{"mps2": -0.3}},
				{From: types.AccelerationAccelerate, To: types.AccelerationKeep, Guard: GuardAccelBelow, Args: map[string]any{"mps2": 0.3}},
				{From: types.AccelerationDecelerate, To: types.AccelerationStop, Guard: GuardSpeedBelow, Args: map[string]any{"kmph": 0.5}, Priority: 1},
				{From: types.AccelerationDecelerate, To: types.AccelerationAccelerate, Guard: GuardAccelAbove, Args: map[string]any{"mps2": 0.3}},
				{From: types.AccelerationDecelerate, To: types.AccelerationKeep, Guard: GuardAccelAbove, Args: map[string]any{"mps2": -0.3}},
			},
		},
		{
			Kind:    types.AxisSteering,
			Initial: types.SteeringStraight,
			States:  SteeringStates,
			Transitions: []TransitionSpec{
				{From: types.SteeringStraight, To: types.SteeringLeft, Guard: GuardYawRateAbove, Args: map[string]any{"rad_s": 0.05}},
				{From: types.SteeringStraight, To: types.SteeringRight, Guard: GuardYawRateBelow, Args: map[string]any{"rad_s": -0.05}},
				{From: types.SteeringLeft, To: types.SteeringStraight, Guard: GuardYawRateWithin, Args: map[string]any{"rad_s": 0.05}},
				{From: types.SteeringLeft, To: types.SteeringRight, Guard: GuardYawRateBelow, Args: map[string]any{"rad_s": -0.05}},
				{From: types.SteeringRight, To: types.SteeringStraight, Guard: GuardYawRateWithin, Args: map[string]any{"rad_s": 0.05}},
				{From: types.SteeringRight, To: types.SteeringLeft, Guard: GuardYawRateAbove, Args: map[string]any{"rad_s": 0.05}},
			},
		},
	}
}
