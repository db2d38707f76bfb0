package types

import (
	"fmt"
	"strings"
)

type AxisKind string

const (
	AxisMain         AxisKind = "MAIN"
	AxisBehavior     AxisKind = "BEHAVIOR"
	AxisAcceleration AxisKind = "ACCELERATION"
	AxisSteering     AxisKind = "STEERING"
)

// AxisKinds lists every known axis in the default evaluation order.
var AxisKinds = []AxisKind{AxisMain, AxisBehavior, AxisAcceleration, AxisSteering}

// ParseAxisKind accepts the canonical names case-insensitively, plus the short
// forms used by the published state record ("acc", "str").
func ParseAxisKind(s string) (AxisKind, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "MAIN":
		return AxisMain, nil
	case "BEHAVIOR":
		return AxisBehavior, nil
	case "ACCELERATION", "ACC":
		return AxisAcceleration, nil
	case "STEERING", "STR":
		return AxisSteering, nil
	default:
		return "", fmt.Errorf("unknown axis kind: %q", s)
	}
}

// Default state names per axis
const (
	MainInit  = "Init"
	MainReady = "Ready"
	MainDrive = "Drive"

	BehaviorLaneFollow        = "LaneFollow"
	BehaviorCrossroadApproach = "CrossroadApproach"
	BehaviorCrossroadInside   = "CrossroadInside"

	AccelerationKeep       = "Keep"
	AccelerationAccelerate = "Accelerate"
	AccelerationDecelerate = "Decelerate"
	AccelerationStop       = "Stop"

	SteeringStraight = "Straight"
	SteeringLeft     = "Left"
	SteeringRight    = "Right"
)
