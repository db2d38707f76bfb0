package fsm

import "decision-maker/internal/types"

// Declared state sets of the default tables, in rendering order.
var (
	MainStates = []string{
		types.MainInit,
		types.MainReady,
		types.MainDrive,
	}

	BehaviorStates = []string{
		types.BehaviorLaneFollow,
		types.BehaviorCrossroadApproach,
		types.BehaviorCrossroadInside,
	}

	AccelerationStates = []string{
		types.AccelerationKeep,
		types.AccelerationAccelerate,
		types.AccelerationDecelerate,
		types.AccelerationStop,
	}

	SteeringStates = []string{
		types.SteeringStraight,
		types.SteeringLeft,
		types.SteeringRight,
	}
)

// eventName is the looplab/fsm event backing a from -> to transition. Several
// guarded transitions between the same pair share one event.
func eventName(from, to string) string {
	return from + "->" + to
}
