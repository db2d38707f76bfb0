package messaging

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"

	"decision-maker/internal/spatial"
	"decision-maker/internal/types"
)

// Inbound channels
const (
	ChannelCrossroads      = "crossroads"
	ChannelCurrentPose     = "current_pose"
	ChannelCurrentVelocity = "current_velocity"
	ChannelFinalWaypoints  = "final_waypoints"
)

var ErrUnknownChannel = errors.New("unknown channel")

type entry[T any] struct {
	value T
	seq   uint64
}

// Latest holds the most recent value written to it. Writers never block
// readers; Load returns the value with the sequence it was stored under.
type Latest[T any] struct {
	p atomic.Pointer[entry[T]]
}

func (l *Latest[T]) Store(v T) {
	for {
		old := l.p.Load()
		seq := uint64(1)
		if old != nil {
			seq = old.seq + 1
		}
		if l.p.CompareAndSwap(old, &entry[T]{value: v, seq: seq}) {
			return
		}
	}
}

// Load returns the latest value. A zero sequence means nothing was stored yet.
func (l *Latest[T]) Load() (T, uint64) {
	e := l.p.Load()
	if e == nil {
		var zero T
		return zero, 0
	}
	return e.value, e.seq
}

// Pose is the current_pose payload.
type Pose struct {
	Position types.Point `json:"position"`
	Stamp    time.Time   `json:"stamp"`
}

// Velocity is the current_velocity payload.
type Velocity struct {
	Linear       float64   `json:"linear"`       // m/s
	Acceleration float64   `json:"acceleration"` // m/s^2
	YawRate      float64   `json:"yaw_rate"`     // rad/s
	Stamp        time.Time `json:"stamp"`
}

// Path is the final_waypoints payload.
type Path struct {
	Waypoints []types.Waypoint `json:"waypoints"`
}

// Inputs collects the latest inbound message of every channel.
type Inputs struct {
	perception Latest[spatial.Perception]
	pose       Latest[Pose]
	velocity   Latest[Velocity]
	path       Latest[Path]
}

func NewInputs() *Inputs {
	return &Inputs{}
}

// Decode parses payload according to channel and stores it.
func (in *Inputs) Decode(channel string, payload []byte) error {
	switch channel {
	case ChannelCrossroads:
		var p spatial.Perception
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("failed to decode %s: %w", channel, err)
		}
		in.perception.Store(p)
	case ChannelCurrentPose:
		var p Pose
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("failed to decode %s: %w", channel, err)
		}
		in.pose.Store(p)
	case ChannelCurrentVelocity:
		var v Velocity
		if err := json.Unmarshal(payload, &v); err != nil {
			return fmt.Errorf("failed to decode %s: %w", channel, err)
		}
		in.velocity.Store(v)
	case ChannelFinalWaypoints:
		var p Path
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("failed to decode %s: %w", channel, err)
		}
		in.path.Store(p)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownChannel, channel)
	}
	return nil
}

// Perception returns the latest perception snapshot and its sequence.
func (in *Inputs) Perception() (spatial.Perception, uint64) {
	return in.perception.Load()
}

// Telemetry merges the latest pose and velocity. The stamp is the newer of
// the two.
func (in *Inputs) Telemetry() types.Telemetry {
	pose, _ := in.pose.Load()
	vel, _ := in.velocity.Load()

	stamp := pose.Stamp
	if vel.Stamp.After(stamp) {
		stamp = vel.Stamp
	}
	return types.Telemetry{
		Position:     pose.Position,
		Speed:        vel.Linear,
		Acceleration: vel.Acceleration,
		YawRate:      vel.YawRate,
		Stamp:        stamp,
	}
}

func (in *Inputs) Path() []types.Waypoint {
	p, _ := in.path.Load()
	return p.Waypoints
}
