package types

import (
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

// Point is the wire form of a position. Fields are metres in the map frame.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

func (p Point) Vec() r3.Vec {
	return r3.Vec{X: p.X, Y: p.Y, Z: p.Z}
}

func PointFromVec(v r3.Vec) Point {
	return Point{X: v.X, Y: v.Y, Z: v.Z}
}

// Telemetry is the vehicle kinematic state read by guard predicates.
type Telemetry struct {
	Position     Point     `json:"position"`
	Speed        float64   `json:"speed"`        // m/s
	Acceleration float64   `json:"acceleration"` // m/s^2
	YawRate      float64   `json:"yaw_rate"`     // rad/s, positive turns left
	Stamp        time.Time `json:"stamp"`
}

// Waypoint is one element of the planning path.
type Waypoint struct {
	Position Point   `json:"position"`
	Speed    float64 `json:"speed"` // m/s
}
