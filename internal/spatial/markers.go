package spatial

import (
	"time"

	"decision-maker/internal/types"
)

const (
	NamespaceCrossroad = "crossroad"
	NamespaceInside    = "inside"

	MarkerSphereList = "sphere_list"
	MarkerActionAdd  = "add"

	crossroadMarkerID       = 1
	crossroadMarkerLifetime = 300 * time.Millisecond
	crossroadMarkerAlpha    = 0.15
	insideMarkerAlpha       = 0.5
)

type Color struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
	A float64 `json:"a"`
}

// Marker is the visualization record for a set of cross-road points. Rendering
// is left to the consumer.
type Marker struct {
	Header      Header        `json:"header"`
	Namespace   string        `json:"ns"`
	ID          int           `json:"id"`
	Type        string        `json:"type"`
	Action      string        `json:"action"`
	Scale       types.Point   `json:"scale"`
	Color       Color         `json:"color"`
	FrameLocked bool          `json:"frame_locked"`
	Lifetime    time.Duration `json:"lifetime"` // zero means forever
	Points      []types.Point `json:"points"`
}

type BoundingBoxArray struct {
	Header Header        `json:"header"`
	Boxes  []BoundingBox `json:"boxes"`
}

// CrossroadMarker is the outer, translucent approach marker sized by the
// configured scale.
func (c *Context) CrossroadMarker() Marker {
	return Marker{
		Header:      Header{FrameID: c.Header().FrameID},
		Namespace:   NamespaceCrossroad,
		ID:          crossroadMarkerID,
		Type:        MarkerSphereList,
		Action:      MarkerActionAdd,
		Scale:       types.Point{X: c.scale, Y: c.scale, Z: boxHeight},
		Color:       Color{R: 1.0, A: crossroadMarkerAlpha},
		FrameLocked: true,
		Lifetime:    crossroadMarkerLifetime,
	}
}

// InsideMarker carries the inside waypoints of every region at one third of
// the outer scale.
func (c *Context) InsideMarker() Marker {
	m := c.CrossroadMarker()
	inner := c.scale / innerScaleDivisor
	m.Namespace = NamespaceInside
	m.Scale = types.Point{X: inner, Y: inner, Z: boxHeight}
	m.Color = Color{R: 1.0, A: insideMarkerAlpha}
	m.Lifetime = 0

	c.mu.RLock()
	defer c.mu.RUnlock()
	m.Points = []types.Point{}
	for _, r := range c.regions {
		for _, p := range r.InsideWaypoints {
			m.Points = append(m.Points, types.PointFromVec(p))
		}
	}
	return m
}

// BoundingBoxes collects every region's box, stamped with the marker header.
func (c *Context) BoundingBoxes() BoundingBoxArray {
	header := c.CrossroadMarker().Header

	c.mu.RLock()
	defer c.mu.RUnlock()
	arr := BoundingBoxArray{
		Header: header,
		Boxes:  make([]BoundingBox, 0, len(c.regions)),
	}
	for _, r := range c.regions {
		box := r.Box
		box.Header = header
		arr.Boxes = append(arr.Boxes, box)
	}
	return arr
}
