// Package spatial holds the cross-road regions the decision axes react to.
//
// A region is classified around its center with two radii: the outer scale S
// marks waypoints (and the vehicle) as approaching, the inner scale S/3 marks
// them as inside. Distances are planar; height is ignored because cross-road
// areas are flat map features.
package spatial

import (
	"math"
	"sync"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"decision-maker/internal/types"
)

const (
	// DefaultScale is the outer classification scale in metres.
	DefaultScale = 3.0
	// DefaultFrameID is the frame all regions are expressed in unless the
	// perception input says otherwise.
	DefaultFrameID = "/map"

	innerScaleDivisor = 3.0
	boxHeight         = 0.5
)

type Classification int

const (
	Outside Classification = iota
	Approaching
	Inside
)

func (c Classification) String() string {
	switch c {
	case Inside:
		return "inside"
	case Approaching:
		return "approaching"
	default:
		return "outside"
	}
}

// Area is one cross-road area as delivered by the perception/mapping feed.
type Area struct {
	ID        int           `json:"id"`
	Center    types.Point   `json:"center"`
	Scale     float64       `json:"scale,omitempty"` // overrides the configured scale when > 0
	Waypoints []types.Point `json:"waypoints"`
}

// Perception is one snapshot of the perception/mapping feed.
type Perception struct {
	FrameID string    `json:"frame_id"`
	Stamp   time.Time `json:"stamp"`
	Areas   []Area    `json:"areas"`
}

type Header struct {
	FrameID string    `json:"frame_id"`
	Stamp   time.Time `json:"stamp"`
}

type BoundingBox struct {
	Header     Header      `json:"header"`
	Label      int         `json:"label"`
	Center     types.Point `json:"center"`
	Dimensions types.Point `json:"dimensions"`
}

// Region is a classified cross-road area.
type Region struct {
	ID         int
	Header     Header
	Center     r3.Vec
	OuterScale float64
	InnerScale float64
	Box        BoundingBox

	// Waypoints of the area split by classification, in input order.
	InsideWaypoints      []r3.Vec
	ApproachingWaypoints []r3.Vec
}

// Classify reports how p relates to this region.
func (r Region) Classify(p r3.Vec) Classification {
	return classify(planarDistance(r.Center, p), r.OuterScale)
}

func classify(d, outer float64) Classification {
	switch {
	case d <= outer/innerScaleDivisor:
		return Inside
	case d <= outer:
		return Approaching
	default:
		return Outside
	}
}

func planarDistance(a, b r3.Vec) float64 {
	d := r3.Sub(a, b)
	return math.Hypot(d.X, d.Y)
}

// View is the read-only surface guards evaluate against.
type View interface {
	Regions() []Region
	Classify(p r3.Vec) Classification
}

// Context is the current set of regions. Refresh replaces it wholesale.
type Context struct {
	mu      sync.RWMutex
	scale   float64
	header  Header
	regions []Region
}

func NewContext(scale float64) *Context {
	if scale <= 0 {
		scale = DefaultScale
	}
	return &Context{
		scale:  scale,
		header: Header{FrameID: DefaultFrameID},
	}
}

// Scale returns the configured outer scale.
func (c *Context) Scale() float64 {
	return c.scale
}

// Refresh rebuilds the region set from in. Regions from earlier refreshes are
// dropped, never merged.
func (c *Context) Refresh(in Perception) {
	header := Header{FrameID: in.FrameID, Stamp: in.Stamp}
	if header.FrameID == "" {
		header.FrameID = DefaultFrameID
	}

	regions := make([]Region, 0, len(in.Areas))
	for _, area := range in.Areas {
		regions = append(regions, c.buildRegion(header, area))
	}

	c.mu.Lock()
	c.header = header
	c.regions = regions
	c.mu.Unlock()
}

func (c *Context) buildRegion(header Header, area Area) Region {
	outer := c.scale
	if area.Scale > 0 {
		outer = area.Scale
	}
	center := area.Center.Vec()

	r := Region{
		ID:         area.ID,
		Header:     header,
		Center:     center,
		OuterScale: outer,
		InnerScale: outer / innerScaleDivisor,
		Box: BoundingBox{
			Header:     header,
			Label:      area.ID,
			Center:     area.Center,
			Dimensions: types.Point{X: outer, Y: outer, Z: boxHeight},
		},
	}

	for _, wp := range area.Waypoints {
		p := wp.Vec()
		switch r.Classify(p) {
		case Inside:
			r.InsideWaypoints = append(r.InsideWaypoints, p)
		case Approaching:
			r.ApproachingWaypoints = append(r.ApproachingWaypoints, p)
		}
	}
	return r
}

// Regions returns a copy of the current region slice.
func (c *Context) Regions() []Region {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Region, len(c.regions))
	copy(out, c.regions)
	return out
}

// Header returns the header of the most recent refresh.
func (c *Context) Header() Header {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.header
}

// Classify returns the strongest classification of p over all regions.
func (c *Context) Classify(p r3.Vec) Classification {
	c.mu.RLock()
	defer c.mu.RUnlock()

	best := Outside
	for _, r := range c.regions {
		if cl := r.Classify(p); cl > best {
			best = cl
			if best == Inside {
				break
			}
		}
	}
	return best
}

// CountWaypoints returns how many path waypoints fall in each class.
func (c *Context) CountWaypoints(path []types.Waypoint) (inside, approaching int) {
	for _, wp := range path {
		switch c.Classify(wp.Position.Vec()) {
		case Inside:
			inside++
		case Approaching:
			approaching++
		}
	}
	return inside, approaching
}
