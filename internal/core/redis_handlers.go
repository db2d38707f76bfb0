package core

import (
	"context"

	"decision-maker/internal/metrics"
	"decision-maker/internal/state"
	"decision-maker/internal/types"
	"decision-maker/internal/units"
)

// Outbound channels
const (
	ChannelStates                = "states"
	ChannelState                 = "state"
	ChannelStateOverlay          = "state_overlay"
	ChannelTargetVelocityArray   = "target_velocity_array"
	ChannelCrossroadMarker       = "crossroad_marker"
	ChannelCrossroadInsideMarker = "crossroad_inside_marker"
	ChannelCrossroadBBox         = "crossroad_bbox"
)

// VelocityArray is the target speed of the first planning waypoints.
type VelocityArray struct {
	Unit   string    `json:"unit"`
	Values []float64 `json:"values"`
}

func velocityArray(path []types.Waypoint, limit int, unit string) VelocityArray {
	if len(path) > limit {
		path = path[:limit]
	}
	values := make([]float64, len(path))
	for i, wp := range path {
		values[i] = units.ConvertSpeed(wp.Speed, unit)
	}
	return VelocityArray{Unit: unit, Values: values}
}

// publish sends the cycle's outbound records. Failures are logged and
// counted; nothing is retried.
func (n *DecisionNode) publish(ctx context.Context, snap *state.Snapshot, path []types.Waypoint) {
	n.publishRecord(ctx, ChannelStates, snap.Record(n.nodeID, n.now()))
	n.publishText(ctx, ChannelState, snap.Main())
	n.publishText(ctx, ChannelStateOverlay, snap.Text)
	n.publishRecord(ctx, ChannelTargetVelocityArray, velocityArray(path, n.velocityLen, n.velocityUnit))

	if n.markersPending {
		n.publishRecord(ctx, ChannelCrossroadMarker, n.spatial.CrossroadMarker())
		n.publishRecord(ctx, ChannelCrossroadInsideMarker, n.spatial.InsideMarker())
		n.publishRecord(ctx, ChannelCrossroadBBox, n.spatial.BoundingBoxes())
		n.markersPending = false
	}
}

func (n *DecisionNode) publishRecord(ctx context.Context, channel string, v any) {
	if err := n.transport.PublishRecord(ctx, channel, v); err != nil {
		n.logger.Warnf("Failed to publish %s: %v", channel, err)
		metrics.IncPublishFailure(channel)
	}
}

func (n *DecisionNode) publishText(ctx context.Context, channel, text string) {
	if err := n.transport.PublishText(ctx, channel, text); err != nil {
		n.logger.Warnf("Failed to publish %s: %v", channel, err)
		metrics.IncPublishFailure(channel)
	}
}
