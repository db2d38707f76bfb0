package core

import (
	"context"

	"decision-maker/internal/spatial"
	"decision-maker/internal/types"
)

// Transport defines the messaging operations needed by DecisionNode
type Transport interface {
	// Inbound bindings
	Rebind(ctx context.Context, add, remove []string) error

	// Outbound records
	PublishRecord(ctx context.Context, channel string, v any) error
	PublishText(ctx context.Context, channel, text string) error

	// Operator diagnostics
	ReportFault(ctx context.Context, code int, description string) error
	ClearFault(ctx context.Context, code int) error
}

// InputSource defines the latest-value inputs read at the start of a cycle
type InputSource interface {
	Perception() (spatial.Perception, uint64)
	Telemetry() types.Telemetry
	Path() []types.Waypoint
}
