package core

import (
	"context"
	"errors"
)

var (
	// ErrMissingContext is returned by a cycle that ran without a state
	// context. The cycle is skipped; the next one retries.
	ErrMissingContext = errors.New("state context is not found")

	// ErrResubscription wraps a transport error raised while rebinding
	// inbound channels after a MAIN state change.
	ErrResubscription = errors.New("resubscription failed")
)

// Fault codes reported on the operator fault stream
const (
	FaultMissingContext = 101
	FaultResubscription = 102
)

// raiseFault reports code once until it is cleared.
func (n *DecisionNode) raiseFault(ctx context.Context, code int, description string) {
	if n.faults[code] {
		return
	}
	if err := n.transport.ReportFault(ctx, code, description); err != nil {
		n.logger.Warnf("Failed to report fault %d: %v", code, err)
		return
	}
	n.faults[code] = true
}

func (n *DecisionNode) clearFault(ctx context.Context, code int) {
	if !n.faults[code] {
		return
	}
	if err := n.transport.ClearFault(ctx, code); err != nil {
		n.logger.Warnf("Failed to clear fault %d: %v", code, err)
		return
	}
	delete(n.faults, code)
}

// ActiveFault reports whether code is currently raised.
func (n *DecisionNode) ActiveFault(code int) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.faults[code]
}
