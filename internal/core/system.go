package core

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"decision-maker/internal/logger"
	"decision-maker/internal/metrics"
	"decision-maker/internal/spatial"
	"decision-maker/internal/state"
	"decision-maker/internal/types"
	"decision-maker/internal/units"
)

const (
	DefaultPeriod       = 100 * time.Millisecond
	MaxVelocityArrayLen = 10
	DefaultVelocityUnit = units.KMPH
)

type Options struct {
	Period           time.Duration
	Plan             SubscriptionPlan
	VelocityArrayLen int
	VelocityUnit     string
	// NodeID tags published records; a random one is generated when empty.
	NodeID string
}

// DecisionNode drives the decision cycle: read inputs, evaluate the axes,
// rewire inbound bindings when MAIN changes, publish.
type DecisionNode struct {
	mu        sync.Mutex
	transport Transport
	inputs    InputSource
	spatial   *spatial.Context
	stateCtx  *state.Context
	logger    *logger.Logger

	plan         SubscriptionPlan
	period       time.Duration
	velocityLen  int
	velocityUnit string
	nodeID       string
	now          func() time.Time

	last            *state.Snapshot
	bound           []string
	boundMain       string
	perceptionSeq   uint64
	markersPending  bool
	started         bool
	resubscriptions int
	faults          map[int]bool
}

func NewDecisionNode(transport Transport, inputs InputSource, sc *spatial.Context, stateCtx *state.Context, opts Options, l *logger.Logger) *DecisionNode {
	if opts.Period <= 0 {
		opts.Period = DefaultPeriod
	}
	if opts.VelocityArrayLen <= 0 || opts.VelocityArrayLen > MaxVelocityArrayLen {
		opts.VelocityArrayLen = MaxVelocityArrayLen
	}
	if !units.IsValid(opts.VelocityUnit) {
		opts.VelocityUnit = DefaultVelocityUnit
	}
	if opts.NodeID == "" {
		opts.NodeID = uuid.NewString()
	}
	if sc == nil {
		sc = spatial.NewContext(spatial.DefaultScale)
	}

	n := &DecisionNode{
		transport:    transport,
		inputs:       inputs,
		spatial:      sc,
		stateCtx:     stateCtx,
		logger:       l.WithTag("DecisionNode"),
		plan:         opts.Plan,
		period:       opts.Period,
		velocityLen:  opts.VelocityArrayLen,
		velocityUnit: opts.VelocityUnit,
		nodeID:       opts.NodeID,
		now:          time.Now,
		faults:       make(map[int]bool),
	}
	if stateCtx != nil {
		n.last = stateCtx.Snapshot()
	}
	return n
}

// Start wires the inbound bindings for the initial MAIN state. If it is
// never called, the first RunCycle does the initial binding itself.
func (n *DecisionNode) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	var main string
	if n.stateCtx != nil {
		main = n.stateCtx.CurrentStateName(types.AxisMain)
	}
	n.logger.Infof("Starting decision node %s in MAIN state %q", n.nodeID, main)
	if err := n.resubscribe(ctx, main); err != nil {
		return err
	}
	n.started = true
	return nil
}

// SetStateContext swaps the state context. nil is allowed; cycles then
// fail with ErrMissingContext until a context is set again.
func (n *DecisionNode) SetStateContext(sc *state.Context) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.stateCtx = sc
	if sc != nil {
		n.last = sc.Snapshot()
	}
}

// Snapshot returns the last snapshot this node evaluated or adopted.
func (n *DecisionNode) Snapshot() *state.Snapshot {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.last
}

// Resubscriptions counts how many MAIN changes triggered the rebind
// protocol successfully.
func (n *DecisionNode) Resubscriptions() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.resubscriptions
}

func (n *DecisionNode) NodeID() string {
	return n.nodeID
}

// RunCycle runs one decision cycle. Each input is read once, so the
// evaluation and the published records see the same values.
func (n *DecisionNode) RunCycle(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.stateCtx == nil {
		n.logger.Errorf("state context is not found")
		metrics.IncMissingContext()
		n.raiseFault(ctx, FaultMissingContext, "state context is not found")
		return ErrMissingContext
	}
	n.clearFault(ctx, FaultMissingContext)

	perception, seq := n.inputs.Perception()
	telemetry := n.inputs.Telemetry()
	path := n.inputs.Path()

	if n.refreshSpatial(perception, seq) {
		inside, approaching := n.spatial.CountWaypoints(path)
		n.logger.Debugf("Perception %d: %d waypoints inside, %d approaching", seq, inside, approaching)
	}

	snap := n.stateCtx.Evaluate(n.spatial, telemetry, path)
	change := state.Diff(n.last, snap)
	n.last = snap
	if len(change.Changed) > 0 {
		n.logger.Debugf("Axes changed: %v", change.Changed)
	}
	if change.MainChanged {
		n.logger.Infof("MAIN state changed: %s -> %s", change.PreviousMain, change.CurrentMain)
	}

	// Bindings must match MAIN before anything is published. A failed
	// rebind leaves boundMain behind so the next cycle retries.
	switch {
	case !n.started:
		if err := n.resubscribe(ctx, snap.Main()); err != nil {
			return err
		}
		n.started = true
	case snap.Main() != n.boundMain:
		if err := n.resubscribe(ctx, snap.Main()); err != nil {
			return err
		}
		n.resubscriptions++
		metrics.IncResubscription()
	default:
		// MAIN may have returned to the bound state after a failed rebind.
		n.clearFault(ctx, FaultResubscription)
	}

	n.publish(ctx, snap, path)
	return nil
}

// refreshSpatial rebuilds the regions when a new perception arrived.
func (n *DecisionNode) refreshSpatial(perception spatial.Perception, seq uint64) bool {
	if seq == 0 || seq == n.perceptionSeq {
		metrics.IncStaleInput()
		return false
	}
	n.spatial.Refresh(perception)
	n.perceptionSeq = seq
	n.markersPending = true
	return true
}

// Run executes cycles at the configured period until ctx is cancelled.
// Cancellation is only observed between cycles.
func (n *DecisionNode) Run(ctx context.Context) error {
	n.logger.Infof("Running decision cycle every %s", n.period)

	ticker := time.NewTicker(n.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			n.logger.Infof("Context cancelled, stopping decision cycle")
			return nil
		case <-ticker.C:
		}

		start := time.Now()
		if err := n.RunCycle(context.WithoutCancel(ctx)); err != nil {
			n.logger.Warnf("Cycle failed: %v", err)
		}
		elapsed := time.Since(start)
		metrics.ObserveCycle(elapsed, n.period)
		if elapsed > n.period {
			n.logger.Warnf("Cycle took %s, longer than period %s", elapsed, n.period)
		}
	}
}
