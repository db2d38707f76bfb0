package state

import (
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"decision-maker/internal/fsm"
	"decision-maker/internal/logger"
	"decision-maker/internal/spatial"
	"decision-maker/internal/types"
)

// flipAxis toggles between two states on every pass.
type flipAxis struct {
	kind  types.AxisKind
	flips int
	seen  []map[types.AxisKind]string
}

func (f *flipAxis) Kind() types.AxisKind { return f.kind }
func (f *flipAxis) States() []string {
	return []string{f.name(0), f.name(1)}
}
func (f *flipAxis) name(parity int) string { return fmt.Sprintf("%s-%d", f.kind, parity) }
func (f *flipAxis) CurrentStateName() string {
	return f.name(f.flips % 2)
}
func (f *flipAxis) Evaluate(in fsm.Inputs) (string, bool) {
	f.seen = append(f.seen, in.Previous)
	f.flips++
	return f.CurrentStateName(), true
}

func newDefaultContext(t *testing.T) *Context {
	t.Helper()
	axes, err := fsm.Build(fsm.DefaultDefinition(), logger.NewNop())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return FromAxes(axes, logger.NewNop())
}

func TestInitialSnapshot(t *testing.T) {
	c := newDefaultContext(t)

	snap := c.Snapshot()
	if snap.Seq != 0 {
		t.Errorf("initial Seq = %d, want 0", snap.Seq)
	}
	want := []AxisState{
		{types.AxisMain, types.MainInit},
		{types.AxisBehavior, types.BehaviorLaneFollow},
		{types.AxisAcceleration, types.AccelerationStop},
		{types.AxisSteering, types.SteeringStraight},
	}
	if diff := cmp.Diff(want, snap.Axes); diff != "" {
		t.Errorf("initial axes mismatch (-want +got):\n%s", diff)
	}
	if c.CurrentStateName(types.AxisMain) != types.MainInit {
		t.Errorf("CurrentStateName(MAIN) = %s", c.CurrentStateName(types.AxisMain))
	}
}

func TestEvaluateInitToReady(t *testing.T) {
	c := newDefaultContext(t)

	snap := c.Evaluate(spatial.NewContext(3), types.Telemetry{}, nil)
	if snap.Main() != types.MainReady {
		t.Fatalf("MAIN = %s, want Ready", snap.Main())
	}
	if snap.Seq != 1 {
		t.Errorf("Seq = %d, want 1", snap.Seq)
	}
	if c.Snapshot() != snap {
		t.Error("Evaluate result is not the published snapshot")
	}
}

func TestCreateStateMessageText(t *testing.T) {
	c := newDefaultContext(t)
	c.Evaluate(nil, types.Telemetry{}, nil)

	want := "MAIN: Ready\nBEHAVIOR: LaneFollow\nACCELERATION: Stop\nSTEERING: Straight\n"
	if got := c.CreateStateMessageText(); got != want {
		t.Errorf("CreateStateMessageText() = %q, want %q", got, want)
	}
}

func TestEvaluateIdempotentWithoutQualifyingGuards(t *testing.T) {
	c := newDefaultContext(t)
	sc := spatial.NewContext(3)
	sc.Refresh(spatial.Perception{Areas: []spatial.Area{{ID: 1, Center: types.Point{X: 100}}}})
	tel := types.Telemetry{Position: types.Point{X: 0}}

	c.Evaluate(sc, tel, nil) // Init -> Ready
	first := c.Evaluate(sc, tel, nil)
	second := c.Evaluate(sc, tel, nil)

	if diff := cmp.Diff(first.Axes, second.Axes); diff != "" {
		t.Errorf("axes changed between identical passes (-first +second):\n%s", diff)
	}
	if first.Text != second.Text {
		t.Errorf("text not byte-identical: %q vs %q", first.Text, second.Text)
	}
}

func TestEvaluateGuardsSeePreviousPassOnly(t *testing.T) {
	a := &flipAxis{kind: types.AxisMain}
	b := &flipAxis{kind: types.AxisSteering}
	c := NewContext([]fsm.StateAxis{a, b}, logger.NewNop())

	c.Evaluate(nil, types.Telemetry{}, nil)
	c.Evaluate(nil, types.Telemetry{}, nil)

	// b is evaluated after a in the same pass but must still see a's state
	// from the previous pass.
	for pass, prev := range b.seen {
		want := fmt.Sprintf("MAIN-%d", pass%2)
		if prev[types.AxisMain] != want {
			t.Errorf("pass %d: STEERING saw MAIN=%q, want %q", pass, prev[types.AxisMain], want)
		}
	}
}

func TestSnapshotAtomicUnderConcurrentReaders(t *testing.T) {
	axes := []fsm.StateAxis{
		&flipAxis{kind: types.AxisMain},
		&flipAxis{kind: types.AxisBehavior},
		&flipAxis{kind: types.AxisAcceleration},
		&flipAxis{kind: types.AxisSteering},
	}
	c := NewContext(axes, logger.NewNop())

	const passes = 2000
	var wg sync.WaitGroup
	stop := make(chan struct{})
	errs := make(chan string, 8)

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap := c.Snapshot()
				parity := int(snap.Seq % 2)
				for _, a := range snap.Axes {
					if a.Name != fmt.Sprintf("%s-%d", a.Kind, parity) {
						select {
						case errs <- fmt.Sprintf("seq %d mixes passes: %+v", snap.Seq, snap.Axes):
						default:
						}
						return
					}
				}
				if snap.Text != renderText(snap.Axes) {
					select {
					case errs <- fmt.Sprintf("seq %d text out of sync", snap.Seq):
					default:
					}
					return
				}
			}
		}()
	}

	for i := 0; i < passes; i++ {
		c.Evaluate(nil, types.Telemetry{}, nil)
	}
	close(stop)
	wg.Wait()
	close(errs)

	for e := range errs {
		t.Error(e)
	}
	if got := c.Snapshot().Seq; got != passes {
		t.Errorf("final Seq = %d, want %d", got, passes)
	}
}

func TestEveryAxisStaysInDeclaredSet(t *testing.T) {
	c := newDefaultContext(t)
	sc := spatial.NewContext(3)

	for i := 0; i < 100; i++ {
		sc.Refresh(spatial.Perception{Areas: []spatial.Area{{ID: i, Center: types.Point{X: float64(i % 13)}}}})
		tel := types.Telemetry{
			Position:     types.Point{X: float64(i % 11)},
			Speed:        float64(i % 5),
			Acceleration: float64(i%3) - 1,
			YawRate:      float64(i%7-3) / 10,
		}
		var path []types.Waypoint
		if i%4 != 0 {
			path = []types.Waypoint{{Position: types.Point{X: float64(i % 13)}}}
		}
		snap := c.Evaluate(sc, tel, path)

		for _, a := range snap.Axes {
			found := false
			for _, s := range c.DeclaredStates(a.Kind) {
				if s == a.Name {
					found = true
				}
			}
			if !found {
				t.Fatalf("pass %d: %s escaped its domain with %q", i, a.Kind, a.Name)
			}
		}
	}
}

func TestKinds(t *testing.T) {
	c := newDefaultContext(t)
	if diff := cmp.Diff(types.AxisKinds, c.Kinds()); diff != "" {
		t.Errorf("Kinds mismatch (-want +got):\n%s", diff)
	}
	if c.DeclaredStates("LATERAL") != nil {
		t.Error("DeclaredStates of unknown axis should be nil")
	}
}
