package messaging

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"decision-maker/internal/logger"
	"decision-maker/internal/types"
)

func TestLatestStoreLoad(t *testing.T) {
	var l Latest[int]

	if v, seq := l.Load(); v != 0 || seq != 0 {
		t.Errorf("empty Load() = %d, %d", v, seq)
	}

	l.Store(7)
	l.Store(9)
	v, seq := l.Load()
	if v != 9 || seq != 2 {
		t.Errorf("Load() = %d, %d, want 9, 2", v, seq)
	}
}

func TestLatestConcurrentWriters(t *testing.T) {
	var l Latest[int]
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				l.Store(i)
			}
		}()
	}
	wg.Wait()

	if _, seq := l.Load(); seq != 2000 {
		t.Errorf("seq = %d, want 2000", seq)
	}
}

func TestDecodePerception(t *testing.T) {
	in := NewInputs()
	payload := `{"frame_id":"/map","areas":[{"id":4,"center":{"x":1,"y":2,"z":0},"scale":5,"waypoints":[{"x":1,"y":2.5,"z":0}]}]}`

	if err := in.Decode(ChannelCrossroads, []byte(payload)); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	p, seq := in.Perception()
	if seq != 1 {
		t.Errorf("seq = %d, want 1", seq)
	}
	if len(p.Areas) != 1 || p.Areas[0].ID != 4 || p.Areas[0].Scale != 5 {
		t.Errorf("areas = %+v", p.Areas)
	}
	if diff := cmp.Diff([]types.Point{{X: 1, Y: 2.5}}, p.Areas[0].Waypoints); diff != "" {
		t.Errorf("waypoints mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeTelemetryMerge(t *testing.T) {
	in := NewInputs()
	early := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	late := early.Add(50 * time.Millisecond)

	pose := `{"position":{"x":3,"y":4,"z":0},"stamp":"` + early.Format(time.RFC3339Nano) + `"}`
	vel := `{"linear":5.5,"acceleration":0.4,"yaw_rate":-0.1,"stamp":"` + late.Format(time.RFC3339Nano) + `"}`
	if err := in.Decode(ChannelCurrentPose, []byte(pose)); err != nil {
		t.Fatal(err)
	}
	if err := in.Decode(ChannelCurrentVelocity, []byte(vel)); err != nil {
		t.Fatal(err)
	}

	want := types.Telemetry{
		Position:     types.Point{X: 3, Y: 4},
		Speed:        5.5,
		Acceleration: 0.4,
		YawRate:      -0.1,
		Stamp:        late,
	}
	if diff := cmp.Diff(want, in.Telemetry()); diff != "" {
		t.Errorf("telemetry mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodePath(t *testing.T) {
	in := NewInputs()
	if in.Path() != nil {
		t.Error("path should be empty before the first message")
	}
	payload := `{"waypoints":[{"position":{"x":1,"y":0,"z":0},"speed":2},{"position":{"x":2,"y":0,"z":0},"speed":3}]}`
	if err := in.Decode(ChannelFinalWaypoints, []byte(payload)); err != nil {
		t.Fatal(err)
	}
	if got := len(in.Path()); got != 2 {
		t.Errorf("len(Path()) = %d, want 2", got)
	}
}

func TestDecodeErrors(t *testing.T) {
	in := NewInputs()

	if err := in.Decode("vehicle", []byte(`{}`)); !errors.Is(err, ErrUnknownChannel) {
		t.Errorf("unknown channel error = %v", err)
	}
	if err := in.Decode(ChannelCurrentPose, []byte(`{not json`)); err == nil {
		t.Error("expected decode error")
	}
	if _, seq := in.Perception(); seq != 0 {
		t.Error("failed decode must not store")
	}
}

func TestDispatchDropsBadPayloads(t *testing.T) {
	in := NewInputs()
	r := NewRedisClient("127.0.0.1:0", 0, 0, in, logger.NewNop())

	r.dispatch(ChannelCurrentVelocity, `{"linear":`)
	r.dispatch("unknown", `{}`)
	r.dispatch(ChannelCurrentVelocity, `{"linear":1.5}`)

	if got := in.Telemetry().Speed; got != 1.5 {
		t.Errorf("Speed = %v, want 1.5", got)
	}
}

func TestRebindBeforeConnect(t *testing.T) {
	r := NewRedisClient("127.0.0.1:0", 0, 0, NewInputs(), logger.NewNop())
	if err := r.Rebind(context.Background(), []string{ChannelCrossroads}, nil); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Rebind() = %v, want ErrNotConnected", err)
	}
	if got := r.Bound(); len(got) != 0 {
		t.Errorf("Bound() = %v after a rejected rebind, want empty", got)
	}
	if err := r.Listen(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Listen() = %v, want ErrNotConnected", err)
	}
}
