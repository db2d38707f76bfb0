package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"decision-maker/internal/types"
)

func scrape(t *testing.T) string {
	t.Helper()
	srv := NewServer(":0")
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	return rec.Body.String()
}

func TestObserveTransitionExported(t *testing.T) {
	InitAxisState(types.AxisSteering, "Straight", []string{"Straight", "Left", "Right"})
	ObserveTransition(types.AxisSteering, "Straight", "Left")

	body := scrape(t)
	for _, want := range []string{
		`decision_maker_transitions_total{axis="STEERING",from="Straight",to="Left"} 1`,
		`decision_maker_axis_state{axis="STEERING",state="Left"} 1`,
		`decision_maker_axis_state{axis="STEERING",state="Straight"} 0`,
		`decision_maker_axis_state{axis="STEERING",state="Right"} 0`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("missing %q in /metrics output", want)
		}
	}
}

func TestCountersExported(t *testing.T) {
	IncResubscription()
	IncPublishFailure("state_overlay")
	ObserveCycle(150*time.Millisecond, 100*time.Millisecond)

	body := scrape(t)
	for _, want := range []string{
		"decision_maker_resubscriptions_total",
		`decision_maker_publish_failures_total{channel="state_overlay"}`,
		"decision_maker_slow_cycles_total 1",
		"decision_maker_cycle_duration_milliseconds",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("missing %q in /metrics output", want)
		}
	}
}
