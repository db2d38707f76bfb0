package fsm

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"

	"decision-maker/internal/spatial"
	"decision-maker/internal/types"
	"decision-maker/internal/units"
)

// Inputs is everything a guard may read during one evaluation pass. Previous
// holds the axis states of the last completed pass, never the in-progress one.
type Inputs struct {
	Spatial   spatial.View
	Telemetry types.Telemetry
	Path      []types.Waypoint
	Previous  map[types.AxisKind]string
}

// Guard gates whether a transition may fire this pass.
type Guard func(in Inputs) bool

// GuardFactory compiles a guard from its table arguments.
type GuardFactory func(args map[string]any) (Guard, error)

// Guard names
const (
	GuardAlways               = "always"
	GuardInCrossroad          = "in_crossroad"
	GuardApproachingCrossroad = "approaching_crossroad"
	GuardClearOfCrossroad     = "clear_of_crossroad"
	GuardPathEntersCrossroad  = "path_enters_crossroad"
	GuardHasPath              = "has_path"
	GuardSpeedAbove           = "speed_above"
	GuardSpeedBelow           = "speed_below"
	GuardAccelAbove           = "accel_above"
	GuardAccelBelow           = "accel_below"
	GuardYawRateAbove         = "yaw_rate_above"
	GuardYawRateBelow         = "yaw_rate_below"
	GuardYawRateWithin        = "yaw_rate_within"
	GuardAxisInState          = "axis_in_state"
)

var (
	guardsMu sync.RWMutex
	guards   = map[string]GuardFactory{
		GuardAlways:               noArgs(func(Inputs) bool { return true }),
		GuardInCrossroad:          noArgs(vehicleIs(spatial.Inside)),
		GuardApproachingCrossroad: noArgs(vehicleIs(spatial.Approaching)),
		GuardClearOfCrossroad:     noArgs(vehicleIs(spatial.Outside)),
		GuardPathEntersCrossroad:  pathEntersCrossroad,
		GuardHasPath:              hasPath,
		GuardSpeedAbove:           speedCompare(true),
		GuardSpeedBelow:           speedCompare(false),
		GuardAccelAbove:           thresholdGuard("mps2", func(in Inputs) float64 { return in.Telemetry.Acceleration }, true),
		GuardAccelBelow:           thresholdGuard("mps2", func(in Inputs) float64 { return in.Telemetry.Acceleration }, false),
		GuardYawRateAbove:         thresholdGuard("rad_s", func(in Inputs) float64 { return in.Telemetry.YawRate }, true),
		GuardYawRateBelow:         thresholdGuard("rad_s", func(in Inputs) float64 { return in.Telemetry.YawRate }, false),
		GuardYawRateWithin:        yawRateWithin,
		GuardAxisInState:          axisInState,
	}
)

// RegisterGuard adds or replaces a named guard factory. Tables are compiled
// against the registry at build time, so registration must happen first.
func RegisterGuard(name string, factory GuardFactory) {
	guardsMu.Lock()
	defer guardsMu.Unlock()
	guards[name] = factory
}

// GuardNames returns the registered guard names, sorted.
func GuardNames() []string {
	guardsMu.RLock()
	defer guardsMu.RUnlock()
	names := make([]string, 0, len(guards))
	for name := range guards {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func compileGuard(name string, args map[string]any) (Guard, error) {
	guardsMu.RLock()
	factory, ok := guards[name]
	guardsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown guard %q (registered: %s)", name, strings.Join(GuardNames(), ", "))
	}
	g, err := factory(args)
	if err != nil {
		return nil, fmt.Errorf("guard %q: %w", name, err)
	}
	return g, nil
}

func noArgs(g Guard) GuardFactory {
	return func(map[string]any) (Guard, error) { return g, nil }
}

func vehicleIs(want spatial.Classification) Guard {
	return func(in Inputs) bool {
		if in.Spatial == nil {
			return want == spatial.Outside
		}
		return in.Spatial.Classify(in.Telemetry.Position.Vec()) == want
	}
}

func pathEntersCrossroad(args map[string]any) (Guard, error) {
	lookahead, err := argInt(args, "lookahead", 10)
	if err != nil {
		return nil, err
	}
	if lookahead <= 0 {
		return nil, fmt.Errorf("lookahead must be positive, got %d", lookahead)
	}
	return func(in Inputs) bool {
		if in.Spatial == nil {
			return false
		}
		for i, wp := range in.Path {
			if i >= lookahead {
				break
			}
			if in.Spatial.Classify(wp.Position.Vec()) == spatial.Inside {
				return true
			}
		}
		return false
	}, nil
}

func hasPath(args map[string]any) (Guard, error) {
	minLen, err := argInt(args, "min", 1)
	if err != nil {
		return nil, err
	}
	return func(in Inputs) bool { return len(in.Path) >= minLen }, nil
}

// speedCompare takes its threshold in km/h, the unit operators tune in.
func speedCompare(above bool) GuardFactory {
	return func(args map[string]any) (Guard, error) {
		kmph, err := argFloat(args, "kmph")
		if err != nil {
			return nil, err
		}
		return func(in Inputs) bool {
			v := units.MPSToKMPH(in.Telemetry.Speed)
			if above {
				return v > kmph
			}
			return v < kmph
		}, nil
	}
}

func thresholdGuard(key string, value func(Inputs) float64, above bool) GuardFactory {
	return func(args map[string]any) (Guard, error) {
		limit, err := argFloat(args, key)
		if err != nil {
			return nil, err
		}
		return func(in Inputs) bool {
			if above {
				return value(in) > limit
			}
			return value(in) < limit
		}, nil
	}
}

func yawRateWithin(args map[string]any) (Guard, error) {
	limit, err := argFloat(args, "rad_s")
	if err != nil {
		return nil, err
	}
	if limit < 0 {
		return nil, fmt.Errorf("rad_s must not be negative, got %v", limit)
	}
	return func(in Inputs) bool { return math.Abs(in.Telemetry.YawRate) <= limit }, nil
}

func axisInState(args map[string]any) (Guard, error) {
	rawAxis, err := argString(args, "axis")
	if err != nil {
		return nil, err
	}
	kind, err := types.ParseAxisKind(rawAxis)
	if err != nil {
		return nil, err
	}
	state, err := argString(args, "state")
	if err != nil {
		return nil, err
	}
	return func(in Inputs) bool { return in.Previous[kind] == state }, nil
}

func argFloat(args map[string]any, key string) (float64, error) {
	raw, ok := args[key]
	if !ok {
		return 0, fmt.Errorf("missing argument %q", key)
	}
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("argument %q: %w", key, err)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("argument %q: expected number, got %T", key, raw)
	}
}

func argInt(args map[string]any, key string, def int) (int, error) {
	if _, ok := args[key]; !ok {
		return def, nil
	}
	f, err := argFloat(args, key)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("argument %q: expected integer, got %v", key, f)
	}
	return int(f), nil
}

func argString(args map[string]any, key string) (string, error) {
	raw, ok := args[key]
	if !ok {
		return "", fmt.Errorf("missing argument %q", key)
	}
	s, ok := raw.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("argument %q: expected non-empty string, got %v", key, raw)
	}
	return s, nil
}
