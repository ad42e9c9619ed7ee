// Package profiling turns a session's telemetry events into the fixed-shape
// behavioral feature vector consumed by the aura generator.
package profiling

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"ghostauth/internal/telemetry/models"
	dErrors "ghostauth/pkg/domain-errors"
)

// FeatureVector holds the 11 behavioral features of one session. Every field
// is always present; an absent signal is 0.
type FeatureVector struct {
	Battery         float64 `json:"battery"`
	Hesitation      float64 `json:"hesitation"`
	HoverMean       float64 `json:"hover_mean"`
	IntentDrift     float64 `json:"intent_drift"`
	LocationLat     float64 `json:"location_lat"`
	LocationLng     float64 `json:"location_lng"`
	SwitchbackLoops float64 `json:"switchback_loops"`
	TapMean         float64 `json:"tap_mean"`
	TapStd          float64 `json:"tap_std"`
	TimeOfDay       float64 `json:"time_of_day"`
	TremorStd       float64 `json:"tremor_std"`
}

// FeatureNames lists the vector keys in lexicographic order, the order used
// whenever the vector is flattened.
var FeatureNames = []string{
	"battery",
	"hesitation",
	"hover_mean",
	"intent_drift",
	"location_lat",
	"location_lng",
	"switchback_loops",
	"tap_mean",
	"tap_std",
	"time_of_day",
	"tremor_std",
}

// Values flattens the vector in FeatureNames order.
func (f FeatureVector) Values() []float64 {
	return []float64{
		f.Battery,
		f.Hesitation,
		f.HoverMean,
		f.IntentDrift,
		f.LocationLat,
		f.LocationLng,
		f.SwitchbackLoops,
		f.TapMean,
		f.TapStd,
		f.TimeOfDay,
		f.TremorStd,
	}
}

// Map returns the vector keyed by feature name.
func (f FeatureVector) Map() map[string]float64 {
	values := f.Values()
	m := make(map[string]float64, len(values))
	for i, name := range FeatureNames {
		m[name] = values[i]
	}
	return m
}

// Extract computes the feature vector for events. The input slice is not
// modified. Events are put in canonical order first (timestamp ascending,
// ties broken by SortKey) so any permutation of the same events yields the
// same vector.
func Extract(events []models.Event) (FeatureVector, error) {
	if len(events) == 0 {
		return FeatureVector{}, dErrors.New(dErrors.CodeValidation, "no events provided")
	}
	if err := checkOrderable(events); err != nil {
		return FeatureVector{}, err
	}

	sorted := slices.Clone(events)
	slices.SortStableFunc(sorted, func(a, b models.Event) int {
		if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
			return c
		}
		return strings.Compare(a.SortKey(), b.SortKey())
	})

	var (
		fv        FeatureVector
		appOpenAt *models.Event
		firstTap  *models.Event
		pressures []float64
		hovers    []float64
		tremors   []float64
		screens   []string
		batteries []float64
		hours     []float64
	)

	for i := range sorted {
		e := &sorted[i]
		hours = append(hours, float64(e.Timestamp.Hour())+float64(e.Timestamp.Minute())/60)

		if screen, ok := e.Screen(); ok {
			screens = append(screens, screen)
		}

		switch d := e.Details.(type) {
		case models.AppOpenDetails:
			if appOpenAt == nil {
				appOpenAt = e
			}
		case models.TapDetails:
			if firstTap == nil {
				firstTap = e
			}
			if d.Pressure != nil {
				pressures = append(pressures, *d.Pressure)
			}
		case models.HoverDetails:
			if d.Duration != nil {
				hovers = append(hovers, *d.Duration)
			}
		case models.SensorDetails:
			if d.Accelerometer != nil {
				tremors = append(tremors, norm(*d.Accelerometer))
			}
			if d.Gyroscope != nil {
				tremors = append(tremors, norm(*d.Gyroscope))
			}
		case models.LocationDetails:
			if d.Location != nil {
				fv.LocationLat = d.Location.Lat
				fv.LocationLng = d.Location.Lng
			}
		case models.BatteryDetails:
			if d.Battery != nil {
				batteries = append(batteries, *d.Battery)
			}
		}
	}

	if appOpenAt != nil && firstTap != nil {
		fv.Hesitation = secondsBetween(appOpenAt.Timestamp, firstTap.Timestamp)
	}
	fv.TapMean = mean(pressures)
	fv.TapStd = stddev(pressures)
	fv.HoverMean = mean(hovers)
	fv.TremorStd = stddev(tremors)
	fv.IntentDrift = float64(distinct(screens))
	fv.SwitchbackLoops = float64(switchbacks(screens))
	fv.TimeOfDay = mean(hours)
	fv.Battery = mean(batteries)

	for i, v := range fv.Values() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return FeatureVector{}, dErrors.New(dErrors.CodeValidation,
				fmt.Sprintf("feature %s overflowed", FeatureNames[i]))
		}
	}
	return fv, nil
}

// secondsBetween is exact for any pair of instants; time.Time.Sub saturates
// at roughly 292 years.
func secondsBetween(from, to time.Time) float64 {
	return float64(to.Unix()-from.Unix()) + float64(to.Nanosecond()-from.Nanosecond())/1e9
}

// checkOrderable rejects batches whose timestamps have no total order: a
// missing timestamp, or naive timestamps mixed with zone-aware ones.
func checkOrderable(events []models.Event) error {
	var naive, aware bool
	for _, e := range events {
		if e.Timestamp.IsZero() {
			return dErrors.New(dErrors.CodeValidation, "invalid or missing timestamp in events")
		}
		if e.Naive {
			naive = true
		} else {
			aware = true
		}
	}
	if naive && aware {
		return dErrors.New(dErrors.CodeValidation, "timestamps cannot be ordered: mix of naive and zone-aware values")
	}
	return nil
}

// switchbacks counts A→B→A oscillations: positions i ≥ 2 where the screen
// equals the one two steps earlier.
func switchbacks(screens []string) int {
	if len(screens) < 3 {
		return 0
	}
	loops := 0
	for i := 2; i < len(screens); i++ {
		if screens[i] == screens[i-2] {
			loops++
		}
	}
	return loops
}

func distinct(values []string) int {
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		seen[v] = struct{}{}
	}
	return len(seen)
}

func norm(v models.Vector3) float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// mean is sum/n, falling back to a running mean when the sum overflows.
func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	if !math.IsInf(sum, 0) {
		return sum / float64(len(values))
	}
	var m float64
	for i, v := range values {
		m += (v - m) / float64(i+1)
	}
	return m
}

// stddev is the population standard deviation. When squaring overflows,
// deviations are rescaled by the largest one.
func stddev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	var sq, scale float64
	for _, v := range values {
		d := v - m
		sq += d * d
		scale = max(scale, math.Abs(d))
	}
	if !math.IsInf(sq, 0) || math.IsInf(scale, 0) {
		return math.Sqrt(sq / float64(len(values)))
	}
	sq = 0
	for _, v := range values {
		d := (v - m) / scale
		sq += d * d
	}
	return scale * math.Sqrt(sq/float64(len(values)))
}
