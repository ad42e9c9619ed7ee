package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"time"

	dErrors "ghostauth/pkg/domain-errors"
)

// wireEvent is the loosely-typed shape clients send.
type wireEvent struct {
	EventType string                     `json:"event_type"`
	Timestamp json.RawMessage            `json:"timestamp"`
	Details   map[string]json.RawMessage `json:"details"`
}

// naiveLayouts are accepted timestamp layouts without a zone offset.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
}

// ParseEvent decodes one wire event into its typed variant. Unknown event
// types and unparseable timestamps are validation errors; details fields that
// are missing or of the wrong JSON type are treated as an absent signal.
func ParseEvent(raw json.RawMessage) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(raw, &w); err != nil {
		return Event{}, dErrors.Wrap(err, dErrors.CodeValidation, "event is not a JSON object")
	}

	t := EventType(w.EventType)
	if !t.IsValid() {
		return Event{}, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown event_type %q", w.EventType))
	}

	ts, naive, err := ParseTimestamp(w.Timestamp)
	if err != nil {
		return Event{}, err
	}

	return Event{
		Type:      t,
		Timestamp: ts,
		Naive:     naive,
		Details:   parseDetails(t, w.Details),
	}, nil
}

// ParseTimestamp accepts RFC 3339 strings (zone-aware), ISO-8601 strings
// without an offset (naive, read as UTC) and numeric unix seconds (aware).
func ParseTimestamp(raw json.RawMessage) (time.Time, bool, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}, false, dErrors.New(dErrors.CodeValidation, "timestamp is required")
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return t, false, nil
		}
		for _, layout := range naiveLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true, nil
			}
		}
		return time.Time{}, false, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("invalid timestamp %q", s))
	}

	var secs float64
	if err := json.Unmarshal(raw, &secs); err == nil {
		if math.IsNaN(secs) || secs < math.MinInt64 || secs >= math.MaxInt64 {
			return time.Time{}, false, dErrors.New(dErrors.CodeValidation, "unix timestamp out of range")
		}
		whole, frac := math.Modf(secs)
		return time.Unix(int64(whole), int64(frac*1e9)).UTC(), false, nil
	}
	return time.Time{}, false, dErrors.New(dErrors.CodeValidation, "timestamp must be a string or a number")
}

func parseDetails(t EventType, d map[string]json.RawMessage) Details {
	switch t {
	case EventTap:
		return TapDetails{Pressure: numberField(d, "pressure"), Screen: screenField(d)}
	case EventSwipe:
		return SwipeDetails{Screen: screenField(d)}
	case EventBack:
		return BackDetails{Screen: screenField(d)}
	case EventHover:
		return HoverDetails{Duration: numberField(d, "duration")}
	case EventSensor:
		return SensorDetails{
			Accelerometer: vectorField(d, "accelerometer"),
			Gyroscope:     vectorField(d, "gyroscope"),
		}
	case EventLocation:
		return LocationDetails{Location: coordinatesField(d)}
	case EventBattery:
		return BatteryDetails{Battery: numberField(d, "battery")}
	default:
		return AppOpenDetails{}
	}
}

func isNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

func asNumber(raw json.RawMessage) (float64, bool) {
	if isNull(raw) {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, false
	}
	return f, true
}

func numberField(d map[string]json.RawMessage, key string) *float64 {
	f, ok := asNumber(d[key])
	if !ok {
		return nil
	}
	return &f
}

// screenField keeps string screens verbatim; other non-null JSON values are
// identified by their compact encoding.
func screenField(d map[string]json.RawMessage) *string {
	raw, ok := d["screen"]
	if !ok || isNull(raw) {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return &s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil
	}
	s = buf.String()
	return &s
}

func objectField(d map[string]json.RawMessage, key string) map[string]json.RawMessage {
	raw, ok := d[key]
	if !ok || isNull(raw) {
		return nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil
	}
	return obj
}

func vectorField(d map[string]json.RawMessage, key string) *Vector3 {
	obj := objectField(d, key)
	if obj == nil {
		return nil
	}
	x, okX := asNumber(obj["x"])
	y, okY := asNumber(obj["y"])
	z, okZ := asNumber(obj["z"])
	if !okX || !okY || !okZ {
		return nil
	}
	return &Vector3{X: x, Y: y, Z: z}
}

func coordinatesField(d map[string]json.RawMessage) *Coordinates {
	obj := objectField(d, "location")
	if obj == nil {
		return nil
	}
	lat, okLat := asNumber(obj["lat"])
	lng, okLng := asNumber(obj["lng"])
	if !okLat || !okLng {
		return nil
	}
	return &Coordinates{Lat: lat, Lng: lng}
}
