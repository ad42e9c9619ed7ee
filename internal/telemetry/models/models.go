package models

import (
	"strconv"
	"strings"
	"time"
)

// EventType enumerates the client telemetry kinds accepted at ingress.
type EventType string

const (
	EventAppOpen  EventType = "app_open"
	EventTap      EventType = "tap"
	EventSwipe    EventType = "swipe"
	EventHover    EventType = "hover"
	EventBack     EventType = "back"
	EventSensor   EventType = "sensor"
	EventLocation EventType = "location"
	EventBattery  EventType = "battery"
)

// eventTypeOrder fixes an ordinal per type; it only breaks timestamp ties.
var eventTypeOrder = map[EventType]int{
	EventAppOpen:  0,
	EventTap:      1,
	EventSwipe:    2,
	EventHover:    3,
	EventBack:     4,
	EventSensor:   5,
	EventLocation: 6,
	EventBattery:  7,
}

// IsValid reports whether t is one of the known event types.
func (t EventType) IsValid() bool {
	_, ok := eventTypeOrder[t]
	return ok
}

// Ordinal returns the tie-break rank of t.
func (t EventType) Ordinal() int {
	return eventTypeOrder[t]
}

// Details is the typed payload of one event. Each event type has exactly one
// implementation; every field on it is optional and nil means "signal absent".
type Details interface {
	EventType() EventType
	sortKey() string
}

type AppOpenDetails struct{}

type TapDetails struct {
	Pressure *float64
	Screen   *string
}

type SwipeDetails struct {
	Screen *string
}

type BackDetails struct {
	Screen *string
}

type HoverDetails struct {
	Duration *float64
}

// Vector3 is a complete 3-axis reading. Partial readings are never materialized.
type Vector3 struct {
	X, Y, Z float64
}

type SensorDetails struct {
	Accelerometer *Vector3
	Gyroscope     *Vector3
}

// Coordinates is only present when both lat and lng were numeric.
type Coordinates struct {
	Lat float64
	Lng float64
}

type LocationDetails struct {
	Location *Coordinates
}

type BatteryDetails struct {
	Battery *float64
}

func (AppOpenDetails) EventType() EventType  { return EventAppOpen }
func (TapDetails) EventType() EventType      { return EventTap }
func (SwipeDetails) EventType() EventType    { return EventSwipe }
func (BackDetails) EventType() EventType     { return EventBack }
func (HoverDetails) EventType() EventType    { return EventHover }
func (SensorDetails) EventType() EventType   { return EventSensor }
func (LocationDetails) EventType() EventType { return EventLocation }
func (BatteryDetails) EventType() EventType  { return EventBattery }

func (AppOpenDetails) sortKey() string { return "" }

func (d TapDetails) sortKey() string {
	return keyJoin(floatKey(d.Pressure), stringKey(d.Screen))
}

func (d SwipeDetails) sortKey() string { return stringKey(d.Screen) }

func (d BackDetails) sortKey() string { return stringKey(d.Screen) }

func (d HoverDetails) sortKey() string { return floatKey(d.Duration) }

func (d SensorDetails) sortKey() string {
	return keyJoin(vectorKey(d.Accelerometer), vectorKey(d.Gyroscope))
}

func (d LocationDetails) sortKey() string {
	if d.Location == nil {
		return "-"
	}
	return keyJoin(formatFloat(d.Location.Lat), formatFloat(d.Location.Lng))
}

func (d BatteryDetails) sortKey() string { return floatKey(d.Battery) }

// Event is a single immutable telemetry event.
type Event struct {
	Type      EventType
	Timestamp time.Time
	// Naive is set when the wire timestamp carried no zone offset; such
	// timestamps are interpreted as UTC but cannot be ordered against aware ones.
	Naive   bool
	Details Details
}

// Screen returns the navigation screen for tap, swipe and back events.
func (e Event) Screen() (string, bool) {
	var screen *string
	switch d := e.Details.(type) {
	case TapDetails:
		screen = d.Screen
	case SwipeDetails:
		screen = d.Screen
	case BackDetails:
		screen = d.Screen
	}
	if screen == nil {
		return "", false
	}
	return *screen, true
}

// SortKey renders the type and typed details canonically. Two events with the
// same timestamp are ordered by this key so extraction never depends on the
// order a client happened to send them in.
func (e Event) SortKey() string {
	var details string
	if e.Details != nil {
		details = e.Details.sortKey()
	}
	return strconv.Itoa(e.Type.Ordinal()) + "|" + details
}

// Batch is one ingress submission for a session.
type Batch struct {
	SessionID string
	Events    []Event
}

func keyJoin(parts ...string) string {
	return strings.Join(parts, ",")
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func floatKey(v *float64) string {
	if v == nil {
		return "-"
	}
	return formatFloat(*v)
}

func stringKey(v *string) string {
	if v == nil {
		return "-"
	}
	return strconv.Quote(*v)
}

func vectorKey(v *Vector3) string {
	if v == nil {
		return "-"
	}
	return formatFloat(v.X) + ":" + formatFloat(v.Y) + ":" + formatFloat(v.Z)
}
