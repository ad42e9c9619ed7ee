package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	telemetry "ghostauth/internal/telemetry/models"
	dErrors "ghostauth/pkg/domain-errors"
)

// MaxEvents caps the number of events in one batch.
const MaxEvents = 10000

// Device identity headers required on every telemetry batch.
const (
	HeaderUserID     = "X-User-Id"
	HeaderMacID      = "X-Mac-Id"
	HeaderDeviceUUID = "X-Device-Uuid"
)

// TelemetryRequest is the HTTP request body for POST /api/telemetry.
type TelemetryRequest struct {
	SessionID string            `json:"session_id"`
	Events    []json.RawMessage `json:"events"`

	// Parsed values (populated by Validate)
	parsedEvents []telemetry.Event
}

// Validate checks the batch and decodes every event into its typed variant.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *TelemetryRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	// Size validation (fail fast)
	if len(r.Events) > MaxEvents {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("events must contain at most %d items", MaxEvents))
	}
	if len(r.SessionID) > 256 {
		return dErrors.New(dErrors.CodeValidation, "session_id must be at most 256 characters")
	}

	r.SessionID = strings.TrimSpace(r.SessionID)
	if r.SessionID == "" {
		return dErrors.New(dErrors.CodeValidation, "session_id is required")
	}
	if len(r.Events) == 0 {
		return dErrors.New(dErrors.CodeValidation, "events must not be empty")
	}

	r.parsedEvents = make([]telemetry.Event, 0, len(r.Events))
	for i, raw := range r.Events {
		e, err := telemetry.ParseEvent(raw)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeValidation, fmt.Sprintf("events[%d] is invalid", i))
		}
		r.parsedEvents = append(r.parsedEvents, e)
	}
	return nil
}

// ParsedEvents returns the typed events decoded by Validate.
func (r *TelemetryRequest) ParsedEvents() []telemetry.Event {
	return r.parsedEvents
}

// deviceHeaders are the identity headers of one request.
type deviceHeaders struct {
	UserID     string
	MacID      string
	DeviceUUID string
}

func readDeviceHeaders(r *http.Request) (deviceHeaders, error) {
	h := deviceHeaders{
		UserID:     strings.TrimSpace(r.Header.Get(HeaderUserID)),
		MacID:      strings.TrimSpace(r.Header.Get(HeaderMacID)),
		DeviceUUID: strings.TrimSpace(r.Header.Get(HeaderDeviceUUID)),
	}
	for _, f := range []struct{ name, value string }{
		{HeaderUserID, h.UserID},
		{HeaderMacID, h.MacID},
		{HeaderDeviceUUID, h.DeviceUUID},
	} {
		if f.value == "" {
			return deviceHeaders{}, dErrors.New(dErrors.CodeValidation, "missing "+f.name+" header")
		}
	}
	return h, nil
}
