package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mssola/useragent"

	"ghostauth/internal/trust/models"
	"ghostauth/internal/trust/observability"
	dErrors "ghostauth/pkg/domain-errors"
	"ghostauth/pkg/platform/audit"
	"ghostauth/pkg/platform/httputil"
	"ghostauth/pkg/requestcontext"
)

// Service defines the interface for trust scoring.
type Service interface {
	Score(ctx context.Context, req models.ScoreRequest) (*models.ScoreResult, error)
}

// Handler wires the telemetry ingress endpoint to the trust service.
type Handler struct {
	service   Service
	logger    *slog.Logger
	publisher observability.Publisher
}

// New constructs a telemetry handler. publisher may be nil.
func New(service Service, logger *slog.Logger, publisher observability.Publisher) *Handler {
	return &Handler{
		service:   service,
		logger:    logger,
		publisher: publisher,
	}
}

// Register mounts the telemetry endpoint on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/api/telemetry", h.HandleTelemetry)
}

// HandleTelemetry handles POST /api/telemetry requests.
func (h *Handler) HandleTelemetry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	device, err := readDeviceHeaders(r)
	if err != nil {
		h.logger.WarnContext(ctx, "telemetry rejected",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	// A bearer token, when present, must belong to the claimed user.
	if verified := requestcontext.UserID(ctx); verified != "" && verified != device.UserID {
		observability.LogAudit(ctx, h.logger, h.publisher, audit.EventIdentityMismatch, audit.SeverityCritical,
			"user_id", device.UserID,
			"reason", "bearer subject does not match "+HeaderUserID,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "token subject does not match "+HeaderUserID))
		return
	}

	req, ok := httputil.DecodeAndPrepare[TelemetryRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.Score(ctx, models.ScoreRequest{
		UserID:    device.UserID,
		SessionID: req.SessionID,
		Device: models.Device{
			IP:         requestcontext.ClientIP(ctx),
			MacID:      device.MacID,
			DeviceUUID: device.DeviceUUID,
			Label:      DeviceLabel(requestcontext.UserAgent(ctx)),
		},
		Events: req.ParsedEvents(),
	})
	if err != nil {
		level := slog.LevelWarn
		if dErrors.CodeOf(err) == dErrors.CodeInternal {
			level = slog.LevelError
		}
		h.logger.Log(ctx, level, "trust scoring failed",
			"request_id", requestID,
			"user_id", device.UserID,
			"session_id", req.SessionID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "session scored",
		"request_id", requestID,
		"user_id", device.UserID,
		"session_id", req.SessionID,
		"events", len(req.Events),
		"trust_score", result.TrustScore,
		"cold_start", result.ColdStart,
		"adapted", result.Adapted,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	httputil.WriteJSON(w, http.StatusOK, FromResult(result))
}

// DeviceLabel summarizes a User-Agent as "os / browser version". Empty when
// nothing recognisable is found.
func DeviceLabel(ua string) string {
	if strings.TrimSpace(ua) == "" {
		return ""
	}
	parsed := useragent.New(ua)
	name, version := parsed.Browser()
	os := parsed.OS()

	var parts []string
	if os != "" {
		parts = append(parts, os)
	}
	if name != "" {
		parts = append(parts, strings.TrimSpace(fmt.Sprintf("%s %s", name, version)))
	}
	label := strings.Join(parts, " / ")
	if parsed.Mobile() && label != "" {
		label += " (mobile)"
	}
	return label
}
