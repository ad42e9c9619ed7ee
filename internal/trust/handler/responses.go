package handler

import "ghostauth/internal/trust/models"

// TelemetryResponse is the HTTP response body for POST /api/telemetry.
type TelemetryResponse struct {
	AuraHash   string `json:"aura_hash"`
	TrustScore int    `json:"trust_score"`
}

func FromResult(res *models.ScoreResult) *TelemetryResponse {
	return &TelemetryResponse{
		AuraHash:   res.AuraHash,
		TrustScore: res.TrustScore,
	}
}
