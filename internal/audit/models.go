package audit

import (
	"time"

	"veridoc/internal/domain"
)

// Action identifies what happened. Kept as plain strings so sinks can fan
// out without a registry of types.
type Action string

const (
	ActionDocumentGenerated     Action = "document_generated"
	ActionStabilizationOverflow Action = "stabilization_overflow"
	ActionResolutionFallback    Action = "resolution_fallback"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp   time.Time          `json:"timestamp"`
	IssuerID    string             `json:"issuer_id"`
	Lane        domain.Lane        `json:"lane"`
	Action      Action             `json:"action"`
	ContentHash domain.ContentHash `json:"content_hash,omitempty"`
	NaturalKey  string             `json:"natural_key,omitempty"`
	Reason      string             `json:"reason,omitempty"`
	Detail      string             `json:"detail,omitempty"`
}
