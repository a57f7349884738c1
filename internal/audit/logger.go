// Package audit emits security-relevant events as structured JSON records,
// separate from the diagnostic log stream.
package audit

import (
	"encoding/json"
	"os"
	"time"

	"github.com/rs/zerolog/log"
)

// Event is a single audit record.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	ClientID  string    `json:"client_id,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	Details   string    `json:"details,omitempty"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
}

var auditLogger = log.Output(os.Stdout).With().Logger()

// Log records an audit event. Never log secret material here; codes and
// token values do not belong in the audit trail.
func Log(action, clientID, userID, details string, success bool, err error) {
	event := Event{
		Timestamp: time.Now().UTC(),
		Action:    action,
		ClientID:  clientID,
		UserID:    userID,
		Details:   details,
		Success:   success,
	}
	if err != nil {
		event.Error = err.Error()
	}

	entry, marshalErr := json.Marshal(event)
	if marshalErr != nil {
		// Keep the event even when marshaling fails.
		log.Error().Err(marshalErr).Msg("Failed to marshal audit event to JSON")
		auditLogger.Error().
			Str("action", action).
			Str("client_id", clientID).
			Str("user_id", userID).
			Str("details", details).
			Bool("success", success).
			Err(err).
			Msg("Audit Log (fallback)")
		return
	}
	auditLogger.Log().RawJSON("audit_event", entry).Msg("")
}
