package utils

import (
	"strings"

	"github.com/google/uuid"
)

// GenerateContainerID creates a human-readable container id.
// Format: {operation}-{subject}-{8charHexUUID}, e.g. "navigate-SCOUT-1-a3f8e2b1".
// The subject is usually a ship symbol with its agent prefix stripped; it
// may be empty for operations not tied to one ship.
func GenerateContainerID(operation, subject string) string {
	short := uuid.New().String()[:8]
	if subject == "" {
		return operation + "-" + short
	}
	return operation + "-" + stripAgentPrefix(subject) + "-" + short
}

// stripAgentPrefix drops the agent prefix from ship symbols so ids stay
// compact. Ship symbols look like {AGENT}-{TYPE}-{NUMBER}, where the
// agent part may itself contain hyphens; the last two segments are kept.
func stripAgentPrefix(shipSymbol string) string {
	parts := strings.Split(shipSymbol, "-")
	if len(parts) <= 2 {
		return shipSymbol
	}
	return strings.Join(parts[len(parts)-2:], "-")
}
