package core

import (
	"strings"

	"github.com/google/uuid"
)

const provisionalChannelPrefix = "local-"

// NewCorrelationID returns a client-generated key carried through a remote call
// so the authoritative copy can be matched to its optimistic entry.
func NewCorrelationID() string {
	return uuid.NewString()
}

// ProvisionalChannelID names a channel that has not been confirmed by the server.
func ProvisionalChannelID(correlationID string) string {
	return provisionalChannelPrefix + correlationID
}

// IsProvisionalChannelID reports whether id was produced by ProvisionalChannelID.
func IsProvisionalChannelID(id string) bool {
	return strings.HasPrefix(id, provisionalChannelPrefix)
}
