package common

import (
	"encoding/hex"

	"github.com/google/uuid"
)

// newID generates an identifier with the given prefix followed by
// 32 lowercase hex characters (uuid bytes, no dashes).
func newID(prefix string) string {
	u := uuid.New()
	return prefix + "_" + hex.EncodeToString(u[:])
}

// NewJobID generates a unique job ID with the "job_" prefix
func NewJobID() string {
	return newID("job")
}

// NewAttemptID generates a unique attempt ID with the "att_" prefix
func NewAttemptID() string {
	return newID("att")
}

// NewRequestID generates a unique request ID with the "req_" prefix
func NewRequestID() string {
	return newID("req")
}
