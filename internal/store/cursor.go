package store

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// Cursor is the decoded keyset position: the last-seen (created_at, job_id)
// pair. CreatedAt carries exactly the ISO string the store emits, so both
// encode and decode stay at the store's timestamp resolution.
type Cursor struct {
	CreatedAt string
	JobID     string
}

// EncodeCursor produces an opaque page token:
// base64url(utf8("<created_at ISO>|<job_id>")), unpadded.
func EncodeCursor(createdAt, jobID string) string {
	raw := createdAt + "|" + jobID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a page token. Padded and unpadded forms both decode.
func DecodeCursor(token string) (*Cursor, error) {
	trimmed := strings.TrimRight(token, "=")
	raw, err := base64.RawURLEncoding.DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor: %w", err)
	}
	createdAt, jobID, found := strings.Cut(string(raw), "|")
	if !found {
		return nil, fmt.Errorf("invalid cursor: missing separator")
	}
	return &Cursor{CreatedAt: createdAt, JobID: jobID}, nil
}
