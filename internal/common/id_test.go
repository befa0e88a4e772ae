package common

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

var idPattern = regexp.MustCompile(`^(job|att|req)_[0-9a-f]{32}$`)

func TestIDFormat(t *testing.T) {
	assert.Regexp(t, idPattern, NewJobID())
	assert.Regexp(t, idPattern, NewAttemptID())
	assert.Regexp(t, idPattern, NewRequestID())
}

func TestIDUniqueness(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		id := NewJobID()
		_, dup := seen[id]
		assert.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
	}
}
