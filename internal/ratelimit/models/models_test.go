package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeniedRoundsRetryAfterUp(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	r := Denied(10, now.Add(1500*time.Millisecond), now)
	assert.False(t, r.Allowed)
	assert.Equal(t, 10, r.Limit)
	assert.Equal(t, 2, r.RetryAfter)

	assert.Equal(t, 0, Denied(10, now.Add(-time.Second), now).RetryAfter)
}

func TestNewIPRateLimitKey(t *testing.T) {
	assert.Equal(t, "ip:2001_db8__1", NewIPRateLimitKey("2001:db8::1"))
}
