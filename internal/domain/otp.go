package domain

import (
	"time"
)

// OtpRequest is a single issued one-time code. Codes are single-use: once
// Used is set, or ExpiresAt has passed, verification always fails.
type OtpRequest struct {
	ID           int64
	Identifier   string // normalized phone or email
	Code         string // 6 digits
	CreatedAt    time.Time
	ExpiresAt    time.Time
	Used         bool
	AttemptCount int
	UserID       *int64 // user matched at send time, if any
}

func (o *OtpRequest) Expired(now time.Time) bool {
	return !now.Before(o.ExpiresAt)
}

// OtpRateLimit is per-identifier throttle state. Once BlockedUntil is set,
// every send fails until it elapses regardless of the window count.
type OtpRateLimit struct {
	Identifier      string
	RequestCount    int
	WindowStartedAt time.Time
	BlockedUntil    *time.Time
}

func (r *OtpRateLimit) Blocked(now time.Time) bool {
	return r.BlockedUntil != nil && r.BlockedUntil.After(now)
}
