package model

import "time"

// LeaseLock is one row per job name; row existence means the lease is
// held. A lease whose expires_at is in the past is abandoned and may be
// reclaimed by any caller. The lease token is a fencing token: release
// only succeeds for the holder that acquired it.
type LeaseLock struct {
	JobName    string    `db:"job_name" json:"job_name"`
	LeaseToken string    `db:"lease_token" json:"lease_token"`
	AcquiredAt time.Time `db:"acquired_at" json:"acquired_at"`
	ExpiresAt  time.Time `db:"expires_at" json:"expires_at"`
}

func (l *LeaseLock) Expired(now time.Time) bool {
	return !l.ExpiresAt.After(now)
}
