package models

import "time"

// SessionLimits bounds what a single session may upload
type SessionLimits struct {
	MaxFiles      int   `json:"maxFiles"`
	MaxTotalBytes int64 `json:"maxTotalBytes"`
}

// SessionCounts tracks what a session has accepted so far
type SessionCounts struct {
	Files      int   `json:"files"`
	TotalBytes int64 `json:"totalBytes"`
}

// SessionRecord is the persisted per-session state (session.info.json).
// The plaintext access token is never stored, only its digest.
type SessionRecord struct {
	ID        string        `json:"id"`
	CreatedAt time.Time     `json:"createdAt"`
	ExpiresAt time.Time     `json:"expiresAt"`
	SealedAt  *time.Time    `json:"sealedAt"` // nil while the session is open for uploads
	Limits    SessionLimits `json:"limits"`
	Counts    SessionCounts `json:"counts"`
	TokenHash string        `json:"tokenHash"`
}

// Sealed reports whether the one-shot upload phase has completed
func (r *SessionRecord) Sealed() bool {
	return r.SealedAt != nil
}

// Expired reports whether the session has passed its expiry instant.
// Expiry is always measured from creation TTL, never from seal time.
func (r *SessionRecord) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// CreateSessionResponse is returned once at session creation; the token is
// not recoverable afterwards
type CreateSessionResponse struct {
	SID       string    `json:"sid"`
	ExpiresAt time.Time `json:"expiresAt"`
	Token     string    `json:"token"`
}
