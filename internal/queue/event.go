// Package queue defines message payloads exchanged over the message broker.
package queue

// Routing keys for auth lifecycle events. Each doubles as the durable queue
// name the event is published to.
const (
	UserRegisteredKey = "auth.user.registered"
	SessionRevokedKey = "auth.session.revoked"
)

// UserRegisteredEvent is published once a new account has been created. It
// carries enough for downstream consumers (welcome email, analytics) without
// querying the primary database. It never contains credential material.
type UserRegisteredEvent struct {
	UserID       string `json:"user_id"`
	Email        string `json:"email"`
	Username     string `json:"username"`
	RegisteredAt string `json:"registered_at"`
}

// SessionRevokedEvent is published when a device session is revoked via
// logout, so security tooling can correlate sign-outs with device activity.
type SessionRevokedEvent struct {
	UserID    string `json:"user_id"`
	DeviceID  string `json:"device_id"`
	RevokedAt string `json:"revoked_at"`
}
