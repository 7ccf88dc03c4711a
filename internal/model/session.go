package model

import "time"

// Session models a row in the `user_sessions` table. A session tracks one
// device's refresh credential for one user: the composite (UserID, DeviceID)
// identifies it, and at most one non-revoked row may exist per pair. A new
// login from the same device rotates the stored refresh token in place; a
// login from a new device inserts a new row. Rows are revoked on logout,
// never deleted.
//
// Fields:
//  ID           – numeric primary key of the row.
//  UserID       – owner of the session.
//  DeviceID     – opaque client-held device identifier.
//  RefreshToken – the current refresh JWT, stored verbatim. Refresh only
//                 succeeds when the presented token matches this value
//                 exactly, which makes rotated or revoked tokens permanently
//                 unusable.
//  UserAgent    – last-seen User-Agent header (diagnostic only).
//  IPAddress    – last-seen client IP (diagnostic only).
//  Revoked      – terminal flag; transitions false -> true and never back.
//  CreatedAt    – when the device first logged in.
//  LastUsedAt   – bumped on every login/refresh from this device.
type Session struct {
	ID           uint64    // user_sessions.id
	UserID       string    // user_sessions.user_id
	DeviceID     string    // user_sessions.device_id
	RefreshToken string    // user_sessions.refresh_token
	UserAgent    string    // user_sessions.user_agent
	IPAddress    string    // user_sessions.ip_address
	Revoked      bool      // user_sessions.revoked
	CreatedAt    time.Time // user_sessions.created_at
	LastUsedAt   time.Time // user_sessions.last_used_at
}
