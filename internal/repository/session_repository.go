package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/snippet-vault/internal/model"
)

// SessionRepo persists per-(user, device) refresh sessions in the
// 'user_sessions' table. The table carries a generated `active` column that
// is 1 while revoked=0 and NULL afterwards, plus a unique key on
// (user_id, device_id, active). MySQL ignores NULLs in unique keys, so any
// number of revoked rows may pile up per device while at most one active row
// can exist — and the insert below can rely on the key for atomic rotation.
type SessionRepo struct{ DB *sql.DB }

func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{DB: db} }

// UpsertActive rotates the active session row for (userID, deviceID) or
// inserts one if none exists. The single INSERT .. ON DUPLICATE KEY UPDATE
// statement is atomic under the unique (user_id, device_id, active) key, so
// two concurrent logins from the same device can never produce two active
// rows or interleave into a lost update; the row ends up holding exactly one
// of the competing refresh tokens.
func (r *SessionRepo) UpsertActive(ctx context.Context, userID, deviceID, refreshToken, userAgent, ipAddress string) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO user_sessions (user_id, device_id, refresh_token, user_agent, ip_address)
		 VALUES (?,?,?,?,?)
		 ON DUPLICATE KEY UPDATE
		   refresh_token=VALUES(refresh_token),
		   user_agent=VALUES(user_agent),
		   ip_address=VALUES(ip_address),
		   last_used_at=NOW()`,
		userID, deviceID, refreshToken, userAgent, ipAddress)
	return err
}

// FindActive returns the session for (userID, deviceID) only when it is not
// revoked and stores exactly the presented refresh token. This is the replay
// guard: once the token is rotated or the session revoked, a stale refresh
// token can never match again. sql.ErrNoRows means no such session.
func (r *SessionRepo) FindActive(ctx context.Context, userID, deviceID, refreshToken string) (model.Session, error) {
	var s model.Session
	var ua, ip sql.NullString
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, user_id, device_id, refresh_token, user_agent, ip_address, revoked, created_at, last_used_at
		   FROM user_sessions
		  WHERE user_id=? AND device_id=? AND refresh_token=? AND revoked=0
		  LIMIT 1`,
		userID, deviceID, refreshToken).
		Scan(&s.ID, &s.UserID, &s.DeviceID, &s.RefreshToken, &ua, &ip, &s.Revoked, &s.CreatedAt, &s.LastUsedAt)
	if err != nil {
		return model.Session{}, err
	}
	s.UserAgent = ua.String
	s.IPAddress = ip.String
	return s, nil
}

// TouchLastUsed bumps last_used_at for the active (userID, deviceID) row.
// Called on refresh; a no-op when the row has gone away in the meantime.
func (r *SessionRepo) TouchLastUsed(ctx context.Context, userID, deviceID string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE user_sessions SET last_used_at=NOW() WHERE user_id=? AND device_id=? AND revoked=0",
		userID, deviceID)
	return err
}

// Revoke marks the (userID, deviceID) session revoked. Idempotent: revoking
// an already-revoked or missing session is not an error, so logout always
// succeeds even without a prior session.
func (r *SessionRepo) Revoke(ctx context.Context, userID, deviceID string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE user_sessions SET revoked=1 WHERE user_id=? AND device_id=? AND revoked=0",
		userID, deviceID)
	return err
}

// ListActiveForUser returns all non-revoked sessions for a user, most
// recently used first. Backs the device-management listing.
func (r *SessionRepo) ListActiveForUser(ctx context.Context, userID string) ([]model.Session, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, user_id, device_id, refresh_token, user_agent, ip_address, revoked, created_at, last_used_at
		   FROM user_sessions
		  WHERE user_id=? AND revoked=0
		  ORDER BY last_used_at DESC`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Session
	for rows.Next() {
		var s model.Session
		var ua, ip sql.NullString
		if err := rows.Scan(&s.ID, &s.UserID, &s.DeviceID, &s.RefreshToken, &ua, &ip, &s.Revoked, &s.CreatedAt, &s.LastUsedAt); err != nil {
			return nil, err
		}
		s.UserAgent = ua.String
		s.IPAddress = ip.String
		out = append(out, s)
	}
	return out, rows.Err()
}
