package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/snippet-vault/internal/model"
)

// SubscriptionRepo reads entitlement state from the 'subscriptions' table.
// The auth core resolves it fresh on every gated request; nothing is cached
// here.
type SubscriptionRepo struct{ DB *sql.DB }

func NewSubscriptionRepo(db *sql.DB) *SubscriptionRepo { return &SubscriptionRepo{DB: db} }

// GetByUserID returns the user's subscription row. sql.ErrNoRows indicates
// a user without a subscription, which should not happen since registration
// seeds a free row, but callers treat it as an internal inconsistency rather
// than an auth failure.
func (r *SubscriptionRepo) GetByUserID(ctx context.Context, userID string) (model.Subscription, error) {
	var s model.Subscription
	var ends sql.NullTime
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, user_id, plan, status, ends_at, created_at, updated_at FROM subscriptions WHERE user_id=? LIMIT 1",
		userID).Scan(&s.ID, &s.UserID, &s.Plan, &s.Status, &ends, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return model.Subscription{}, err
	}
	if ends.Valid {
		t := ends.Time
		s.EndsAt = &t
	}
	return s, nil
}
