package model

import "time"

// Subscription plan tiers. Every user gets a `free` row at registration;
// paid tiers are set by the billing integration which lives outside this
// service.
const (
	PlanFree   = "free"
	PlanPro    = "pro"
	PlanHacker = "hacker"
)

// Subscription statuses as reported by billing.
const (
	SubStatusActive     = "active"
	SubStatusCanceled   = "canceled"
	SubStatusIncomplete = "incomplete"
	SubStatusPastDue    = "past_due"
	SubStatusUnpaid     = "unpaid"
)

// Subscription models a row in the `subscriptions` table. The auth core
// reads it per request to attach entitlement state; it only ever writes the
// default row created alongside a new user.
//
// Fields:
//  ID        – numeric primary key.
//  UserID    – owner of the subscription (one row per user).
//  Plan      – one of the Plan* constants.
//  Status    – one of the SubStatus* constants.
//  EndsAt    – when the current period ends (nil for open-ended).
//  CreatedAt – timestamp of creation.
//  UpdatedAt – timestamp of last update.
type Subscription struct {
	ID        uint64     // subscriptions.id
	UserID    string     // subscriptions.user_id
	Plan      string     // subscriptions.plan
	Status    string     // subscriptions.status
	EndsAt    *time.Time // subscriptions.ends_at (nullable)
	CreatedAt time.Time  // subscriptions.created_at
	UpdatedAt time.Time  // subscriptions.updated_at
}
