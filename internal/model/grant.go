package model

import (
	"time"

	"github.com/google/uuid"
)

// GrantSource tags what produced a points grant.
type GrantSource string

const (
	GrantSourceOrder  GrantSource = "order"
	GrantSourceReview GrantSource = "review"
	GrantSourceAdmin  GrantSource = "admin"
)

// GrantState is the derived lifecycle position of a grant.
type GrantState string

const (
	GrantStatePending  GrantState = "pending"
	GrantStateReady    GrantState = "ready"
	GrantStateCredited GrantState = "credited"
)

// Grant is a scheduled award of loyalty points. PointsAwarded reaches the
// user's balance only when the grant is credited, and only once.
type Grant struct {
	ID            uuid.UUID   `json:"id" db:"id"`
	UserID        uuid.UUID   `json:"userId" db:"user_id"`
	Source        GrantSource `json:"source" db:"source"`
	SourceRef     string      `json:"sourceRef" db:"source_ref"`
	Reason        string      `json:"reason,omitempty" db:"reason"`
	PointsAwarded int64       `json:"pointsAwarded" db:"points_awarded"`
	Credited      bool        `json:"bonusPointsCredited" db:"credited"`
	ScheduledAt   time.Time   `json:"bonusPointsScheduledAt" db:"scheduled_at"`
	CreditedAt    *time.Time  `json:"bonusPointsCreditedAt,omitempty" db:"credited_at"`
	CreatedAt     time.Time   `json:"createdAt" db:"created_at"`

	// State is filled in for reads that report a grant's position.
	State GrantState `json:"state,omitempty" db:"-"`
}

// StateAt derives the grant's lifecycle position at now.
func (g *Grant) StateAt(now time.Time) GrantState {
	switch {
	case g.Credited:
		return GrantStateCredited
	case !g.ScheduledAt.After(now):
		return GrantStateReady
	default:
		return GrantStatePending
	}
}

// CreditSummary reports the outcome of one crediting run.
type CreditSummary struct {
	Credited int   `json:"credited"`
	Points   int64 `json:"points"`
	Skipped  int   `json:"skipped"`
}

// AdminGrantRequest is the payload for an admin points award.
type AdminGrantRequest struct {
	UserID uuid.UUID `json:"userId" validate:"required"`
	Points int64     `json:"points" validate:"gt=0"`
	Reason string    `json:"reason" validate:"required,max=255"`
}

// ReviewGrantRequest is the payload sent when a review is approved.
type ReviewGrantRequest struct {
	UserID   uuid.UUID `json:"userId" validate:"required"`
	ReviewID string    `json:"reviewId" validate:"required"`
}

// ExtendGrantRequest pushes a grant's eligibility forward.
type ExtendGrantRequest struct {
	Days int `json:"days" validate:"gt=0,lte=365"`
}

// PointsOverview is a user's balance with their grants.
type PointsOverview struct {
	Balance int64   `json:"balance"`
	Grants  []Grant `json:"grants"`
}
