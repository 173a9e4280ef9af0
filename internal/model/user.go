package model

import (
	"time"

	"github.com/google/uuid"
)

// User is a registered customer. Identity lives with the external provider;
// this record only carries what the ledger needs.
type User struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Email       string    `json:"email" db:"email"`
	Name        string    `json:"name" db:"name"`
	BonusPoints int64     `json:"bonusPoints" db:"bonus_points"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}
