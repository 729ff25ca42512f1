package model

import (
	"time"

	"github.com/google/uuid"
)

type ReviewFlagStatus string

const (
	ReviewFlagOpen      ReviewFlagStatus = "open"
	ReviewFlagUpheld    ReviewFlagStatus = "upheld"
	ReviewFlagDismissed ReviewFlagStatus = "dismissed"
)

// ReviewFlag is a moderation flag raised against a contractor review. Only
// the status-transition-with-notes surface lives here; review content is
// owned by the main application.
type ReviewFlag struct {
	ID        uuid.UUID        `json:"id" db:"id"`
	ReviewID  uuid.UUID        `json:"review_id" db:"review_id"`
	Status    ReviewFlagStatus `json:"status" db:"status"`
	Notes     string           `json:"notes" db:"notes"`
	CreatedAt time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt time.Time        `json:"updated_at" db:"updated_at"`
}
