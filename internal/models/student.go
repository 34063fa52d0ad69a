package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// MaxGPA is the top of the institution's grade-point scale.
const MaxGPA = 4.5

// Student is keyed by the institution-issued student number.
type Student struct {
	ID           string         `db:"id" json:"id"`
	Name         string         `db:"name" json:"name"`
	GPA          float64        `db:"gpa" json:"gpa"`
	Schedule     types.JSONText `db:"schedule" json:"schedule,omitempty"`
	LastSyncedAt *time.Time     `db:"last_synced_at" json:"last_synced_at,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
	DeletedAt    *time.Time     `db:"deleted_at" json:"-"`
}

// ClampGPA keeps a computed GPA inside [0, MaxGPA].
func ClampGPA(gpa float64) float64 {
	switch {
	case gpa < 0:
		return 0
	case gpa > MaxGPA:
		return MaxGPA
	default:
		return gpa
	}
}
