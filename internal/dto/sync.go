package dto

import "time"

// SyncResult reports what one portal sync wrote.
type SyncResult struct {
	StudentID       string    `json:"student_id"`
	Name            string    `json:"name"`
	GPA             float64   `json:"gpa"`
	Tracks          []string  `json:"tracks"`
	CompletedCount  int       `json:"completed_count"`
	EnrolledCount   int       `json:"enrolled_count"`
	SkippedCourses  []string  `json:"skipped_courses,omitempty"`
	SkippedEnrolled []string  `json:"skipped_enrolled,omitempty"`
	SyncedAt        time.Time `json:"synced_at"`
}

// CatalogReloadResult reports the live catalog after a reload.
type CatalogReloadResult struct {
	Courses       int       `json:"courses"`
	Requirements  int       `json:"requirements"`
	Prerequisites int       `json:"prerequisites"`
	SkippedRows   int       `json:"skipped_rows"`
	LoadedAt      time.Time `json:"loaded_at"`
}
