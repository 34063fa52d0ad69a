package models

import "time"

// Semester identifies the half of the academic year a course runs in.
type Semester string

const (
	SemesterFirst  Semester = "FIRST"
	SemesterSecond Semester = "SECOND"
)

// Number returns 1 or 2 for ordering; unknown values sort last.
func (s Semester) Number() int {
	switch s {
	case SemesterFirst:
		return 1
	case SemesterSecond:
		return 2
	default:
		return 3
	}
}

// SemesterFromNumber maps 1/2 to the enum.
func SemesterFromNumber(n int) (Semester, bool) {
	switch n {
	case 1:
		return SemesterFirst, true
	case 2:
		return SemesterSecond, true
	default:
		return "", false
	}
}

// Course is a catalog entry. Rows are replaced in bulk by the catalog loader.
type Course struct {
	ID           int64      `db:"id" json:"id"`
	Code         string     `db:"code" json:"code"`
	Name         string     `db:"name" json:"name"`
	Credits      int        `db:"credits" json:"credits"`
	OpenYear     int        `db:"open_year" json:"open_year"`
	OpenSemester Semester   `db:"open_semester" json:"open_semester"`
	Description  *string    `db:"description" json:"description,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt    *time.Time `db:"deleted_at" json:"-"`
}

// CoursePrerequisite is a directed edge from a course to one of its prerequisites.
type CoursePrerequisite struct {
	CourseID       int64 `db:"course_id" json:"course_id"`
	PrerequisiteID int64 `db:"prerequisite_id" json:"prerequisite_id"`
}
