package models

import (
	"strings"
	"time"
)

// CompletedGrade is the letter grade stored for a finished course.
type CompletedGrade string

const (
	GradeAPlus  CompletedGrade = "A_PLUS"
	GradeAZero  CompletedGrade = "A_ZERO"
	GradeBPlus  CompletedGrade = "B_PLUS"
	GradeBZero  CompletedGrade = "B_ZERO"
	GradeCPlus  CompletedGrade = "C_PLUS"
	GradeCZero  CompletedGrade = "C_ZERO"
	GradeDPlus  CompletedGrade = "D_PLUS"
	GradeDZero  CompletedGrade = "D_ZERO"
	GradeF      CompletedGrade = "F"
	GradePass   CompletedGrade = "PASS"
	GradeNoPass CompletedGrade = "NON_PASS"
)

// portal grade strings, matched exactly after trimming
var portalGrades = map[string]CompletedGrade{
	"A+": GradeAPlus,
	"A0": GradeAZero,
	"A":  GradeAZero,
	"B+": GradeBPlus,
	"B0": GradeBZero,
	"B":  GradeBZero,
	"C+": GradeCPlus,
	"C0": GradeCZero,
	"C":  GradeCZero,
	"D+": GradeDPlus,
	"D0": GradeDZero,
	"D":  GradeDZero,
	"F":  GradeF,
	"P":  GradePass,
	"NP": GradeNoPass,
}

// ParseCompletedGrade maps a portal grade string to a stored grade. Unrecognised
// strings map to F and report false.
func ParseCompletedGrade(raw string) (CompletedGrade, bool) {
	if g, ok := portalGrades[strings.TrimSpace(raw)]; ok {
		return g, true
	}
	return GradeF, false
}

// CompletedCourse is a finished course instance for a student.
type CompletedCourse struct {
	ID         int64          `db:"id" json:"id"`
	StudentID  string         `db:"student_id" json:"student_id"`
	CourseID   int64          `db:"course_id" json:"course_id"`
	Year       int            `db:"year" json:"year"`
	GradeLevel int            `db:"grade_level" json:"grade_level"`
	Semester   Semester       `db:"semester" json:"semester"`
	Grade      CompletedGrade `db:"grade" json:"grade"`
	TrackID    *int64         `db:"track_id" json:"track_id,omitempty"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
}

// CompletedCourseDetail joins a completed course with catalog data.
type CompletedCourseDetail struct {
	CompletedCourse
	Code    string `db:"code" json:"code"`
	Name    string `db:"name" json:"name"`
	Credits int    `db:"credits" json:"credits"`
}

// EnrolledCourse is a course the student is taking in the current term.
type EnrolledCourse struct {
	ID        int64     `db:"id" json:"id"`
	StudentID string    `db:"student_id" json:"student_id"`
	CourseID  int64     `db:"course_id" json:"course_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// EnrolledCourseDetail joins an enrolled course with catalog data.
type EnrolledCourseDetail struct {
	EnrolledCourse
	Code    string `db:"code" json:"code"`
	Name    string `db:"name" json:"name"`
	Credits int    `db:"credits" json:"credits"`
}

// RecommendedCourse is a suggested future course with its target term.
type RecommendedCourse struct {
	ID                int64     `db:"id" json:"id"`
	StudentID         string    `db:"student_id" json:"student_id"`
	CourseID          int64     `db:"course_id" json:"course_id"`
	RecommendGrade    int       `db:"recommend_grade" json:"recommend_grade"`
	RecommendSemester Semester  `db:"recommend_semester" json:"recommend_semester"`
	Reason            string    `db:"reason" json:"reason"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}

// RecommendedCourseDetail joins a recommendation with catalog data.
type RecommendedCourseDetail struct {
	RecommendedCourse
	Code    string `db:"code" json:"code"`
	Name    string `db:"name" json:"name"`
	Credits int    `db:"credits" json:"credits"`
}

// FavoriteCourse is a student-curated bookmark.
type FavoriteCourse struct {
	StudentID string    `db:"student_id" json:"student_id"`
	CourseID  int64     `db:"course_id" json:"course_id"`
	Code      string    `db:"code" json:"code"`
	Name      string    `db:"name" json:"name"`
	Credits   int       `db:"credits" json:"credits"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// GraduationRequirement holds the non-credit graduation flags for a student.
type GraduationRequirement struct {
	StudentID string    `db:"student_id" json:"student_id"`
	Capstone  bool      `db:"capstone" json:"capstone"`
	Thesis    bool      `db:"thesis" json:"thesis"`
	Award     bool      `db:"award" json:"award"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// AcademicRecord is the full per-student state written by one sync.
type AcademicRecord struct {
	Student   Student
	Tracks    []StudentTrack
	Completed []CompletedCourse
	Enrolled  []EnrolledCourse
}
