package dto

import (
	"time"

	"github.com/noah-isme/advising-api/internal/models"
)

// TrackProgress reports credit progress within one declared track.
type TrackProgress struct {
	TrackID          int64            `json:"track_id"`
	TrackName        string           `json:"track_name"`
	Rank             models.TrackRank `json:"rank"`
	CompletedCredits int              `json:"completed_credits"`
	RequiredCredits  int              `json:"required_credits"`
	RemainingCredits int              `json:"remaining_credits"`
	Percentage       float64          `json:"percentage"`
}

// Certification is one non-credit graduation flag.
type Certification struct {
	Name      string `json:"name"`
	Completed bool   `json:"completed"`
}

// DashboardResponse summarises graduation progress.
type DashboardResponse struct {
	StudentID             string          `json:"student_id"`
	Name                  string          `json:"name"`
	GPA                   float64         `json:"gpa"`
	TotalCompletedCredits int             `json:"total_completed_credits"`
	TotalRequiredCredits  int             `json:"total_required_credits"`
	TotalRemainingCredits int             `json:"total_remaining_credits"`
	TotalPercentage       float64         `json:"total_percentage"`
	TrackProgress         []TrackProgress `json:"track_progress"`
	Certifications        []Certification `json:"certifications"`
	LastSyncedAt          *time.Time      `json:"last_synced_at,omitempty"`
}

// CourseStatus tells where a roadmap course comes from.
type CourseStatus string

const (
	CourseStatusCompleted   CourseStatus = "COMPLETED"
	CourseStatusEnrolled    CourseStatus = "ENROLLED"
	CourseStatusRecommended CourseStatus = "RECOMMENDED"
)

// RoadmapCourse is a course placed in a roadmap bucket.
type RoadmapCourse struct {
	CourseID        int64             `json:"course_id"`
	Code            string            `json:"code"`
	Name            string            `json:"name"`
	Credits         int               `json:"credits"`
	Classification  models.CourseType `json:"classification"`
	Status          CourseStatus      `json:"status"`
	Grade           string            `json:"grade,omitempty"`
	Reason          string            `json:"reason,omitempty"`
	PrerequisiteIDs []int64           `json:"prerequisite_ids"`
}

// RoadmapSemester is one (grade level, semester) bucket.
type RoadmapSemester struct {
	GradeLevel int             `json:"grade_level"`
	Semester   models.Semester `json:"semester"`
	Credits    int             `json:"credits"`
	Courses    []RoadmapCourse `json:"courses"`
}

// RoadmapResponse is the semester-ordered plan for a student.
type RoadmapResponse struct {
	StudentID         string            `json:"student_id"`
	CurrentGradeLevel int               `json:"current_grade_level"`
	CurrentSemester   models.Semester   `json:"current_semester"`
	Semesters         []RoadmapSemester `json:"semesters"`
}

// SimulationCourse is a course still available toward the declared tracks.
type SimulationCourse struct {
	CourseID     int64             `json:"course_id"`
	Code         string            `json:"code"`
	Name         string            `json:"name"`
	Credits      int               `json:"credits"`
	OpenYear     int               `json:"open_year"`
	OpenSemester models.Semester   `json:"open_semester"`
	CourseType   models.CourseType `json:"course_type"`
	Tracks       []string          `json:"tracks"`
}

// SimulationResponse pairs current progress with the remaining candidate courses.
type SimulationResponse struct {
	CurrentStatus    DashboardResponse  `json:"current_status"`
	AvailableCourses []SimulationCourse `json:"available_courses"`
}
