package dto

import (
	"time"

	"github.com/noah-isme/advising-api/internal/models"
)

// RecommendationItem is one element of the model's JSON answer.
type RecommendationItem struct {
	CourseCode string `json:"course_code"`
	Grade      int    `json:"grade"`
	Semester   int    `json:"semester"`
	Reason     string `json:"reason"`
}

// RecommendationResponse lists the stored recommendations after a run.
type RecommendationResponse struct {
	StudentID   string                           `json:"student_id"`
	Courses     []models.RecommendedCourseDetail `json:"courses"`
	Skipped     []string                         `json:"skipped,omitempty"`
	GeneratedAt time.Time                        `json:"generated_at"`
}
