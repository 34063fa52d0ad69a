package dto

// FavoriteRequest bookmarks a course by code.
type FavoriteRequest struct {
	CourseCode string `json:"course_code" validate:"required,max=32"`
}

// RequirementUpdateRequest toggles graduation flags. Nil fields are left unchanged.
type RequirementUpdateRequest struct {
	Capstone *bool `json:"capstone"`
	Thesis   *bool `json:"thesis"`
	Award    *bool `json:"award"`
}

// ExportFormat selects the roadmap export encoding.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportQuery is the roadmap export request.
type ExportQuery struct {
	Format ExportFormat `form:"format" validate:"omitempty,oneof=csv pdf"`
}
