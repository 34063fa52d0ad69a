package dto

// VectorSearchQuery is the admin similarity-search request.
type VectorSearchQuery struct {
	Query string `form:"q" validate:"required,max=500"`
	Limit int    `form:"limit" validate:"omitempty,min=1,max=100"`
}

// VectorSearchHit is a matched course.
type VectorSearchHit struct {
	Code  string  `json:"code"`
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// VectorHealth reports collection state.
type VectorHealth struct {
	Ready       bool   `json:"ready"`
	Status      string `json:"status"`
	PointsCount int64  `json:"points_count"`
	VectorSize  int    `json:"vector_size"`
	Distance    string `json:"distance"`
	Embedder    string `json:"embedder"`
}

// EmbedJobResponse returns the background job handle for embed-all.
type EmbedJobResponse struct {
	JobID string `json:"job_id"`
	State string `json:"state"`
}
