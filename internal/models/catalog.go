package models

import "time"

// CatalogEntry is one dataset record: a course offering within a track.
type CatalogEntry struct {
	Year          int      `yaml:"year" json:"year"`
	Semester      string   `yaml:"semester" json:"semester"`
	Category      string   `yaml:"category" json:"category"`
	Code          string   `yaml:"code" json:"code"`
	Name          string   `yaml:"name" json:"name"`
	Credits       int      `yaml:"credits" json:"credits"`
	Track         string   `yaml:"track" json:"track"`
	Description   string   `yaml:"description,omitempty" json:"description,omitempty"`
	Prerequisites []string `yaml:"prerequisites,omitempty" json:"prerequisites,omitempty"`
}

// CatalogSnapshot is the fully resolved catalog written by one reload.
type CatalogSnapshot struct {
	Courses       []Course
	Requirements  []CatalogRequirement
	Prerequisites []CatalogPrerequisite
	LoadedAt      time.Time
}

// CatalogRequirement references its course by code because IDs are assigned during the write.
type CatalogRequirement struct {
	CourseCode string
	TrackID    int64
	CourseType CourseType
}

// CatalogPrerequisite is a prerequisite edge expressed by course codes.
type CatalogPrerequisite struct {
	CourseCode       string
	PrerequisiteCode string
}
