package models

// Track is a specialization a student declares. Tracks are seeded by operators.
type Track struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// CourseType classifies a course within a track.
type CourseType string

const (
	CourseTypeMandatory       CourseType = "MANDATORY"
	CourseTypeElective        CourseType = "ELECTIVE"
	CourseTypeFoundation      CourseType = "FOUNDATION"
	CourseTypeGeneralElective CourseType = "GENERAL_ELECTIVE"
)

// TrackRequirement records how a course counts toward a track.
type TrackRequirement struct {
	ID         int64      `db:"id" json:"id"`
	CourseID   int64      `db:"course_id" json:"course_id"`
	TrackID    int64      `db:"track_id" json:"track_id"`
	CourseType CourseType `db:"course_type" json:"course_type"`
}

// TrackRequirementDetail joins a requirement with its course for simulation views.
type TrackRequirementDetail struct {
	TrackRequirement
	TrackName    string   `db:"track_name" json:"track_name"`
	Code         string   `db:"code" json:"code"`
	Name         string   `db:"name" json:"name"`
	Credits      int      `db:"credits" json:"credits"`
	OpenYear     int      `db:"open_year" json:"open_year"`
	OpenSemester Semester `db:"open_semester" json:"open_semester"`
}

// TrackRank orders a student's declared tracks.
type TrackRank string

const (
	TrackRankPrimary   TrackRank = "PRIMARY"
	TrackRankSecondary TrackRank = "SECONDARY"
)

// StudentTrack assigns a declared track to a student.
type StudentTrack struct {
	StudentID string    `db:"student_id" json:"student_id"`
	TrackID   int64     `db:"track_id" json:"track_id"`
	Rank      TrackRank `db:"rank" json:"rank"`
	TrackName string    `db:"track_name" json:"track_name"`
}
