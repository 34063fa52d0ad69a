package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/advising-api/internal/models"
)

// RecordRepository owns per-student academic state written by the portal sync.
type RecordRepository struct {
	db *sqlx.DB
}

// NewRecordRepository constructs a RecordRepository.
func NewRecordRepository(db *sqlx.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

// ReplaceAcademicRecord upserts the student and replaces their tracks, completed courses
// and enrolled courses in one transaction. Concurrent readers see either the previous
// record or the new one.
func (r *RecordRepository) ReplaceAcademicRecord(ctx context.Context, record models.AcademicRecord) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace academic record: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	student := record.Student
	now := time.Now().UTC()
	if student.CreatedAt.IsZero() {
		student.CreatedAt = now
	}
	student.UpdatedAt = now

	const upsertStudent = `INSERT INTO students (id, name, gpa, schedule, last_synced_at, created_at, updated_at)
        VALUES (:id, :name, :gpa, :schedule, :last_synced_at, :created_at, :updated_at)
        ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, gpa = EXCLUDED.gpa, schedule = EXCLUDED.schedule,
            last_synced_at = EXCLUDED.last_synced_at, updated_at = EXCLUDED.updated_at, deleted_at = NULL`
	if _, err = tx.NamedExecContext(ctx, upsertStudent, &student); err != nil {
		return fmt.Errorf("upsert student: %w", err)
	}

	for _, stmt := range []string{
		`DELETE FROM completed_courses WHERE student_id = $1`,
		`DELETE FROM enrolled_courses WHERE student_id = $1`,
		`DELETE FROM student_tracks WHERE student_id = $1`,
	} {
		if _, err = tx.ExecContext(ctx, stmt, student.ID); err != nil {
			return fmt.Errorf("clear academic record: %w", err)
		}
	}

	for _, track := range record.Tracks {
		row := track
		row.StudentID = student.ID
		if _, err = tx.NamedExecContext(ctx, `INSERT INTO student_tracks (student_id, track_id, rank) VALUES (:student_id, :track_id, :rank)`, &row); err != nil {
			return fmt.Errorf("insert student track: %w", err)
		}
	}

	for _, course := range record.Completed {
		row := course
		row.StudentID = student.ID
		if row.CreatedAt.IsZero() {
			row.CreatedAt = now
		}
		if _, err = tx.NamedExecContext(ctx, `INSERT INTO completed_courses (student_id, course_id, year, grade_level, semester, grade, track_id, created_at)
            VALUES (:student_id, :course_id, :year, :grade_level, :semester, :grade, :track_id, :created_at)`, &row); err != nil {
			return fmt.Errorf("insert completed course %d: %w", row.CourseID, err)
		}
	}

	for _, course := range record.Enrolled {
		row := course
		row.StudentID = student.ID
		if row.CreatedAt.IsZero() {
			row.CreatedAt = now
		}
		if _, err = tx.NamedExecContext(ctx, `INSERT INTO enrolled_courses (student_id, course_id, created_at)
            VALUES (:student_id, :course_id, :created_at)`, &row); err != nil {
			return fmt.Errorf("insert enrolled course %d: %w", row.CourseID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit replace academic record: %w", err)
	}
	return nil
}

// ListTracks returns the student's declared tracks, PRIMARY first.
func (r *RecordRepository) ListTracks(ctx context.Context, studentID string) ([]models.StudentTrack, error) {
	const query = `SELECT st.student_id, st.track_id, st.rank, t.name AS track_name
        FROM student_tracks st JOIN tracks t ON t.id = st.track_id
        WHERE st.student_id = $1 ORDER BY st.rank`
	var tracks []models.StudentTrack
	if err := r.db.SelectContext(ctx, &tracks, query, studentID); err != nil {
		return nil, fmt.Errorf("list student tracks: %w", err)
	}
	return tracks, nil
}

// ListCompleted returns completed courses joined with live catalog rows.
func (r *RecordRepository) ListCompleted(ctx context.Context, studentID string) ([]models.CompletedCourseDetail, error) {
	const query = `SELECT cc.id, cc.student_id, cc.course_id, cc.year, cc.grade_level, cc.semester, cc.grade, cc.track_id, cc.created_at,
        c.code, c.name, c.credits
        FROM completed_courses cc JOIN courses c ON c.id = cc.course_id
        WHERE cc.student_id = $1 AND c.deleted_at IS NULL
        ORDER BY cc.grade_level, cc.semester, c.code`
	var rows []models.CompletedCourseDetail
	if err := r.db.SelectContext(ctx, &rows, query, studentID); err != nil {
		return nil, fmt.Errorf("list completed courses: %w", err)
	}
	return rows, nil
}

// ListEnrolled returns current-term courses joined with live catalog rows.
func (r *RecordRepository) ListEnrolled(ctx context.Context, studentID string) ([]models.EnrolledCourseDetail, error) {
	const query = `SELECT ec.id, ec.student_id, ec.course_id, ec.created_at, c.code, c.name, c.credits
        FROM enrolled_courses ec JOIN courses c ON c.id = ec.course_id
        WHERE ec.student_id = $1 AND c.deleted_at IS NULL
        ORDER BY c.code`
	var rows []models.EnrolledCourseDetail
	if err := r.db.SelectContext(ctx, &rows, query, studentID); err != nil {
		return nil, fmt.Errorf("list enrolled courses: %w", err)
	}
	return rows, nil
}
