package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/advising-api/internal/models"
)

const courseColumns = `id, code, name, credits, open_year, open_semester, description, created_at, updated_at, deleted_at`

// CatalogCounts are the live row counts written by a catalog replace.
type CatalogCounts struct {
	Courses       int
	Requirements  int
	Prerequisites int
}

// CourseRepository manages the course catalog and its prerequisite graph.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs a CourseRepository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// FindByCode returns a live course or sql.ErrNoRows.
func (r *CourseRepository) FindByCode(ctx context.Context, code string) (*models.Course, error) {
	var course models.Course
	query := `SELECT ` + courseColumns + ` FROM courses WHERE code = $1 AND deleted_at IS NULL`
	if err := r.db.GetContext(ctx, &course, query, code); err != nil {
		return nil, err
	}
	return &course, nil
}

// FindByCodes returns live courses matching any of codes.
func (r *CourseRepository) FindByCodes(ctx context.Context, codes []string) ([]models.Course, error) {
	return r.findIn(ctx, "code", codes)
}

// FindByNames returns live courses whose name exactly matches any of names.
func (r *CourseRepository) FindByNames(ctx context.Context, names []string) ([]models.Course, error) {
	return r.findIn(ctx, "name", names)
}

func (r *CourseRepository) findIn(ctx context.Context, column string, values []string) ([]models.Course, error) {
	if len(values) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT `+courseColumns+` FROM courses WHERE `+column+` IN (?) AND deleted_at IS NULL ORDER BY id`, values)
	if err != nil {
		return nil, fmt.Errorf("build course lookup: %w", err)
	}
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("find courses by %s: %w", column, err)
	}
	return courses, nil
}

// ListAll returns every live course ordered by code.
func (r *CourseRepository) ListAll(ctx context.Context) ([]models.Course, error) {
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, `SELECT `+courseColumns+` FROM courses WHERE deleted_at IS NULL ORDER BY code`); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return courses, nil
}

// ListPrerequisites returns live prerequisite edges for the given dependent courses.
func (r *CourseRepository) ListPrerequisites(ctx context.Context, courseIDs []int64) ([]models.CoursePrerequisite, error) {
	if len(courseIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT course_id, prerequisite_id FROM course_prerequisites
        WHERE course_id IN (?) AND deleted_at IS NULL ORDER BY course_id, prerequisite_id`, courseIDs)
	if err != nil {
		return nil, fmt.Errorf("build prerequisite lookup: %w", err)
	}
	var edges []models.CoursePrerequisite
	if err := r.db.SelectContext(ctx, &edges, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list prerequisites: %w", err)
	}
	return edges, nil
}

// UpdateDescription backfills a course description.
func (r *CourseRepository) UpdateDescription(ctx context.Context, code, description string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE courses SET description = $1, updated_at = $2 WHERE code = $3 AND deleted_at IS NULL`,
		description, time.Now().UTC(), code)
	if err != nil {
		return fmt.Errorf("update course description: %w", err)
	}
	return requireAffected(res)
}

// ReplaceCatalog soft-deletes the live catalog and writes snapshot in one transaction.
// Courses are upserted by code, which revives soft-deleted rows and keeps their IDs
// stable for student records that reference them. An empty dataset description keeps
// an earlier backfill.
func (r *CourseRepository) ReplaceCatalog(ctx context.Context, snapshot models.CatalogSnapshot) (counts CatalogCounts, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return counts, fmt.Errorf("begin replace catalog: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := snapshot.LoadedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}

	for _, stmt := range []string{
		`UPDATE course_prerequisites SET deleted_at = $1 WHERE deleted_at IS NULL`,
		`UPDATE track_requirements SET deleted_at = $1 WHERE deleted_at IS NULL`,
		`UPDATE courses SET deleted_at = $1 WHERE deleted_at IS NULL`,
	} {
		if _, err = tx.ExecContext(ctx, stmt, now); err != nil {
			return counts, fmt.Errorf("soft delete catalog: %w", err)
		}
	}

	ids := make(map[string]int64, len(snapshot.Courses))
	const upsertCourse = `INSERT INTO courses (code, name, credits, open_year, open_semester, description, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
        ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name, credits = EXCLUDED.credits,
            open_year = EXCLUDED.open_year, open_semester = EXCLUDED.open_semester,
            description = COALESCE(EXCLUDED.description, courses.description),
            updated_at = EXCLUDED.updated_at, deleted_at = NULL
        RETURNING id`
	for _, course := range snapshot.Courses {
		var id int64
		if err = tx.QueryRowxContext(ctx, upsertCourse, course.Code, course.Name, course.Credits,
			course.OpenYear, course.OpenSemester, course.Description, now).Scan(&id); err != nil {
			return counts, fmt.Errorf("upsert course %s: %w", course.Code, err)
		}
		ids[course.Code] = id
	}
	counts.Courses = len(ids)

	for _, req := range snapshot.Requirements {
		courseID, ok := ids[req.CourseCode]
		if !ok {
			continue
		}
		if _, err = tx.ExecContext(ctx, `INSERT INTO track_requirements (course_id, track_id, course_type) VALUES ($1, $2, $3)`,
			courseID, req.TrackID, req.CourseType); err != nil {
			return counts, fmt.Errorf("insert requirement %s: %w", req.CourseCode, err)
		}
		counts.Requirements++
	}

	for _, edge := range snapshot.Prerequisites {
		courseID, ok := ids[edge.CourseCode]
		prereqID, okPrereq := ids[edge.PrerequisiteCode]
		if !ok || !okPrereq {
			continue
		}
		if _, err = tx.ExecContext(ctx, `INSERT INTO course_prerequisites (course_id, prerequisite_id) VALUES ($1, $2)`,
			courseID, prereqID); err != nil {
			return counts, fmt.Errorf("insert prerequisite %s->%s: %w", edge.CourseCode, edge.PrerequisiteCode, err)
		}
		counts.Prerequisites++
	}

	if err = tx.Commit(); err != nil {
		return counts, fmt.Errorf("commit replace catalog: %w", err)
	}
	return counts, nil
}
