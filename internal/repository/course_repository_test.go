package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/advising-api/internal/models"
)

func catalogSnapshot() models.CatalogSnapshot {
	return models.CatalogSnapshot{
		Courses: []models.Course{
			{Code: "CS101", Name: "Intro", Credits: 3, OpenYear: 1, OpenSemester: models.SemesterFirst},
			{Code: "CS102", Name: "OOP", Credits: 3, OpenYear: 1, OpenSemester: models.SemesterSecond},
		},
		Requirements: []models.CatalogRequirement{
			{CourseCode: "CS101", TrackID: 1, CourseType: models.CourseTypeMandatory},
			{CourseCode: "CS102", TrackID: 1, CourseType: models.CourseTypeElective},
			{CourseCode: "GONE", TrackID: 1, CourseType: models.CourseTypeElective},
		},
		Prerequisites: []models.CatalogPrerequisite{
			{CourseCode: "CS102", PrerequisiteCode: "CS101"},
			{CourseCode: "CS102", PrerequisiteCode: "MISSING"},
		},
		LoadedAt: time.Now(),
	}
}

func TestCourseRepositoryReplaceCatalog(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE course_prerequisites SET deleted_at").WithArgs(sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE track_requirements SET deleted_at").WithArgs(sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("UPDATE courses SET deleted_at").WithArgs(sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectQuery("INSERT INTO courses").
		WithArgs("CS101", "Intro", 3, 1, "FIRST", nil, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(10))
	mock.ExpectQuery("INSERT INTO courses").
		WithArgs("CS102", "OOP", 3, 1, "SECOND", nil, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))
	mock.ExpectExec("INSERT INTO track_requirements").WithArgs(10, 1, "MANDATORY").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO track_requirements").WithArgs(11, 1, "ELECTIVE").WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectExec("INSERT INTO course_prerequisites").WithArgs(11, 10).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	counts, err := repo.ReplaceCatalog(context.Background(), catalogSnapshot())
	require.NoError(t, err)
	assert.Equal(t, CatalogCounts{Courses: 2, Requirements: 2, Prerequisites: 1}, counts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryReplaceCatalogRollsBack(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE course_prerequisites").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("UPDATE track_requirements").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("UPDATE courses").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("INSERT INTO courses").WillReturnError(errors.New("constraint violation"))
	mock.ExpectRollback()

	_, err := repo.ReplaceCatalog(context.Background(), catalogSnapshot())
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryFindByCodes(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "code", "name", "credits", "open_year", "open_semester", "description", "created_at", "updated_at", "deleted_at"}).
		AddRow(10, "CS101", "Intro", 3, 1, "FIRST", nil, now, now, nil)
	mock.ExpectQuery(`FROM courses WHERE code IN \(\?, \?\) AND deleted_at IS NULL`).
		WithArgs("CS101", "CS999").
		WillReturnRows(rows)

	courses, err := repo.FindByCodes(context.Background(), []string{"CS101", "CS999"})
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, models.SemesterFirst, courses[0].OpenSemester)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryFindByNamesEmpty(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	courses, err := repo.FindByNames(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, courses)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryListPrerequisites(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectQuery("FROM course_prerequisites").
		WithArgs(11, 12).
		WillReturnRows(sqlmock.NewRows([]string{"course_id", "prerequisite_id"}).AddRow(11, 10).AddRow(12, 11))

	edges, err := repo.ListPrerequisites(context.Background(), []int64{11, 12})
	require.NoError(t, err)
	assert.Equal(t, []models.CoursePrerequisite{{CourseID: 11, PrerequisiteID: 10}, {CourseID: 12, PrerequisiteID: 11}}, edges)
}

func TestCourseRepositoryUpdateDescription(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectExec("UPDATE courses SET description").
		WithArgs("Pointers and structs", sqlmock.AnyArg(), "CS101").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateDescription(context.Background(), "CS101", "Pointers and structs"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
