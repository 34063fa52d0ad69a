package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/advising-api/internal/catalog"
	"github.com/noah-isme/advising-api/internal/dto"
	"github.com/noah-isme/advising-api/internal/models"
	"github.com/noah-isme/advising-api/internal/repository"
	appErrors "github.com/noah-isme/advising-api/pkg/errors"
)

// category codes used by the dataset
var categoryTypes = map[string]models.CourseType{
	"전필": models.CourseTypeMandatory,
	"전선": models.CourseTypeElective,
	"전기": models.CourseTypeFoundation,
}

var semesterCodes = map[string]models.Semester{
	"1": models.SemesterFirst,
	"2": models.SemesterSecond,
}

type catalogTrackRepository interface {
	FindByNames(ctx context.Context, names []string) ([]models.Track, error)
}

type catalogCourseRepository interface {
	ReplaceCatalog(ctx context.Context, snapshot models.CatalogSnapshot) (repository.CatalogCounts, error)
	UpdateDescription(ctx context.Context, code, description string) error
}

// CatalogService replaces the course catalog from the bundled dataset.
type CatalogService struct {
	source  catalog.Source
	tracks  catalogTrackRepository
	courses catalogCourseRepository
	cache   *CacheService
	metrics *MetricsService
	logger  *zap.Logger
	now     func() time.Time
}

// NewCatalogService constructs a CatalogService. A nil source means the embedded dataset.
func NewCatalogService(source catalog.Source, tracks catalogTrackRepository, courses catalogCourseRepository, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *CatalogService {
	if source == nil {
		source = catalog.Bundled()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{source: source, tracks: tracks, courses: courses, cache: cache, metrics: metrics, logger: logger, now: time.Now}
}

// Reload soft-deletes the live catalog and writes the dataset in its place. Nothing is
// written when a referenced track is not seeded.
func (s *CatalogService) Reload(ctx context.Context) (*dto.CatalogReloadResult, error) {
	result, err := s.reload(ctx)
	if err != nil {
		s.metrics.RecordCatalogReload("error")
		return nil, err
	}
	s.metrics.RecordCatalogReload("success")

	if err := s.cache.Invalidate(ctx, "grad:*"); err != nil {
		s.logger.Warn("failed to invalidate graduation cache after catalog reload", zap.Error(err))
	}
	return result, nil
}

func (s *CatalogService) reload(ctx context.Context) (*dto.CatalogReloadResult, error) {
	entries, err := s.source.Entries()
	if err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrConfiguration, err, "course dataset could not be read")
	}

	entries, invalid := s.loadableRows(entries)
	if len(entries) == 0 {
		return nil, appErrors.Clone(appErrors.ErrConfiguration, "course dataset has no loadable rows")
	}

	trackIDs, err := s.resolveTracks(ctx, entries)
	if err != nil {
		return nil, err
	}

	snapshot, skipped := s.buildSnapshot(entries, trackIDs)
	skipped += invalid

	start := time.Now()
	counts, err := s.courses.ReplaceCatalog(ctx, snapshot)
	s.metrics.ObserveDBQuery("replace_catalog", time.Since(start))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to replace catalog")
	}

	s.logger.Info("catalog reloaded",
		zap.Int("courses", counts.Courses),
		zap.Int("requirements", counts.Requirements),
		zap.Int("prerequisites", counts.Prerequisites),
		zap.Int("skipped_rows", skipped))

	return &dto.CatalogReloadResult{
		Courses:       counts.Courses,
		Requirements:  counts.Requirements,
		Prerequisites: counts.Prerequisites,
		SkippedRows:   skipped,
		LoadedAt:      snapshot.LoadedAt,
	}, nil
}

// loadableRows drops rows catalog.Check rejects and reports how many were dropped.
func (s *CatalogService) loadableRows(entries []models.CatalogEntry) ([]models.CatalogEntry, int) {
	kept := make([]models.CatalogEntry, 0, len(entries))
	for i, e := range entries {
		if err := catalog.Check(e); err != nil {
			s.logger.Warn("skipping invalid catalog row",
				zap.Int("row", i+1), zap.String("code", e.Code), zap.String("name", e.Name), zap.Error(err))
			continue
		}
		kept = append(kept, e)
	}
	return kept, len(entries) - len(kept)
}

func (s *CatalogService) resolveTracks(ctx context.Context, entries []models.CatalogEntry) (map[string]int64, error) {
	names := make([]string, 0, 4)
	for _, e := range entries {
		names = append(names, e.Track)
	}
	names = uniqueStrings(names)

	tracks, err := s.tracks.FindByNames(ctx, names)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load tracks")
	}
	ids := make(map[string]int64, len(tracks))
	for _, t := range tracks {
		ids[t.Name] = t.ID
	}

	var missing []string
	for _, name := range names {
		if _, ok := ids[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, appErrors.Clone(appErrors.ErrConfiguration, fmt.Sprintf("tracks not seeded: %s", strings.Join(missing, ", ")))
	}
	return ids, nil
}

// buildSnapshot dedupes courses by code (first row wins) and keeps one requirement per
// (course, track). Rows with an unknown semester code are skipped.
func (s *CatalogService) buildSnapshot(entries []models.CatalogEntry, trackIDs map[string]int64) (models.CatalogSnapshot, int) {
	snapshot := models.CatalogSnapshot{LoadedAt: s.now().UTC()}
	seenCourse := make(map[string]struct{})
	seenRequirement := make(map[string]struct{})
	seenEdge := make(map[string]struct{})
	skipped := 0

	for _, e := range entries {
		semester, ok := semesterCodes[e.Semester]
		if !ok {
			s.logger.Warn("skipping catalog row with unknown semester", zap.String("code", e.Code), zap.String("semester", e.Semester))
			skipped++
			continue
		}

		if _, ok := seenCourse[e.Code]; !ok {
			seenCourse[e.Code] = struct{}{}
			course := models.Course{
				Code:         e.Code,
				Name:         e.Name,
				Credits:      e.Credits,
				OpenYear:     e.Year,
				OpenSemester: semester,
			}
			if desc := strings.TrimSpace(e.Description); desc != "" {
				course.Description = &desc
			}
			snapshot.Courses = append(snapshot.Courses, course)
		}

		reqKey := e.Code + "\x00" + e.Track
		if _, ok := seenRequirement[reqKey]; !ok {
			seenRequirement[reqKey] = struct{}{}
			snapshot.Requirements = append(snapshot.Requirements, models.CatalogRequirement{
				CourseCode: e.Code,
				TrackID:    trackIDs[e.Track],
				CourseType: categoryType(e.Category),
			})
		}

		for _, prereq := range e.Prerequisites {
			prereq = strings.TrimSpace(prereq)
			edgeKey := e.Code + "\x00" + prereq
			if prereq == "" || prereq == e.Code {
				continue
			}
			if _, ok := seenEdge[edgeKey]; ok {
				continue
			}
			seenEdge[edgeKey] = struct{}{}
			snapshot.Prerequisites = append(snapshot.Prerequisites, models.CatalogPrerequisite{CourseCode: e.Code, PrerequisiteCode: prereq})
		}
	}
	return snapshot, skipped
}

// BackfillDescription sets a course description after load.
func (s *CatalogService) BackfillDescription(ctx context.Context, code, description string) error {
	code = strings.TrimSpace(code)
	description = strings.TrimSpace(description)
	if code == "" || description == "" {
		return appErrors.Clone(appErrors.ErrValidation, "course code and description are required")
	}
	if err := s.courses.UpdateDescription(ctx, code, description); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("course %s not found", code))
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course description")
	}
	return nil
}

func categoryType(code string) models.CourseType {
	if t, ok := categoryTypes[code]; ok {
		return t
	}
	return models.CourseTypeGeneralElective
}
