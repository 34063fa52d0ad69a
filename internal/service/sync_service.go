package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/advising-api/internal/dto"
	"github.com/noah-isme/advising-api/internal/models"
	appErrors "github.com/noah-isme/advising-api/pkg/errors"
	"github.com/noah-isme/advising-api/pkg/middleware/requestid"
	"github.com/noah-isme/advising-api/pkg/portal"
)

const (
	minGradeLevel = 1
	maxGradeLevel = 4
)

type portalScraper interface {
	Authenticate(ctx context.Context, id, password string) (*portal.Session, error)
	FetchUserInfo(ctx context.Context, session *portal.Session) ([]byte, error)
	FetchGrades(ctx context.Context, session *portal.Session) ([]byte, error)
}

type syncTrackRepository interface {
	FindByNames(ctx context.Context, names []string) ([]models.Track, error)
}

type syncCourseRepository interface {
	FindByCodes(ctx context.Context, codes []string) ([]models.Course, error)
	FindByNames(ctx context.Context, names []string) ([]models.Course, error)
}

type syncRecordRepository interface {
	ReplaceAcademicRecord(ctx context.Context, record models.AcademicRecord) error
}

// SyncConfig holds the portal's track designation labels used on grade rows.
type SyncConfig struct {
	PrimaryTrackLabel   string
	SecondaryTrackLabel string
}

// SyncService mirrors a student's portal record into the local store.
type SyncService struct {
	portal    portalScraper
	tracks    syncTrackRepository
	courses   syncCourseRepository
	records   syncRecordRepository
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       SyncConfig
	now       func() time.Time
}

// SyncServiceParams groups constructor dependencies.
type SyncServiceParams struct {
	Portal    portalScraper
	Tracks    syncTrackRepository
	Courses   syncCourseRepository
	Records   syncRecordRepository
	Cache     *CacheService
	Metrics   *MetricsService
	Validator *validator.Validate
	Logger    *zap.Logger
	Config    SyncConfig
}

// NewSyncService constructs a SyncService.
func NewSyncService(params SyncServiceParams) *SyncService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	validate := params.Validator
	if validate == nil {
		validate = validator.New()
	}
	return &SyncService{
		portal:    params.Portal,
		tracks:    params.Tracks,
		courses:   params.Courses,
		records:   params.Records,
		cache:     params.Cache,
		metrics:   params.Metrics,
		validator: validate,
		logger:    logger,
		cfg:       params.Config,
		now:       time.Now,
	}
}

// Sync scrapes the portal with the student's credentials and replaces their tracks,
// completed courses and enrolled courses in one transaction.
func (s *SyncService) Sync(ctx context.Context, req models.LoginRequest) (*dto.SyncResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid sync payload")
	}

	result, err := s.sync(ctx, req)
	s.metrics.RecordSync(syncOutcome(err))
	if err != nil {
		return nil, err
	}

	if err := s.cache.InvalidateStudent(ctx, req.StudentID); err != nil {
		s.logger.Warn("failed to invalidate graduation cache", zap.String("student_id", req.StudentID), zap.Error(err))
	}
	return result, nil
}

func (s *SyncService) sync(ctx context.Context, req models.LoginRequest) (*dto.SyncResult, error) {
	log := s.logger.With(zap.String("student_id", req.StudentID), zap.String("request_id", requestid.FromContext(ctx)))

	info, report, err := s.scrape(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(info.Tracks) == 0 {
		return nil, appErrors.Clone(appErrors.ErrExternalService, "portal profile lists no declared track")
	}

	tracks, err := s.resolveTracks(ctx, info.Tracks)
	if err != nil {
		return nil, err
	}

	syncedAt := s.now().UTC()
	record := models.AcademicRecord{
		Student: models.Student{
			ID:           req.StudentID,
			Name:         info.Name,
			GPA:          averageGPA(report.Semesters),
			LastSyncedAt: &syncedAt,
		},
		Tracks: tracks,
	}

	completed, skippedCodes, err := s.resolveCompleted(ctx, log, report.CompletedRows(), tracks)
	if err != nil {
		return nil, err
	}
	record.Completed = completed

	enrolledNames := report.EnrolledCourseNames()
	enrolled, skippedNames, err := s.resolveEnrolled(ctx, log, enrolledNames)
	if err != nil {
		return nil, err
	}
	record.Enrolled = enrolled

	schedule, err := json.Marshal(enrolledNames)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode schedule")
	}
	record.Student.Schedule = types.JSONText(schedule)

	start := time.Now()
	err = s.records.ReplaceAcademicRecord(ctx, record)
	s.metrics.ObserveDBQuery("replace_academic_record", time.Since(start))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store academic record")
	}

	log.Info("portal sync completed",
		zap.Int("completed", len(completed)),
		zap.Int("enrolled", len(enrolled)),
		zap.Int("skipped", len(skippedCodes)+len(skippedNames)))

	trackNames := make([]string, 0, len(tracks))
	for _, t := range tracks {
		trackNames = append(trackNames, t.TrackName)
	}
	return &dto.SyncResult{
		StudentID:       req.StudentID,
		Name:            info.Name,
		GPA:             record.Student.GPA,
		Tracks:          trackNames,
		CompletedCount:  len(completed),
		EnrolledCount:   len(enrolled),
		SkippedCourses:  skippedCodes,
		SkippedEnrolled: skippedNames,
		SyncedAt:        syncedAt,
	}, nil
}

func (s *SyncService) scrape(ctx context.Context, req models.LoginRequest) (*portal.UserInfo, *portal.GradeReport, error) {
	session, err := s.portal.Authenticate(ctx, req.StudentID, req.Password)
	if err != nil {
		return nil, nil, portalError(err)
	}

	start := time.Now()
	userPage, err := s.portal.FetchUserInfo(ctx, session)
	s.metrics.ObservePortalScrape("user_info", time.Since(start))
	if err != nil {
		return nil, nil, portalError(err)
	}

	start = time.Now()
	gradePage, err := s.portal.FetchGrades(ctx, session)
	s.metrics.ObservePortalScrape("grades", time.Since(start))
	if err != nil {
		return nil, nil, portalError(err)
	}

	info, err := portal.ParseUserInfo(userPage)
	if err != nil {
		return nil, nil, appErrors.WrapAs(appErrors.ErrExternalService, err, "unreadable portal profile page")
	}
	report, err := portal.ParseGrades(gradePage)
	if err != nil {
		return nil, nil, appErrors.WrapAs(appErrors.ErrExternalService, err, "unreadable portal grade page")
	}
	return info, report, nil
}

// resolveTracks maps the declared track names to PRIMARY and SECONDARY in page order.
func (s *SyncService) resolveTracks(ctx context.Context, names []string) ([]models.StudentTrack, error) {
	found, err := s.tracks.FindByNames(ctx, names)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load tracks")
	}
	byName := make(map[string]models.Track, len(found))
	for _, t := range found {
		byName[t.Name] = t
	}

	ranks := []models.TrackRank{models.TrackRankPrimary, models.TrackRankSecondary}
	tracks := make([]models.StudentTrack, 0, len(names))
	for i, name := range names {
		if i >= len(ranks) {
			break
		}
		track, ok := byName[name]
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrConfiguration, fmt.Sprintf("track %q is not configured", name))
		}
		tracks = append(tracks, models.StudentTrack{TrackID: track.ID, Rank: ranks[i], TrackName: track.Name})
	}
	return tracks, nil
}

func (s *SyncService) resolveCompleted(ctx context.Context, log *zap.Logger, rows []portal.CompletedRow, tracks []models.StudentTrack) ([]models.CompletedCourse, []string, error) {
	if len(rows) == 0 {
		return nil, nil, nil
	}
	codes := make([]string, 0, len(rows))
	for _, row := range rows {
		codes = append(codes, row.Code)
	}
	courses, err := s.courses.FindByCodes(ctx, uniqueStrings(codes))
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve completed courses")
	}
	byCode := make(map[string]models.Course, len(courses))
	for _, c := range courses {
		byCode[c.Code] = c
	}

	labels := s.trackLabels(tracks)
	firstYear := earliestYear(rows)

	var skipped []string
	index := make(map[int64]int)
	var completed []models.CompletedCourse
	for _, row := range rows {
		course, ok := byCode[row.Code]
		if !ok {
			log.Warn("skipping completed course with unknown code", zap.String("code", row.Code), zap.String("name", row.Name))
			skipped = append(skipped, row.Code)
			continue
		}
		semester, ok := models.SemesterFromNumber(row.Term)
		if !ok {
			log.Warn("skipping completed course without semester", zap.String("code", row.Code), zap.Int("year", row.Year))
			skipped = append(skipped, row.Code)
			continue
		}
		grade, known := models.ParseCompletedGrade(row.Grade)
		if !known {
			log.Warn("unrecognised grade mapped to F", zap.String("code", row.Code), zap.String("grade", row.Grade))
		}

		entry := models.CompletedCourse{
			CourseID:   course.ID,
			Year:       row.Year,
			GradeLevel: gradeLevel(row.GradeLevel, row.Year, firstYear),
			Semester:   semester,
			Grade:      grade,
		}
		if trackID, ok := labels[row.TrackLabel]; ok && row.TrackLabel != "" {
			id := trackID
			entry.TrackID = &id
		}

		// a retaken course keeps its latest attempt
		if i, seen := index[course.ID]; seen {
			completed[i] = entry
			continue
		}
		index[course.ID] = len(completed)
		completed = append(completed, entry)
	}
	return completed, skipped, nil
}

func (s *SyncService) resolveEnrolled(ctx context.Context, log *zap.Logger, names []string) ([]models.EnrolledCourse, []string, error) {
	if len(names) == 0 {
		return nil, nil, nil
	}
	courses, err := s.courses.FindByNames(ctx, uniqueStrings(names))
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve enrolled courses")
	}
	byName := make(map[string]models.Course, len(courses))
	for _, c := range courses {
		if _, ok := byName[c.Name]; !ok {
			byName[c.Name] = c
		}
	}

	var skipped []string
	seen := make(map[int64]struct{})
	var enrolled []models.EnrolledCourse
	for _, name := range names {
		course, ok := byName[name]
		if !ok {
			log.Warn("skipping enrolled course with unknown name", zap.String("name", name))
			skipped = append(skipped, name)
			continue
		}
		if _, dup := seen[course.ID]; dup {
			continue
		}
		seen[course.ID] = struct{}{}
		enrolled = append(enrolled, models.EnrolledCourse{CourseID: course.ID})
	}
	return enrolled, skipped, nil
}

func (s *SyncService) trackLabels(tracks []models.StudentTrack) map[string]int64 {
	labels := make(map[string]int64, 2)
	for _, t := range tracks {
		switch t.Rank {
		case models.TrackRankPrimary:
			labels[s.cfg.PrimaryTrackLabel] = t.TrackID
		case models.TrackRankSecondary:
			labels[s.cfg.SecondaryTrackLabel] = t.TrackID
		}
	}
	return labels
}

// averageGPA is the mean of every semester GPA the page reports. Semesters without a
// numeric value do not count; no value at all yields 0.
func averageGPA(semesters []portal.Semester) float64 {
	var sum float64
	var n int
	for _, sem := range semesters {
		if v, ok := sem.GPA(); ok {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return models.ClampGPA(sum / float64(n))
}

// gradeLevel trusts the page when it states one and otherwise counts academic years
// from the first graded semester.
func gradeLevel(stated, year, firstYear int) int {
	level := stated
	if level == 0 && year > 0 && firstYear > 0 {
		level = year - firstYear + 1
	}
	switch {
	case level < minGradeLevel:
		return minGradeLevel
	case level > maxGradeLevel:
		return maxGradeLevel
	default:
		return level
	}
}

func earliestYear(rows []portal.CompletedRow) int {
	first := 0
	for _, row := range rows {
		if row.Year > 0 && (first == 0 || row.Year < first) {
			first = row.Year
		}
	}
	return first
}

func portalError(err error) error {
	if errors.Is(err, portal.ErrAuthentication) {
		return appErrors.WrapAs(appErrors.ErrAuthentication, err, "invalid portal credentials")
	}
	return appErrors.WrapAs(appErrors.ErrExternalService, err, "portal unavailable")
}

func syncOutcome(err error) string {
	switch {
	case err == nil:
		return SyncResultSuccess
	case errors.Is(err, appErrors.ErrAuthentication):
		return SyncResultAuthFailed
	case errors.Is(err, appErrors.ErrExternalService):
		return SyncResultPortalError
	default:
		return SyncResultError
	}
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
