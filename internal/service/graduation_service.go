package service

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/advising-api/internal/dto"
	"github.com/noah-isme/advising-api/internal/models"
	appErrors "github.com/noah-isme/advising-api/pkg/errors"
)

// Certification names in display order.
const (
	CertificationCapstone = "capstone"
	CertificationThesis   = "thesis"
	CertificationAward    = "award"
)

type graduationStudentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type graduationRecordRepository interface {
	ListTracks(ctx context.Context, studentID string) ([]models.StudentTrack, error)
	ListCompleted(ctx context.Context, studentID string) ([]models.CompletedCourseDetail, error)
	ListEnrolled(ctx context.Context, studentID string) ([]models.EnrolledCourseDetail, error)
}

type graduationRecommendationRepository interface {
	List(ctx context.Context, studentID string) ([]models.RecommendedCourseDetail, error)
}

type graduationRequirementRepository interface {
	Get(ctx context.Context, studentID string) (*models.GraduationRequirement, error)
}

type graduationTrackRepository interface {
	ListRequirements(ctx context.Context, trackIDs []int64) ([]models.TrackRequirementDetail, error)
}

type graduationCourseRepository interface {
	ListPrerequisites(ctx context.Context, courseIDs []int64) ([]models.CoursePrerequisite, error)
}

// GraduationConfig carries the credit policy.
type GraduationConfig struct {
	TrackRequiredCredits int
	TotalRequiredCredits int
	CacheTTL             time.Duration
}

// GraduationService builds dashboard, roadmap and simulation views from stored records.
type GraduationService struct {
	students        graduationStudentRepository
	records         graduationRecordRepository
	recommendations graduationRecommendationRepository
	requirements    graduationRequirementRepository
	tracks          graduationTrackRepository
	courses         graduationCourseRepository
	cache           *CacheService
	logger          *zap.Logger
	cfg             GraduationConfig
}

// GraduationServiceParams groups constructor dependencies.
type GraduationServiceParams struct {
	Students        graduationStudentRepository
	Records         graduationRecordRepository
	Recommendations graduationRecommendationRepository
	Requirements    graduationRequirementRepository
	Tracks          graduationTrackRepository
	Courses         graduationCourseRepository
	Cache           *CacheService
	Logger          *zap.Logger
	Config          GraduationConfig
}

// NewGraduationService constructs a GraduationService.
func NewGraduationService(params GraduationServiceParams) *GraduationService {
	cfg := params.Config
	if cfg.TrackRequiredCredits <= 0 {
		cfg.TrackRequiredCredits = 39
	}
	if cfg.TotalRequiredCredits <= 0 {
		cfg.TotalRequiredCredits = 130
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GraduationService{
		students:        params.Students,
		records:         params.Records,
		recommendations: params.Recommendations,
		requirements:    params.Requirements,
		tracks:          params.Tracks,
		courses:         params.Courses,
		cache:           params.Cache,
		logger:          logger,
		cfg:             cfg,
	}
}

// Dashboard returns credit progress and certifications. The bool reports a cache hit.
func (s *GraduationService) Dashboard(ctx context.Context, studentID string) (*dto.DashboardResponse, bool, error) {
	key := GraduationCacheKey(studentID, ViewDashboard)
	var cached dto.DashboardResponse
	if s.tryCache(ctx, key, &cached) {
		return &cached, true, nil
	}
	resp, err := s.composeDashboard(ctx, studentID)
	if err != nil {
		return nil, false, err
	}
	s.persistCache(ctx, key, resp)
	return resp, false, nil
}

// Roadmap returns completed, enrolled and recommended courses bucketed by term.
func (s *GraduationService) Roadmap(ctx context.Context, studentID string) (*dto.RoadmapResponse, bool, error) {
	key := GraduationCacheKey(studentID, ViewRoadmap)
	var cached dto.RoadmapResponse
	if s.tryCache(ctx, key, &cached) {
		return &cached, true, nil
	}
	resp, err := s.composeRoadmap(ctx, studentID)
	if err != nil {
		return nil, false, err
	}
	s.persistCache(ctx, key, resp)
	return resp, false, nil
}

// Simulation returns current progress with every course still open to the student.
func (s *GraduationService) Simulation(ctx context.Context, studentID string) (*dto.SimulationResponse, bool, error) {
	key := GraduationCacheKey(studentID, ViewSimulation)
	var cached dto.SimulationResponse
	if s.tryCache(ctx, key, &cached) {
		return &cached, true, nil
	}
	resp, err := s.composeSimulation(ctx, studentID)
	if err != nil {
		return nil, false, err
	}
	s.persistCache(ctx, key, resp)
	return resp, false, nil
}

func (s *GraduationService) composeDashboard(ctx context.Context, studentID string) (*dto.DashboardResponse, error) {
	student, err := s.loadStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}

	var (
		tracks    []models.StudentTrack
		completed []models.CompletedCourseDetail
		req       *models.GraduationRequirement
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		tracks, err = s.records.ListTracks(gctx, studentID)
		return err
	})
	g.Go(func() (err error) {
		completed, err = s.records.ListCompleted(gctx, studentID)
		return err
	})
	g.Go(func() (err error) {
		req, err = s.loadRequirement(gctx, studentID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, internalError(err, "failed to load graduation data")
	}

	return s.buildDashboard(student, tracks, completed, req), nil
}

func (s *GraduationService) buildDashboard(student *models.Student, tracks []models.StudentTrack, completed []models.CompletedCourseDetail, req *models.GraduationRequirement) *dto.DashboardResponse {
	declared := make(map[int64]int, len(tracks))
	progress := make([]dto.TrackProgress, 0, len(tracks))
	for i, t := range tracks {
		declared[t.TrackID] = i
		progress = append(progress, dto.TrackProgress{
			TrackID:         t.TrackID,
			TrackName:       t.TrackName,
			Rank:            t.Rank,
			RequiredCredits: s.cfg.TrackRequiredCredits,
		})
	}

	total := 0
	counted := make(map[int64]struct{}, len(completed))
	for _, c := range completed {
		if !earnsCredit(c.Grade) {
			continue
		}
		if _, dup := counted[c.CourseID]; dup {
			continue
		}
		counted[c.CourseID] = struct{}{}
		total += c.Credits
		if c.TrackID == nil {
			continue
		}
		if i, ok := declared[*c.TrackID]; ok {
			progress[i].CompletedCredits += c.Credits
		}
	}

	for i := range progress {
		progress[i].RemainingCredits, progress[i].Percentage = creditProgress(progress[i].CompletedCredits, progress[i].RequiredCredits)
	}
	remaining, percentage := creditProgress(total, s.cfg.TotalRequiredCredits)

	return &dto.DashboardResponse{
		StudentID:             student.ID,
		Name:                  student.Name,
		GPA:                   student.GPA,
		TotalCompletedCredits: total,
		TotalRequiredCredits:  s.cfg.TotalRequiredCredits,
		TotalRemainingCredits: remaining,
		TotalPercentage:       percentage,
		TrackProgress:         progress,
		Certifications: []dto.Certification{
			{Name: CertificationCapstone, Completed: req.Capstone},
			{Name: CertificationThesis, Completed: req.Thesis},
			{Name: CertificationAward, Completed: req.Award},
		},
		LastSyncedAt: student.LastSyncedAt,
	}
}

func (s *GraduationService) composeRoadmap(ctx context.Context, studentID string) (*dto.RoadmapResponse, error) {
	if _, err := s.loadStudent(ctx, studentID); err != nil {
		return nil, err
	}

	var (
		tracks      []models.StudentTrack
		completed   []models.CompletedCourseDetail
		enrolled    []models.EnrolledCourseDetail
		recommended []models.RecommendedCourseDetail
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		tracks, err = s.records.ListTracks(gctx, studentID)
		return err
	})
	g.Go(func() (err error) {
		completed, err = s.records.ListCompleted(gctx, studentID)
		return err
	})
	g.Go(func() (err error) {
		enrolled, err = s.records.ListEnrolled(gctx, studentID)
		return err
	})
	g.Go(func() (err error) {
		recommended, err = s.recommendations.List(gctx, studentID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, internalError(err, "failed to load roadmap data")
	}

	courseIDs := make([]int64, 0, len(completed)+len(enrolled)+len(recommended))
	for _, c := range completed {
		courseIDs = append(courseIDs, c.CourseID)
	}
	for _, c := range enrolled {
		courseIDs = append(courseIDs, c.CourseID)
	}
	for _, c := range recommended {
		courseIDs = append(courseIDs, c.CourseID)
	}

	var (
		reqs  []models.TrackRequirementDetail
		edges []models.CoursePrerequisite
	)
	g, gctx = errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		reqs, err = s.tracks.ListRequirements(gctx, trackIDs(tracks))
		return err
	})
	g.Go(func() (err error) {
		edges, err = s.courses.ListPrerequisites(gctx, uniqueIDs(courseIDs))
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, internalError(err, "failed to load roadmap references")
	}

	classify := classifier(tracks, reqs)
	prereqs := make(map[int64][]int64)
	for _, e := range edges {
		prereqs[e.CourseID] = append(prereqs[e.CourseID], e.PrerequisiteID)
	}

	level, semester := currentTerm(completed)
	buckets := newRoadmapBuckets()
	for _, c := range completed {
		buckets.add(c.GradeLevel, c.Semester, dto.RoadmapCourse{
			CourseID:        c.CourseID,
			Code:            c.Code,
			Name:            c.Name,
			Credits:         c.Credits,
			Classification:  classify(c.CourseID),
			Status:          dto.CourseStatusCompleted,
			Grade:           string(c.Grade),
			PrerequisiteIDs: idsOrEmpty(prereqs[c.CourseID]),
		})
	}
	for _, c := range enrolled {
		buckets.add(level, semester, dto.RoadmapCourse{
			CourseID:        c.CourseID,
			Code:            c.Code,
			Name:            c.Name,
			Credits:         c.Credits,
			Classification:  classify(c.CourseID),
			Status:          dto.CourseStatusEnrolled,
			PrerequisiteIDs: idsOrEmpty(prereqs[c.CourseID]),
		})
	}
	for _, c := range recommended {
		buckets.add(c.RecommendGrade, c.RecommendSemester, dto.RoadmapCourse{
			CourseID:        c.CourseID,
			Code:            c.Code,
			Name:            c.Name,
			Credits:         c.Credits,
			Classification:  classify(c.CourseID),
			Status:          dto.CourseStatusRecommended,
			Reason:          c.Reason,
			PrerequisiteIDs: idsOrEmpty(prereqs[c.CourseID]),
		})
	}

	return &dto.RoadmapResponse{
		StudentID:         studentID,
		CurrentGradeLevel: level,
		CurrentSemester:   semester,
		Semesters:         buckets.sorted(),
	}, nil
}

func (s *GraduationService) composeSimulation(ctx context.Context, studentID string) (*dto.SimulationResponse, error) {
	student, err := s.loadStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}

	var (
		tracks    []models.StudentTrack
		completed []models.CompletedCourseDetail
		req       *models.GraduationRequirement
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		tracks, err = s.records.ListTracks(gctx, studentID)
		return err
	})
	g.Go(func() (err error) {
		completed, err = s.records.ListCompleted(gctx, studentID)
		return err
	})
	g.Go(func() (err error) {
		req, err = s.loadRequirement(gctx, studentID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, internalError(err, "failed to load simulation data")
	}

	reqs, err := s.tracks.ListRequirements(ctx, trackIDs(tracks))
	if err != nil {
		return nil, internalError(err, "failed to load track requirements")
	}

	return &dto.SimulationResponse{
		CurrentStatus:    *s.buildDashboard(student, tracks, completed, req),
		AvailableCourses: availableCourses(tracks, reqs, completed),
	}, nil
}

// availableCourses unions requirements over the declared tracks without FOUNDATION
// entries. A course MANDATORY in any declared track stays MANDATORY. Completed codes are
// removed.
func availableCourses(tracks []models.StudentTrack, reqs []models.TrackRequirementDetail, completed []models.CompletedCourseDetail) []dto.SimulationCourse {
	rankOf := make(map[int64]int, len(tracks))
	for i, t := range tracks {
		rankOf[t.TrackID] = i
	}
	done := make(map[string]struct{}, len(completed))
	for _, c := range completed {
		done[c.Code] = struct{}{}
	}

	byCourse := make(map[int64]*dto.SimulationCourse)
	trackRanks := make(map[int64][]int)
	for _, r := range reqs {
		if r.CourseType == models.CourseTypeFoundation {
			continue
		}
		rank, declared := rankOf[r.TrackID]
		if !declared {
			continue
		}
		if _, ok := done[r.Code]; ok {
			continue
		}
		course, ok := byCourse[r.CourseID]
		if !ok {
			course = &dto.SimulationCourse{
				CourseID:     r.CourseID,
				Code:         r.Code,
				Name:         r.Name,
				Credits:      r.Credits,
				OpenYear:     r.OpenYear,
				OpenSemester: r.OpenSemester,
				CourseType:   r.CourseType,
			}
			byCourse[r.CourseID] = course
		} else if typePriority(r.CourseType) < typePriority(course.CourseType) {
			course.CourseType = r.CourseType
		}
		trackRanks[r.CourseID] = append(trackRanks[r.CourseID], rank)
	}

	out := make([]dto.SimulationCourse, 0, len(byCourse))
	for id, course := range byCourse {
		ranks := trackRanks[id]
		sort.Ints(ranks)
		names := make([]string, 0, len(ranks))
		for i, rank := range ranks {
			if i > 0 && ranks[i-1] == rank {
				continue
			}
			names = append(names, tracks[rank].TrackName)
		}
		course.Tracks = names
		out = append(out, *course)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.OpenYear != b.OpenYear {
			return a.OpenYear < b.OpenYear
		}
		if a.OpenSemester.Number() != b.OpenSemester.Number() {
			return a.OpenSemester.Number() < b.OpenSemester.Number()
		}
		return a.Code < b.Code
	})
	return out
}

// classifier looks a course up in the PRIMARY track's requirements, then SECONDARY.
func classifier(tracks []models.StudentTrack, reqs []models.TrackRequirementDetail) func(int64) models.CourseType {
	byTrack := make(map[int64]map[int64]models.CourseType, len(tracks))
	for _, r := range reqs {
		if byTrack[r.TrackID] == nil {
			byTrack[r.TrackID] = make(map[int64]models.CourseType)
		}
		byTrack[r.TrackID][r.CourseID] = r.CourseType
	}
	ordered := append([]models.StudentTrack(nil), tracks...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Rank < ordered[j].Rank })
	return func(courseID int64) models.CourseType {
		for _, t := range ordered {
			if ct, ok := byTrack[t.TrackID][courseID]; ok {
				return ct
			}
		}
		return models.CourseTypeGeneralElective
	}
}

// currentTerm is the term after the latest completed one, starting at grade 1 first
// semester and never past grade 4 second semester.
func currentTerm(completed []models.CompletedCourseDetail) (int, models.Semester) {
	level, term := 0, 0
	for _, c := range completed {
		n := c.Semester.Number()
		if n > 2 {
			continue
		}
		if c.GradeLevel > level || (c.GradeLevel == level && n > term) {
			level, term = c.GradeLevel, n
		}
	}
	if level == 0 {
		return minGradeLevel, models.SemesterFirst
	}
	if term == 1 {
		return level, models.SemesterSecond
	}
	if level >= maxGradeLevel {
		return maxGradeLevel, models.SemesterSecond
	}
	return level + 1, models.SemesterFirst
}

type roadmapKey struct {
	level    int
	semester models.Semester
}

type roadmapBuckets map[roadmapKey]*dto.RoadmapSemester

func newRoadmapBuckets() roadmapBuckets {
	return make(roadmapBuckets)
}

func (b roadmapBuckets) add(level int, semester models.Semester, course dto.RoadmapCourse) {
	key := roadmapKey{level: level, semester: semester}
	bucket, ok := b[key]
	if !ok {
		bucket = &dto.RoadmapSemester{GradeLevel: level, Semester: semester}
		b[key] = bucket
	}
	bucket.Courses = append(bucket.Courses, course)
	bucket.Credits += course.Credits
}

func (b roadmapBuckets) sorted() []dto.RoadmapSemester {
	out := make([]dto.RoadmapSemester, 0, len(b))
	for _, bucket := range b {
		sort.SliceStable(bucket.Courses, func(i, j int) bool {
			if statusOrder(bucket.Courses[i].Status) != statusOrder(bucket.Courses[j].Status) {
				return statusOrder(bucket.Courses[i].Status) < statusOrder(bucket.Courses[j].Status)
			}
			return bucket.Courses[i].Code < bucket.Courses[j].Code
		})
		out = append(out, *bucket)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].GradeLevel != out[j].GradeLevel {
			return out[i].GradeLevel < out[j].GradeLevel
		}
		return out[i].Semester.Number() < out[j].Semester.Number()
	})
	return out
}

func (s *GraduationService) loadStudent(ctx context.Context, studentID string) (*models.Student, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, internalError(err, "failed to load student")
	}
	return student, nil
}

// loadRequirement returns an unsaved all-false record when none exists.
func (s *GraduationService) loadRequirement(ctx context.Context, studentID string) (*models.GraduationRequirement, error) {
	req, err := s.requirements.Get(ctx, studentID)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.GraduationRequirement{StudentID: studentID}, nil
	}
	return req, err
}

func (s *GraduationService) tryCache(ctx context.Context, key string, dest interface{}) bool {
	hit, err := s.cache.Get(ctx, key, dest)
	return err == nil && hit
}

func (s *GraduationService) persistCache(ctx context.Context, key string, value interface{}) {
	if err := s.cache.Set(ctx, key, value, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("graduation cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// creditProgress never reports negative remaining credits and caps the percentage at 100.
func creditProgress(completed, required int) (int, float64) {
	remaining := required - completed
	if remaining < 0 {
		remaining = 0
	}
	if required <= 0 {
		return remaining, 100
	}
	pct := float64(completed) / float64(required) * 100
	if pct > 100 {
		pct = 100
	}
	return remaining, math.Round(pct*100) / 100
}

func earnsCredit(grade models.CompletedGrade) bool {
	return grade != models.GradeF && grade != models.GradeNoPass
}

func typePriority(t models.CourseType) int {
	switch t {
	case models.CourseTypeMandatory:
		return 0
	case models.CourseTypeElective:
		return 1
	default:
		return 2
	}
}

func statusOrder(s dto.CourseStatus) int {
	switch s {
	case dto.CourseStatusCompleted:
		return 0
	case dto.CourseStatusEnrolled:
		return 1
	default:
		return 2
	}
}

func trackIDs(tracks []models.StudentTrack) []int64 {
	ids := make([]int64, 0, len(tracks))
	for _, t := range tracks {
		ids = append(ids, t.TrackID)
	}
	return ids
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func idsOrEmpty(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}

func internalError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}
