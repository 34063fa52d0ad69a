package service

import (
	"context"
	"database/sql"
	"errors"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/advising-api/internal/dto"
	"github.com/noah-isme/advising-api/internal/models"
	appErrors "github.com/noah-isme/advising-api/pkg/errors"
	"github.com/noah-isme/advising-api/pkg/llm"
)

const (
	defaultRecommendTopK  = 20
	recommendTemperature  = 0.2
	recommendSystemPrompt = "You are an academic advisor for a computer science department. " +
		"Answer only with a JSON array of objects with the fields course_code, grade, semester and reason. " +
		"grade is the school year 1-4 and semester is 1 or 2. Only use course codes from the candidate list."
)

type chatClient interface {
	Chat(ctx context.Context, messages []llm.Message, temperature float64) (string, error)
}

type recommendationRecordRepository interface {
	ListTracks(ctx context.Context, studentID string) ([]models.StudentTrack, error)
	ListCompleted(ctx context.Context, studentID string) ([]models.CompletedCourseDetail, error)
}

type recommendationCourseRepository interface {
	FindByCodes(ctx context.Context, codes []string) ([]models.Course, error)
}

type recommendationStore interface {
	Replace(ctx context.Context, studentID string, courses []models.RecommendedCourse) error
	List(ctx context.Context, studentID string) ([]models.RecommendedCourseDetail, error)
}

// RecommendationServiceParams groups constructor dependencies.
type RecommendationServiceParams struct {
	Students        graduationStudentRepository
	Records         recommendationRecordRepository
	Courses         recommendationCourseRepository
	Recommendations recommendationStore
	Vectors         *VectorService
	Chat            chatClient
	Cache           *CacheService
	Metrics         *MetricsService
	Logger          *zap.Logger
	TopK            int
}

// RecommendationService asks the language model for next courses and stores the answer.
type RecommendationService struct {
	students        graduationStudentRepository
	records         recommendationRecordRepository
	courses         recommendationCourseRepository
	recommendations recommendationStore
	vectors         *VectorService
	chat            chatClient
	cache           *CacheService
	metrics         *MetricsService
	logger          *zap.Logger
	topK            int
	now             func() time.Time
}

// NewRecommendationService constructs a RecommendationService.
func NewRecommendationService(params RecommendationServiceParams) *RecommendationService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	topK := params.TopK
	if topK <= 0 {
		topK = defaultRecommendTopK
	}
	return &RecommendationService{
		students:        params.Students,
		records:         params.Records,
		courses:         params.Courses,
		recommendations: params.Recommendations,
		vectors:         params.Vectors,
		chat:            params.Chat,
		cache:           params.Cache,
		metrics:         params.Metrics,
		logger:          logger,
		topK:            topK,
		now:             time.Now,
	}
}

// Recommend runs one recommendation round for the student and replaces the stored list.
func (s *RecommendationService) Recommend(ctx context.Context, studentID string) (resp *dto.RecommendationResponse, err error) {
	defer func() {
		result := "success"
		if err != nil {
			result = "error"
		}
		s.metrics.RecordRecommendation(result)
	}()

	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, internalError(err, "failed to load student")
	}

	var (
		tracks    []models.StudentTrack
		completed []models.CompletedCourseDetail
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
	if err := g.Wait(); err != nil {
		return nil, internalError(err, "failed to load academic record")
	}

	taken := make(map[string]struct{}, len(completed))
	for _, c := range completed {
		taken[c.Code] = struct{}{}
	}

	matches, err := s.vectors.searchText(ctx, profileQuery(tracks, completed), s.topK)
	if err != nil {
		return nil, err
	}
	codes := make([]string, 0, len(matches))
	for _, m := range matches {
		code := matchCode(m)
		if _, done := taken[code]; done || code == "" {
			continue
		}
		codes = append(codes, code)
	}
	codes = uniqueStrings(codes)

	var candidates []models.Course
	if len(codes) > 0 {
		candidates, err = s.courses.FindByCodes(ctx, codes)
		if err != nil {
			return nil, internalError(err, "failed to resolve candidate courses")
		}
	}
	if len(candidates) == 0 {
		return nil, appErrors.Clone(appErrors.ErrExternalService, "vector search returned no candidate courses")
	}

	reply, err := s.chat.Chat(ctx, []llm.Message{
		{Role: "system", Content: recommendSystemPrompt},
		{Role: "user", Content: buildPrompt(student, tracks, completed, candidates)},
	}, recommendTemperature)
	if err != nil {
		return nil, externalError(err, "recommendation model request failed")
	}

	var items []dto.RecommendationItem
	if err := json.Unmarshal([]byte(llm.ExtractJSON(reply)), &items); err != nil {
		return nil, externalError(err, "recommendation model returned malformed JSON")
	}

	rows, skipped := s.resolveItems(studentID, items, candidates)
	if err := s.recommendations.Replace(ctx, studentID, rows); err != nil {
		return nil, internalError(err, "failed to store recommendations")
	}
	if err := s.cache.InvalidateStudent(ctx, studentID); err != nil {
		s.logger.Warn("failed to invalidate graduation cache", zap.String("student_id", studentID), zap.Error(err))
	}

	stored, err := s.recommendations.List(ctx, studentID)
	if err != nil {
		return nil, internalError(err, "failed to load recommendations")
	}

	s.logger.Info("recommendations generated",
		zap.String("student_id", studentID),
		zap.Int("candidates", len(candidates)),
		zap.Int("stored", len(rows)),
		zap.Int("skipped", len(skipped)))

	return &dto.RecommendationResponse{
		StudentID:   studentID,
		Courses:     stored,
		Skipped:     skipped,
		GeneratedAt: s.now().UTC(),
	}, nil
}

// resolveItems keeps answers naming a candidate course with a valid target term.
func (s *RecommendationService) resolveItems(studentID string, items []dto.RecommendationItem, candidates []models.Course) ([]models.RecommendedCourse, []string) {
	byCode := make(map[string]models.Course, len(candidates))
	for _, c := range candidates {
		byCode[c.Code] = c
	}

	rows := make([]models.RecommendedCourse, 0, len(items))
	seen := make(map[int64]struct{}, len(items))
	var skipped []string
	for _, item := range items {
		code := strings.TrimSpace(item.CourseCode)
		course, ok := byCode[code]
		if !ok {
			s.logger.Warn("recommendation names unknown course", zap.String("course_code", code))
			skipped = append(skipped, code)
			continue
		}
		semester, ok := models.SemesterFromNumber(item.Semester)
		if !ok || item.Grade < minGradeLevel || item.Grade > maxGradeLevel {
			s.logger.Warn("recommendation has invalid term",
				zap.String("course_code", code), zap.Int("grade", item.Grade), zap.Int("semester", item.Semester))
			skipped = append(skipped, code)
			continue
		}
		if _, dup := seen[course.ID]; dup {
			continue
		}
		seen[course.ID] = struct{}{}
		rows = append(rows, models.RecommendedCourse{
			StudentID:         studentID,
			CourseID:          course.ID,
			RecommendGrade:    item.Grade,
			RecommendSemester: semester,
			Reason:            strings.TrimSpace(item.Reason),
		})
	}
	return rows, skipped
}

func profileQuery(tracks []models.StudentTrack, completed []models.CompletedCourseDetail) string {
	parts := make([]string, 0, len(tracks)+len(completed))
	for _, t := range tracks {
		parts = append(parts, t.TrackName)
	}
	for _, c := range completed {
		parts = append(parts, c.Name)
	}
	if len(parts) == 0 {
		return "computer science"
	}
	return strings.Join(parts, " ")
}

func buildPrompt(student *models.Student, tracks []models.StudentTrack, completed []models.CompletedCourseDetail, candidates []models.Course) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Student GPA: %.2f\n", student.GPA)

	b.WriteString("Declared tracks:")
	for _, t := range tracks {
		fmt.Fprintf(&b, " %s (%s)", t.TrackName, t.Rank)
	}
	b.WriteString("\n\nCompleted courses:\n")
	for _, c := range completed {
		fmt.Fprintf(&b, "- %s %s, year %d semester %d, grade %s\n", c.Code, c.Name, c.GradeLevel, c.Semester.Number(), c.Grade)
	}
	b.WriteString("\nCandidate courses:\n")
	for _, c := range candidates {
		fmt.Fprintf(&b, "- %s %s (%d credits, offered year %d semester %d)\n", c.Code, c.Name, c.Credits, c.OpenYear, c.OpenSemester.Number())
	}
	b.WriteString("\nRecommend the courses the student should take next and when.")
	return b.String()
}
