package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/advising-api/internal/dto"
	"github.com/noah-isme/advising-api/internal/models"
	appErrors "github.com/noah-isme/advising-api/pkg/errors"
	"github.com/noah-isme/advising-api/pkg/jobs"
	"github.com/noah-isme/advising-api/pkg/vectorstore"
)

// JobTypeEmbedCourses is the queue job that embeds the whole catalog.
const JobTypeEmbedCourses = "embed_courses"

const (
	embedBatchSize     = 32
	defaultSearchLimit = 10
)

type vectorStore interface {
	Ready(ctx context.Context) error
	EnsureCollection(ctx context.Context) error
	Upsert(ctx context.Context, points []vectorstore.Point) error
	Search(ctx context.Context, vector []float32, limit int) ([]vectorstore.Match, error)
	Clear(ctx context.Context, kind string) error
	Stats(ctx context.Context) (*vectorstore.Stats, error)
}

type vectorCourseRepository interface {
	ListAll(ctx context.Context) ([]models.Course, error)
}

type jobSubmitter interface {
	Submit(jobType string, payload interface{}) (string, error)
	Status(id string) (jobs.Status, bool)
}

// VectorService administers the course embedding collection.
type VectorService struct {
	store     vectorStore
	courses   vectorCourseRepository
	embedder  Embedder
	queue     jobSubmitter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewVectorService constructs a VectorService. Call AttachQueue before EmbedAll.
func NewVectorService(store vectorStore, courses vectorCourseRepository, embedder Embedder, validate *validator.Validate, logger *zap.Logger) *VectorService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VectorService{store: store, courses: courses, embedder: embedder, validator: validate, logger: logger}
}

// AttachQueue sets the queue EmbedAll submits to. The queue's handler is HandleJob.
func (s *VectorService) AttachQueue(queue jobSubmitter) {
	s.queue = queue
}

// EmbedAll schedules a background embedding of every live course.
func (s *VectorService) EmbedAll(ctx context.Context) (*dto.EmbedJobResponse, error) {
	if s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "embedding queue not configured")
	}
	id, err := s.queue.Submit(JobTypeEmbedCourses, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to schedule embedding job")
	}
	return &dto.EmbedJobResponse{JobID: id, State: string(jobs.StateQueued)}, nil
}

// JobStatus reports an embedding job by ID.
func (s *VectorService) JobStatus(id string) (*jobs.Status, error) {
	if s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "job not found")
	}
	st, ok := s.queue.Status(id)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "job not found")
	}
	return &st, nil
}

// HandleJob is the queue handler for embedding jobs.
func (s *VectorService) HandleJob(ctx context.Context, job jobs.Job) error {
	if job.Type != JobTypeEmbedCourses {
		return errors.New("unsupported job type " + job.Type)
	}
	_, err := s.EmbedCourses(ctx)
	return err
}

// EmbedCourses embeds every live course and upserts it, returning the number written.
func (s *VectorService) EmbedCourses(ctx context.Context) (int, error) {
	start := time.Now()
	if err := s.store.EnsureCollection(ctx); err != nil {
		return 0, externalError(err, "vector collection unavailable")
	}
	courses, err := s.courses.ListAll(ctx)
	if err != nil {
		return 0, internalError(err, "failed to list courses")
	}

	written := 0
	for from := 0; from < len(courses); from += embedBatchSize {
		to := from + embedBatchSize
		if to > len(courses) {
			to = len(courses)
		}
		batch := courses[from:to]

		texts := make([]string, 0, len(batch))
		for _, c := range batch {
			texts = append(texts, courseText(c))
		}
		vectors, err := s.embedder.Embed(ctx, texts)
		if err != nil {
			return written, externalError(err, "embedding request failed")
		}

		points := make([]vectorstore.Point, 0, len(batch))
		for i, c := range batch {
			points = append(points, vectorstore.Point{
				ID:      c.Code,
				Vector:  vectors[i],
				Payload: map[string]any{"code": c.Code, "name": c.Name},
			})
		}
		if err := s.store.Upsert(ctx, points); err != nil {
			return written, externalError(err, "vector upsert failed")
		}
		written += len(points)
	}

	s.logger.Info("course embeddings written",
		zap.Int("courses", written),
		zap.String("embedder", s.embedder.Name()),
		zap.Duration("elapsed", time.Since(start)))
	return written, nil
}

// Search embeds the query and returns the closest courses.
func (s *VectorService) Search(ctx context.Context, query dto.VectorSearchQuery) ([]dto.VectorSearchHit, error) {
	query.Query = strings.TrimSpace(query.Query)
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid search query")
	}
	limit := query.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	matches, err := s.searchText(ctx, query.Query, limit)
	if err != nil {
		return nil, err
	}
	hits := make([]dto.VectorSearchHit, 0, len(matches))
	for _, m := range matches {
		hits = append(hits, dto.VectorSearchHit{Code: matchCode(m), Name: payloadString(m.Payload, "name"), Score: m.Score})
	}
	return hits, nil
}

func (s *VectorService) searchText(ctx context.Context, text string, limit int) ([]vectorstore.Match, error) {
	vectors, err := s.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, externalError(err, "embedding request failed")
	}
	if len(vectors) == 0 {
		return nil, appErrors.Clone(appErrors.ErrExternalService, "embedding response was empty")
	}
	matches, err := s.store.Search(ctx, vectors[0], limit)
	if err != nil {
		return nil, externalError(err, "vector search failed")
	}
	return matches, nil
}

// Health reports readiness and collection statistics. A missing collection is reported,
// not treated as an error.
func (s *VectorService) Health(ctx context.Context) (*dto.VectorHealth, error) {
	health := &dto.VectorHealth{Embedder: s.embedder.Name()}
	if err := s.store.Ready(ctx); err != nil {
		s.logger.Warn("vector store not ready", zap.Error(err))
		health.Status = "unavailable"
		return health, nil
	}
	health.Ready = true

	stats, err := s.store.Stats(ctx)
	if err != nil {
		var opErr *vectorstore.OperationError
		if errors.As(err, &opErr) && opErr.Code == vectorstore.CodeNotFound {
			health.Status = "missing"
			return health, nil
		}
		return nil, externalError(err, "vector stats unavailable")
	}
	health.Status = stats.Status
	health.PointsCount = stats.PointsCount
	health.VectorSize = stats.VectorSize
	health.Distance = stats.Distance
	return health, nil
}

// Clear removes every course point from the collection.
func (s *VectorService) Clear(ctx context.Context) error {
	if err := s.store.Clear(ctx, vectorstore.KindCourse); err != nil {
		return externalError(err, "vector clear failed")
	}
	s.logger.Info("course embeddings cleared")
	return nil
}

func courseText(c models.Course) string {
	parts := []string{c.Code, c.Name}
	if c.Description != nil && strings.TrimSpace(*c.Description) != "" {
		parts = append(parts, strings.TrimSpace(*c.Description))
	}
	return strings.Join(parts, " ")
}

func matchCode(m vectorstore.Match) string {
	if code := payloadString(m.Payload, "code"); code != "" {
		return code
	}
	return m.ID
}

func payloadString(payload map[string]any, key string) string {
	v, _ := payload[key].(string)
	return v
}

func externalError(err error, message string) error {
	return appErrors.WrapAs(appErrors.ErrExternalService, err, message)
}
