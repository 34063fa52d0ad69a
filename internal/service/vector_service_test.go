package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/advising-api/internal/dto"
	"github.com/noah-isme/advising-api/internal/models"
	appErrors "github.com/noah-isme/advising-api/pkg/errors"
	"github.com/noah-isme/advising-api/pkg/jobs"
	"github.com/noah-isme/advising-api/pkg/vectorstore"
)

type fakeVectorStore struct {
	readyErr  error
	ensured   int
	upserted  []vectorstore.Point
	upsertErr error
	matches   []vectorstore.Match
	searchErr error
	searchedN int
	cleared   []string
	stats     *vectorstore.Stats
	statsErr  error
}

func (f *fakeVectorStore) Ready(context.Context) error { return f.readyErr }

func (f *fakeVectorStore) EnsureCollection(context.Context) error {
	f.ensured++
	return nil
}

func (f *fakeVectorStore) Upsert(_ context.Context, points []vectorstore.Point) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserted = append(f.upserted, points...)
	return nil
}

func (f *fakeVectorStore) Search(_ context.Context, _ []float32, limit int) ([]vectorstore.Match, error) {
	f.searchedN = limit
	return f.matches, f.searchErr
}

func (f *fakeVectorStore) Clear(_ context.Context, kind string) error {
	f.cleared = append(f.cleared, kind)
	return nil
}

func (f *fakeVectorStore) Stats(context.Context) (*vectorstore.Stats, error) {
	return f.stats, f.statsErr
}

type fakeQueue struct {
	submitted []string
	statuses  map[string]jobs.Status
}

func (f *fakeQueue) Submit(jobType string, _ interface{}) (string, error) {
	f.submitted = append(f.submitted, jobType)
	return "job-1", nil
}

func (f *fakeQueue) Status(id string) (jobs.Status, bool) {
	st, ok := f.statuses[id]
	return st, ok
}

type failingEmbedder struct{}

func (failingEmbedder) Name() string { return "failing" }

func (failingEmbedder) Embed(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("upstream down")
}

func strPtr(s string) *string { return &s }

func vectorCatalog(n int) []models.Course {
	courses := make([]models.Course, 0, n)
	for i := 0; i < n; i++ {
		code := fmt.Sprintf("CS%03d", i+1)
		courses = append(courses, models.Course{ID: int64(i + 1), Code: code, Name: "Course " + code})
	}
	return courses
}

func TestRandomEmbedderIsDeterministicAndNormalised(t *testing.T) {
	e := NewRandomEmbedder(16)
	first, err := e.Embed(context.Background(), []string{"웹프로그래밍", "자료구조"})
	require.NoError(t, err)
	again, err := e.Embed(context.Background(), []string{"웹프로그래밍"})
	require.NoError(t, err)

	require.Len(t, first, 2)
	assert.Equal(t, first[0], again[0])
	assert.NotEqual(t, first[0], first[1])
	assert.Len(t, first[0], 16)

	var norm float64
	for _, v := range first[0] {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)
}

func TestRandomEmbedderRejectsBadDimension(t *testing.T) {
	_, err := NewRandomEmbedder(0).Embed(context.Background(), []string{"x"})
	assert.Error(t, err)
}

type stubEmbeddingClient struct {
	vectors [][]float32
}

func (s stubEmbeddingClient) Embed(context.Context, []string) ([][]float32, error) {
	return s.vectors, nil
}

func TestRemoteEmbedderChecksDimension(t *testing.T) {
	e := NewRemoteEmbedder(stubEmbeddingClient{vectors: [][]float32{{1, 2, 3}}}, 4)
	_, err := e.Embed(context.Background(), []string{"x"})
	assert.Error(t, err)

	e = NewRemoteEmbedder(stubEmbeddingClient{vectors: [][]float32{{1, 2, 3, 4}}}, 4)
	out, err := e.Embed(context.Background(), []string{"x"})
	require.NoError(t, err)
	assert.Len(t, out[0], 4)
}

func TestNewEmbedderSelectsMode(t *testing.T) {
	assert.Equal(t, EmbedderRemote, NewEmbedder("remote", stubEmbeddingClient{}, 4).Name())
	assert.Equal(t, EmbedderRandom, NewEmbedder("remote", nil, 4).Name())
	assert.Equal(t, EmbedderRandom, NewEmbedder("bogus", stubEmbeddingClient{}, 4).Name())
}

func TestEmbedCoursesBatchesEveryCourse(t *testing.T) {
	store := &fakeVectorStore{}
	courses := vectorCatalog(embedBatchSize + 5)
	courses[0].Description = strPtr("HTML and CSS")
	svc := NewVectorService(store, &fakeCourseRepo{courses: courses}, NewRandomEmbedder(8), nil, nil)

	n, err := svc.EmbedCourses(context.Background())
	require.NoError(t, err)
	assert.Equal(t, len(courses), n)
	assert.Equal(t, 1, store.ensured)
	require.Len(t, store.upserted, len(courses))
	assert.Equal(t, courses[0].Code, store.upserted[0].ID)
	assert.Equal(t, courses[0].Name, store.upserted[0].Payload["name"])
	assert.Len(t, store.upserted[0].Vector, 8)
}

func TestEmbedCoursesUpsertFailureIsExternal(t *testing.T) {
	store := &fakeVectorStore{upsertErr: errors.New("qdrant down")}
	svc := NewVectorService(store, &fakeCourseRepo{courses: vectorCatalog(2)}, NewRandomEmbedder(8), nil, nil)

	_, err := svc.EmbedCourses(context.Background())
	assert.True(t, errors.Is(err, appErrors.ErrExternalService))
}

func TestCourseTextIncludesDescription(t *testing.T) {
	assert.Equal(t, "CS101 웹프로그래밍", courseText(models.Course{Code: "CS101", Name: "웹프로그래밍"}))
	assert.Equal(t, "CS101 웹프로그래밍 HTML", courseText(models.Course{Code: "CS101", Name: "웹프로그래밍", Description: strPtr(" HTML ")}))
}

func TestEmbedAllSubmitsJob(t *testing.T) {
	queue := &fakeQueue{statuses: map[string]jobs.Status{"job-1": {ID: "job-1", State: jobs.StateRunning}}}
	svc := NewVectorService(&fakeVectorStore{}, &fakeCourseRepo{}, NewRandomEmbedder(8), nil, nil)

	_, err := svc.EmbedAll(context.Background())
	assert.True(t, errors.Is(err, appErrors.ErrInternal))

	svc.AttachQueue(queue)
	resp, err := svc.EmbedAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "job-1", resp.JobID)
	assert.Equal(t, []string{JobTypeEmbedCourses}, queue.submitted)

	st, err := svc.JobStatus("job-1")
	require.NoError(t, err)
	assert.Equal(t, jobs.StateRunning, st.State)

	_, err = svc.JobStatus("missing")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestHandleJobRejectsUnknownType(t *testing.T) {
	svc := NewVectorService(&fakeVectorStore{}, &fakeCourseRepo{}, NewRandomEmbedder(8), nil, nil)
	assert.Error(t, svc.HandleJob(context.Background(), jobs.Job{Type: "other"}))
	assert.NoError(t, svc.HandleJob(context.Background(), jobs.Job{Type: JobTypeEmbedCourses}))
}

func TestVectorSearchMapsHits(t *testing.T) {
	store := &fakeVectorStore{matches: []vectorstore.Match{
		{ID: "x", Score: 0.9, Payload: map[string]any{"code": "CS101", "name": "웹프로그래밍"}},
		{ID: "CS102", Score: 0.5, Payload: map[string]any{}},
	}}
	svc := NewVectorService(store, &fakeCourseRepo{}, NewRandomEmbedder(8), nil, nil)

	hits, err := svc.Search(context.Background(), dto.VectorSearchQuery{Query: " web "})
	require.NoError(t, err)
	assert.Equal(t, defaultSearchLimit, store.searchedN)
	assert.Equal(t, []dto.VectorSearchHit{
		{Code: "CS101", Name: "웹프로그래밍", Score: 0.9},
		{Code: "CS102", Score: 0.5},
	}, hits)
}

func TestVectorSearchValidation(t *testing.T) {
	svc := NewVectorService(&fakeVectorStore{}, &fakeCourseRepo{}, NewRandomEmbedder(8), nil, nil)
	_, err := svc.Search(context.Background(), dto.VectorSearchQuery{Query: "   "})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestVectorSearchEmbedderFailure(t *testing.T) {
	svc := NewVectorService(&fakeVectorStore{}, &fakeCourseRepo{}, failingEmbedder{}, nil, nil)
	_, err := svc.Search(context.Background(), dto.VectorSearchQuery{Query: "web"})
	assert.True(t, errors.Is(err, appErrors.ErrExternalService))
}

func TestVectorHealth(t *testing.T) {
	store := &fakeVectorStore{stats: &vectorstore.Stats{Status: "green", PointsCount: 42, VectorSize: 8, Distance: "Cosine"}}
	svc := NewVectorService(store, &fakeCourseRepo{}, NewRandomEmbedder(8), nil, nil)

	h, err := svc.Health(context.Background())
	require.NoError(t, err)
	assert.True(t, h.Ready)
	assert.Equal(t, int64(42), h.PointsCount)
	assert.Equal(t, EmbedderRandom, h.Embedder)

	store.statsErr = &vectorstore.OperationError{Code: vectorstore.CodeNotFound}
	h, err = svc.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "missing", h.Status)

	store.readyErr = errors.New("refused")
	h, err = svc.Health(context.Background())
	require.NoError(t, err)
	assert.False(t, h.Ready)
	assert.Equal(t, "unavailable", h.Status)
}

func TestVectorClear(t *testing.T) {
	store := &fakeVectorStore{}
	svc := NewVectorService(store, &fakeCourseRepo{}, NewRandomEmbedder(8), nil, nil)
	require.NoError(t, svc.Clear(context.Background()))
	assert.Equal(t, []string{vectorstore.KindCourse}, store.cleared)
}
