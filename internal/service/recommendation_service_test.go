package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/advising-api/internal/models"
	appErrors "github.com/noah-isme/advising-api/pkg/errors"
	"github.com/noah-isme/advising-api/pkg/llm"
	"github.com/noah-isme/advising-api/pkg/vectorstore"
)

type fakeChat struct {
	reply    string
	err      error
	messages []llm.Message
}

func (f *fakeChat) Chat(_ context.Context, messages []llm.Message, _ float64) (string, error) {
	f.messages = messages
	return f.reply, f.err
}

func recommendationCatalog() []models.Course {
	return []models.Course{
		{ID: 1, Code: "CS101", Name: "웹프로그래밍", Credits: 3, OpenYear: 1, OpenSemester: models.SemesterFirst},
		{ID: 2, Code: "CS201", Name: "웹서버프로그래밍", Credits: 3, OpenYear: 2, OpenSemester: models.SemesterFirst},
		{ID: 3, Code: "AI201", Name: "머신러닝", Credits: 3, OpenYear: 2, OpenSemester: models.SemesterSecond},
	}
}

type recommendationFixture struct {
	svc   *RecommendationService
	store *fakeVectorStore
	chat  *fakeChat
	recs  *fakeRecommendationRepo
	cache *memoryCacheRepo
}

func newRecommendationFixture(reply string) *recommendationFixture {
	store := &fakeVectorStore{matches: []vectorstore.Match{
		{ID: "CS101", Score: 0.9, Payload: map[string]any{"code": "CS101"}},
		{ID: "CS201", Score: 0.8, Payload: map[string]any{"code": "CS201"}},
		{ID: "AI201", Score: 0.7, Payload: map[string]any{"code": "AI201"}},
	}}
	courses := &fakeCourseRepo{courses: recommendationCatalog()}
	chat := &fakeChat{reply: reply}
	recs := &fakeRecommendationRepo{}
	cacheRepo := newMemoryCacheRepo()
	students := &fakeStudentRepo{students: map[string]models.Student{"s1": {ID: "s1", Name: "Kim", GPA: 3.8}}}
	records := &fakeGraduationRecords{
		tracks:    declaredTracks,
		completed: []models.CompletedCourseDetail{completedRow(1, "CS101", 3, 1, models.SemesterFirst, models.GradeAPlus, trackID(1))},
	}

	svc := NewRecommendationService(RecommendationServiceParams{
		Students:        students,
		Records:         records,
		Courses:         courses,
		Recommendations: recs,
		Vectors:         NewVectorService(store, courses, NewRandomEmbedder(8), nil, nil),
		Chat:            chat,
		Cache:           NewCacheService(cacheRepo, nil, time.Minute, nil, true),
		TopK:            5,
	})
	svc.now = func() time.Time { return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC) }
	return &recommendationFixture{svc: svc, store: store, chat: chat, recs: recs, cache: cacheRepo}
}

func TestRecommendStoresValidatedAnswer(t *testing.T) {
	reply := "Here you go:\n```json\n[" +
		`{"course_code":"CS201","grade":2,"semester":1,"reason":"builds on web"},` +
		`{"course_code":"AI201","grade":2,"semester":2,"reason":"second track"},` +
		`{"course_code":"CS201","grade":3,"semester":1,"reason":"duplicate"},` +
		`{"course_code":"CS101","grade":2,"semester":1,"reason":"already done"},` +
		`{"course_code":"ZZ999","grade":2,"semester":1,"reason":"made up"},` +
		`{"course_code":"AI201","grade":5,"semester":1,"reason":"bad grade"}` +
		"]\n```"
	f := newRecommendationFixture(reply)

	resp, err := f.svc.Recommend(context.Background(), "s1")
	require.NoError(t, err)

	require.Len(t, f.recs.replaced, 2)
	assert.Equal(t, int64(2), f.recs.replaced[0].CourseID)
	assert.Equal(t, models.SemesterFirst, f.recs.replaced[0].RecommendSemester)
	assert.Equal(t, int64(3), f.recs.replaced[1].CourseID)
	assert.Equal(t, models.SemesterSecond, f.recs.replaced[1].RecommendSemester)
	assert.Equal(t, "second track", f.recs.replaced[1].Reason)

	assert.Equal(t, []string{"CS101", "ZZ999", "AI201"}, resp.Skipped)
	assert.Equal(t, "s1", resp.StudentID)
	assert.Equal(t, 5, f.store.searchedN)
	assert.Contains(t, f.cache.invalidated, "grad:s1:*")
}

func TestRecommendSucceedsWhenCacheInvalidationFails(t *testing.T) {
	f := newRecommendationFixture(`[{"course_code":"CS201","grade":2,"semester":1,"reason":"next"}]`)
	f.cache.deleteErr = errors.New("redis down")

	resp, err := f.svc.Recommend(context.Background(), "s1")
	require.NoError(t, err)
	assert.Len(t, f.recs.replaced, 1)
	assert.Equal(t, "s1", resp.StudentID)
	assert.Contains(t, f.cache.invalidated, "grad:s1:*")
}

func TestRecommendPromptListsOnlyUntakenCandidates(t *testing.T) {
	f := newRecommendationFixture(`[]`)

	_, err := f.svc.Recommend(context.Background(), "s1")
	require.NoError(t, err)

	require.Len(t, f.chat.messages, 2)
	prompt := f.chat.messages[1].Content
	assert.Contains(t, prompt, "- CS201 웹서버프로그래밍")
	assert.Contains(t, prompt, "- AI201 머신러닝")
	assert.NotContains(t, prompt, "- CS101 웹프로그래밍 (")
	assert.Contains(t, prompt, "웹공학 (PRIMARY)")
	assert.Empty(t, f.recs.replaced)
}

func TestRecommendMalformedReplyIsExternal(t *testing.T) {
	f := newRecommendationFixture("I cannot help with that.")

	_, err := f.svc.Recommend(context.Background(), "s1")
	assert.True(t, errors.Is(err, appErrors.ErrExternalService))
	assert.Nil(t, f.recs.replaced)
}

func TestRecommendChatFailureIsExternal(t *testing.T) {
	f := newRecommendationFixture("")
	f.chat.err = errors.New("timeout")

	_, err := f.svc.Recommend(context.Background(), "s1")
	assert.True(t, errors.Is(err, appErrors.ErrExternalService))
}

func TestRecommendWithoutCandidates(t *testing.T) {
	f := newRecommendationFixture(`[]`)
	f.store.matches = []vectorstore.Match{{ID: "CS101", Payload: map[string]any{"code": "CS101"}}}

	_, err := f.svc.Recommend(context.Background(), "s1")
	assert.True(t, errors.Is(err, appErrors.ErrExternalService))
	assert.Nil(t, f.chat.messages)
}

func TestRecommendUnknownStudent(t *testing.T) {
	f := newRecommendationFixture(`[]`)
	_, err := f.svc.Recommend(context.Background(), "nobody")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestProfileQueryFallback(t *testing.T) {
	assert.Equal(t, "computer science", profileQuery(nil, nil))
	assert.Equal(t, "웹공학 인공지능", profileQuery(declaredTracks, nil))
}
