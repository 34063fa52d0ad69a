package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/advising-api/internal/dto"
	"github.com/noah-isme/advising-api/internal/middleware"
	"github.com/noah-isme/advising-api/internal/models"
	"github.com/noah-isme/advising-api/internal/service"
	appErrors "github.com/noah-isme/advising-api/pkg/errors"
	"github.com/noah-isme/advising-api/pkg/jobs"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type envelope struct {
	Data  json.RawMessage        `json:"data"`
	Error *appErrors.Error       `json:"error"`
	Meta  map[string]interface{} `json:"meta"`
}

func asStudent(id string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextClaimsKey, &models.JWTClaims{StudentID: id})
		c.Next()
	}
}

func perform(router *gin.Engine, method, target string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var env envelope
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	return rec, env
}

type stubAuth struct {
	lastReq models.LoginRequest
}

func (s *stubAuth) Login(_ context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	s.lastReq = req
	if req.Password == "wrong" {
		return nil, appErrors.Clone(appErrors.ErrAuthentication, "portal rejected credentials")
	}
	return &models.LoginResponse{AccessToken: "token", StudentID: req.StudentID}, nil
}

type stubSync struct {
	lastReq models.LoginRequest
}

func (s *stubSync) Sync(_ context.Context, req models.LoginRequest) (*dto.SyncResult, error) {
	s.lastReq = req
	return &dto.SyncResult{StudentID: req.StudentID, CompletedCount: 3}, nil
}

func TestLoginHandler(t *testing.T) {
	auth := &stubAuth{}
	router := gin.New()
	h := NewAuthHandler(auth, &stubSync{})
	router.POST("/auth/login", h.Login)

	rec, env := perform(router, http.MethodPost, "/auth/login", models.LoginRequest{StudentID: "20201234", Password: "pw"})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.LoginResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, "token", resp.AccessToken)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	rec, env = perform(router, http.MethodPost, "/auth/login", models.LoginRequest{StudentID: "20201234", Password: "wrong"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, appErrors.ErrAuthentication.Code, env.Error.Code)
}

func TestSyncHandlerUsesClaimsIdentity(t *testing.T) {
	sync := &stubSync{}
	router := gin.New()
	h := NewAuthHandler(&stubAuth{}, sync)
	router.POST("/sync", asStudent("20201234"), h.Sync)
	router.POST("/anon/sync", h.Sync)

	rec, _ := perform(router, http.MethodPost, "/sync", gin.H{"password": "pw", "student_id": "someone-else"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "20201234", sync.lastReq.StudentID)
	assert.Equal(t, "pw", sync.lastReq.Password)

	rec, _ = perform(router, http.MethodPost, "/anon/sync", gin.H{"password": "pw"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

type stubGraduation struct {
	hit bool
	err error
}

func (s stubGraduation) Dashboard(_ context.Context, id string) (*dto.DashboardResponse, bool, error) {
	if s.err != nil {
		return nil, false, s.err
	}
	return &dto.DashboardResponse{StudentID: id, TotalRequiredCredits: 130}, s.hit, nil
}

func (s stubGraduation) Roadmap(_ context.Context, id string) (*dto.RoadmapResponse, bool, error) {
	return &dto.RoadmapResponse{StudentID: id}, s.hit, s.err
}

func (s stubGraduation) Simulation(_ context.Context, id string) (*dto.SimulationResponse, bool, error) {
	return &dto.SimulationResponse{}, s.hit, s.err
}

type stubExport struct{}

func (stubExport) Roadmap(_ context.Context, id string, q dto.ExportQuery) (*service.ExportFile, error) {
	if q.Format == "xlsx" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
	return &service.ExportFile{Filename: "roadmap-" + id + ".csv", ContentType: "text/csv; charset=utf-8", Data: []byte("a,b\n")}, nil
}

func TestDashboardHandlerReportsCacheHit(t *testing.T) {
	router := gin.New()
	router.Use(middleware.WithResponseMeta())
	h := NewGraduationHandler(stubGraduation{hit: true}, stubExport{})
	router.GET("/dashboard", asStudent("s1"), h.Dashboard)

	rec, env := perform(router, http.MethodGet, "/dashboard", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, env.Meta["cache_hit"])

	var resp dto.DashboardResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, "s1", resp.StudentID)
}

func TestDashboardHandlerNotFound(t *testing.T) {
	router := gin.New()
	h := NewGraduationHandler(stubGraduation{err: appErrors.Clone(appErrors.ErrNotFound, "student not found")}, stubExport{})
	router.GET("/dashboard", asStudent("s1"), h.Dashboard)

	rec, env := perform(router, http.MethodGet, "/dashboard", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "student not found", env.Error.Message)
}

func TestExportHandlerStreamsFile(t *testing.T) {
	router := gin.New()
	h := NewGraduationHandler(stubGraduation{}, stubExport{})
	router.GET("/roadmap/export", asStudent("s1"), h.Export)

	rec, _ := perform(router, http.MethodGet, "/roadmap/export?format=csv", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "roadmap-s1.csv")
	assert.Equal(t, "a,b\n", rec.Body.String())

	rec, _ = perform(router, http.MethodGet, "/roadmap/export?format=xlsx", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type stubFavorites struct {
	removed string
}

func (s *stubFavorites) List(context.Context, string) ([]models.FavoriteCourse, error) {
	return []models.FavoriteCourse{{Code: "CS101"}}, nil
}

func (s *stubFavorites) Add(_ context.Context, _ string, req dto.FavoriteRequest) ([]models.FavoriteCourse, error) {
	return []models.FavoriteCourse{{Code: req.CourseCode}}, nil
}

func (s *stubFavorites) Remove(_ context.Context, _ string, code string) error {
	if code == "ZZ999" {
		return appErrors.Clone(appErrors.ErrNotFound, "favorite not found")
	}
	s.removed = code
	return nil
}

type stubRequirements struct {
	flags dto.RequirementUpdateRequest
}

func (s *stubRequirements) Get(_ context.Context, id string) (*models.GraduationRequirement, error) {
	return &models.GraduationRequirement{StudentID: id}, nil
}

func (s *stubRequirements) Update(_ context.Context, id string, flags dto.RequirementUpdateRequest) (*models.GraduationRequirement, error) {
	s.flags = flags
	return &models.GraduationRequirement{StudentID: id, Capstone: flags.Capstone != nil && *flags.Capstone}, nil
}

func TestFavoriteHandlers(t *testing.T) {
	favs := &stubFavorites{}
	router := gin.New()
	h := NewStudentHandler(favs, &stubRequirements{})
	group := router.Group("/", asStudent("s1"))
	group.GET("/favorites", h.ListFavorites)
	group.POST("/favorites", h.AddFavorite)
	group.DELETE("/favorites/:code", h.RemoveFavorite)

	rec, _ := perform(router, http.MethodGet, "/favorites", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env := perform(router, http.MethodPost, "/favorites", dto.FavoriteRequest{CourseCode: "CS201"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, string(env.Data), "CS201")

	rec, _ = perform(router, http.MethodDelete, "/favorites/CS201", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "CS201", favs.removed)

	rec, _ = perform(router, http.MethodDelete, "/favorites/ZZ999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRequirementHandlersPassPartialFlags(t *testing.T) {
	reqs := &stubRequirements{}
	router := gin.New()
	h := NewStudentHandler(&stubFavorites{}, reqs)
	router.PATCH("/requirements", asStudent("s1"), h.UpdateRequirements)

	rec, env := perform(router, http.MethodPatch, "/requirements", gin.H{"capstone": true})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, reqs.flags.Capstone)
	assert.Nil(t, reqs.flags.Thesis)
	assert.Contains(t, string(env.Data), `"capstone":true`)
}

type stubRecommend struct{}

func (stubRecommend) Recommend(_ context.Context, id string) (*dto.RecommendationResponse, error) {
	return nil, appErrors.Clone(appErrors.ErrExternalService, "recommendation model request failed")
}

func TestRecommendHandlerMapsExternalFailure(t *testing.T) {
	router := gin.New()
	router.POST("/recommendations", asStudent("s1"), NewRecommendationHandler(stubRecommend{}).Recommend)

	rec, _ := perform(router, http.MethodPost, "/recommendations", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

type stubCatalog struct{}

func (stubCatalog) Reload(context.Context) (*dto.CatalogReloadResult, error) {
	return &dto.CatalogReloadResult{Courses: 12, Requirements: 14}, nil
}

type stubVectors struct {
	lastQuery dto.VectorSearchQuery
	cleared   bool
}

func (s *stubVectors) EmbedAll(context.Context) (*dto.EmbedJobResponse, error) {
	return &dto.EmbedJobResponse{JobID: "job-1", State: string(jobs.StateQueued)}, nil
}

func (s *stubVectors) JobStatus(id string) (*jobs.Status, error) {
	if id != "job-1" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "job not found")
	}
	return &jobs.Status{ID: id, State: jobs.StateSucceeded}, nil
}

func (s *stubVectors) Search(_ context.Context, q dto.VectorSearchQuery) ([]dto.VectorSearchHit, error) {
	s.lastQuery = q
	return []dto.VectorSearchHit{{Code: "CS101", Score: 0.9}}, nil
}

func (s *stubVectors) Health(context.Context) (*dto.VectorHealth, error) {
	return &dto.VectorHealth{Ready: true, Status: "green"}, nil
}

func (s *stubVectors) Clear(context.Context) error {
	s.cleared = true
	return nil
}

func TestAdminHandlers(t *testing.T) {
	vectors := &stubVectors{}
	h := NewAdminHandler(stubCatalog{}, vectors)
	router := gin.New()
	router.POST("/admin/catalog/reload", h.ReloadCatalog)
	router.POST("/admin/vectors/embed", h.EmbedVectors)
	router.GET("/admin/vectors/jobs/:id", h.JobStatus)
	router.GET("/admin/vectors/search", h.SearchVectors)
	router.GET("/admin/vectors/health", h.VectorHealth)
	router.DELETE("/admin/vectors", h.ClearVectors)

	rec, env := perform(router, http.MethodPost, "/admin/catalog/reload", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"courses":12`)

	rec, env = perform(router, http.MethodPost, "/admin/vectors/embed", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, string(env.Data), "job-1")

	rec, _ = perform(router, http.MethodGet, "/admin/vectors/jobs/job-1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = perform(router, http.MethodGet, "/admin/vectors/jobs/other", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = perform(router, http.MethodGet, "/admin/vectors/search?q=web&limit=3", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, dto.VectorSearchQuery{Query: "web", Limit: 3}, vectors.lastQuery)

	rec, _ = perform(router, http.MethodGet, "/admin/vectors/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = perform(router, http.MethodDelete, "/admin/vectors", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, vectors.cleared)
}

func TestReadyReportsFailingDependency(t *testing.T) {
	h := NewMetricsHandler(nil, map[string]ReadinessCheck{
		"database": func(context.Context) error { return nil },
		"qdrant":   func(context.Context) error { return errors.New("connection refused") },
	})
	router := gin.New()
	router.GET("/ready", h.Ready)
	router.GET("/health", h.Health)
	router.GET("/metrics", h.Prometheus)

	rec, _ := perform(router, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")

	rec, _ = perform(router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = perform(router, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestPrometheusServesRegistry(t *testing.T) {
	h := NewMetricsHandler(service.NewMetricsService(), nil)
	router := gin.New()
	router.GET("/metrics", h.Prometheus)

	rec, _ := perform(router, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "goroutines_total")
}
