package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/advising-api/internal/models"
	appErrors "github.com/noah-isme/advising-api/pkg/errors"
	"github.com/noah-isme/advising-api/pkg/logger"
)

type stubValidator struct{}

func (stubValidator) ValidateToken(token string) (*models.JWTClaims, error) {
	if token != "good" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return &models.JWTClaims{StudentID: "20201234"}, nil
}

type stubVerifier struct{}

func (stubVerifier) VerifyAdminKey(key string) error {
	if key != "operator" {
		return appErrors.Clone(appErrors.ErrForbidden, "invalid admin key")
	}
	return nil
}

type recordedRequest struct {
	method, path string
	status       int
}

type stubObserver struct {
	seen []recordedRequest
}

func (s *stubObserver) ObserveHTTPRequest(method, path string, status int, _ time.Duration) {
	s.seen = append(s.seen, recordedRequest{method: method, path: path, status: status})
}

func init() {
	gin.SetMode(gin.TestMode)
}

func TestJWTSetsStudent(t *testing.T) {
	router := gin.New()
	router.GET("/me", JWT(stubValidator{}), func(c *gin.Context) {
		id, ok := StudentID(c)
		c.JSON(http.StatusOK, gin.H{"id": id, "ok": ok, "log": c.GetString(logger.StudentIDKey)})
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer good")
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "20201234", body["id"])
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "20201234", body["log"])
}

func TestJWTRejects(t *testing.T) {
	router := gin.New()
	router.GET("/me", JWT(stubValidator{}), func(c *gin.Context) { c.Status(http.StatusOK) })

	cases := map[string]string{
		"missing":   "",
		"malformed": "Token good",
		"invalid":   "Bearer bad",
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			router.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestStudentIDOutsideJWT(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	_, ok := StudentID(c)
	assert.False(t, ok)
}

func TestAdminKey(t *testing.T) {
	router := gin.New()
	router.POST("/admin", AdminKey(stubVerifier{}), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin", nil)
	req.Header.Set(AdminKeyHeader, "operator")
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/admin", nil)
	req.Header.Set(AdminKeyHeader, "guess")
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	observer := &stubObserver{}
	router := gin.New()
	router.Use(Metrics(observer))
	router.DELETE("/favorites/:code", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/favorites/CS101", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))

	require.Len(t, observer.seen, 2)
	assert.Equal(t, recordedRequest{method: http.MethodDelete, path: "/favorites/:code", status: http.StatusNoContent}, observer.seen[0])
	assert.Equal(t, "unmatched", observer.seen[1].path)
}

func TestResponseMetaCarriesCacheHit(t *testing.T) {
	router := gin.New()
	router.Use(WithResponseMeta())
	router.GET("/dashboard", func(c *gin.Context) {
		SetCacheHit(c, true)
		c.JSON(http.StatusOK, ExtractMeta(c))
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil))

	var meta map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &meta))
	assert.Equal(t, true, meta["cache_hit"])
	assert.Contains(t, meta, "processing_time_ms")
}

func TestExtractMetaWithoutMiddleware(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Empty(t, ExtractMeta(c))
	assert.Nil(t, ExtractMeta(nil))
}
