package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func newTestStore(t *testing.T, rt roundTripFunc) *Qdrant {
	t.Helper()
	store, err := NewQdrant(Config{URL: "http://qdrant.local/", Collection: "courses", VectorDim: 3},
		&http.Client{Transport: rt}, nil)
	require.NoError(t, err)
	return store
}

func jsonResponse(t *testing.T, status int, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	return &http.Response{
		StatusCode: status,
		Header:     make(http.Header),
		Body:       io.NopCloser(bytes.NewReader(raw)),
	}
}

func okResponse(t *testing.T, result any) *http.Response {
	return jsonResponse(t, http.StatusOK, map[string]any{"result": result, "status": "ok", "time": 0.001})
}

func TestUpsertRequestShape(t *testing.T) {
	var captured map[string]any
	store := newTestStore(t, func(r *http.Request) (*http.Response, error) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/collections/courses/points", r.URL.Path)
		assert.Equal(t, "wait=true", r.URL.RawQuery)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		return okResponse(t, map[string]any{"status": "acknowledged"}), nil
	})

	err := store.Upsert(context.Background(), []Point{
		{ID: "CS101", Vector: []float32{1, 2, 3}, Payload: map[string]any{"name": "프로그래밍기초"}},
	})
	require.NoError(t, err)

	points := captured["points"].([]any)
	require.Len(t, points, 1)
	first := points[0].(map[string]any)
	assert.Equal(t, PointID("CS101"), first["id"])
	payload := first["payload"].(map[string]any)
	assert.Equal(t, "CS101", payload["key"])
	assert.Equal(t, KindCourse, payload[PayloadKindKey])
}

func TestUpsertRejectsDimensionMismatch(t *testing.T) {
	store := newTestStore(t, func(*http.Request) (*http.Response, error) {
		t.Fatal("no request expected")
		return nil, nil
	})
	err := store.Upsert(context.Background(), []Point{{ID: "CS101", Vector: []float32{1}}})

	var opError *OperationError
	require.True(t, errors.As(err, &opError))
	assert.Equal(t, CodeValidation, opError.Code)
}

func TestSearchOrdersByScore(t *testing.T) {
	store := newTestStore(t, func(r *http.Request) (*http.Response, error) {
		assert.Equal(t, "/collections/courses/points/search", r.URL.Path)
		return okResponse(t, []map[string]any{
			{"id": PointID("CS102"), "score": 0.2, "payload": map[string]any{"key": "CS102"}},
			{"id": PointID("CS101"), "score": 0.9, "payload": map[string]any{"key": "CS101"}},
		}), nil
	})

	matches, err := store.Search(context.Background(), []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "CS101", matches[0].ID)
	assert.Equal(t, "CS102", matches[1].ID)
}

func TestStatsNotFound(t *testing.T) {
	store := newTestStore(t, func(*http.Request) (*http.Response, error) {
		return jsonResponse(t, http.StatusNotFound, map[string]any{"status": map[string]any{"error": "Not found"}}), nil
	})
	_, err := store.Stats(context.Background())

	var opError *OperationError
	require.True(t, errors.As(err, &opError))
	assert.Equal(t, CodeNotFound, opError.Code)
}

func TestEnsureCollectionCreatesMissing(t *testing.T) {
	var methods []string
	store := newTestStore(t, func(r *http.Request) (*http.Response, error) {
		methods = append(methods, r.Method)
		if r.Method == http.MethodGet {
			return jsonResponse(t, http.StatusNotFound, map[string]any{"status": map[string]any{"error": "Not found"}}), nil
		}
		return okResponse(t, true), nil
	})

	require.NoError(t, store.EnsureCollection(context.Background()))
	assert.Equal(t, []string{http.MethodGet, http.MethodPut}, methods)
}

func TestEnvelopeErrorStatus(t *testing.T) {
	store := newTestStore(t, func(*http.Request) (*http.Response, error) {
		return jsonResponse(t, http.StatusOK, map[string]any{"status": map[string]any{"error": "bad filter"}}), nil
	})
	err := store.Clear(context.Background(), KindCourse)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad filter")
}

func TestTransportFailureClassified(t *testing.T) {
	store := newTestStore(t, func(*http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})
	_, err := store.Search(context.Background(), []float32{1, 0, 0}, 3)

	var opError *OperationError
	require.True(t, errors.As(err, &opError))
	assert.Equal(t, CodeTransportFailed, opError.Code)
}

func TestPointIDIsDeterministic(t *testing.T) {
	assert.Equal(t, PointID("CS101"), PointID(" CS101 "))
	assert.NotEqual(t, PointID("CS101"), PointID("CS102"))
}
