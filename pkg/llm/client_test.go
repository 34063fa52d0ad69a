package llm

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

type roundTripperFunc func(req *http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

func respond(status int, body any) *http.Response {
	raw, _ := json.Marshal(body)
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(bytes.NewReader(raw)),
	}
}

func newTestClient(t *testing.T, rt roundTripperFunc) *Client {
	t.Helper()
	c, err := NewClient(Config{
		BaseURL:        "http://upstream/",
		APIKey:         "sk-test",
		ChatModel:      "chat-model",
		EmbeddingModel: "embed-model",
	}, &http.Client{Transport: rt})
	require.NoError(t, err)
	return c
}

func TestChatReturnsFirstChoice(t *testing.T) {
	c := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, "/v1/chat/completions", req.URL.Path)
		assert.Equal(t, "Bearer sk-test", req.Header.Get("Authorization"))

		var in chatRequest
		require.NoError(t, json.NewDecoder(req.Body).Decode(&in))
		assert.Equal(t, "chat-model", in.Model)
		assert.Len(t, in.Messages, 2)

		return respond(http.StatusOK, map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"content": " hello "}}},
		}), nil
	})

	text, err := c.Chat(context.Background(), []Message{
		{Role: "system", Content: "be brief"},
		{Role: "user", Content: "hi"},
		{Role: "user", Content: "  "},
	}, 0.2)
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
}

func TestChatEmptyCompletion(t *testing.T) {
	c := newTestClient(t, func(*http.Request) (*http.Response, error) {
		return respond(http.StatusOK, map[string]any{"choices": []any{}}), nil
	})
	_, err := c.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}}, 0)
	assert.ErrorIs(t, err, ErrEmptyCompletion)
}

func TestChatHTTPError(t *testing.T) {
	c := newTestClient(t, func(*http.Request) (*http.Response, error) {
		return respond(http.StatusTooManyRequests, map[string]any{"error": "rate limited"}), nil
	})
	_, err := c.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}}, 0)

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusTooManyRequests, httpErr.StatusCode)
}

func TestEmbedOrdersByIndex(t *testing.T) {
	c := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, "/v1/embeddings", req.URL.Path)
		return respond(http.StatusOK, map[string]any{
			"data": []map[string]any{
				{"embedding": []float64{0.3, 0.4}, "index": 1},
				{"embedding": []float64{0.1, 0.2}, "index": 0},
			},
		}), nil
	})

	vecs, err := c.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, []float32{0.1, 0.2}, vecs[0])
	assert.Equal(t, []float32{0.3, 0.4}, vecs[1])
}

func TestEmbedMissingVector(t *testing.T) {
	c := newTestClient(t, func(*http.Request) (*http.Response, error) {
		return respond(http.StatusOK, map[string]any{
			"data": []map[string]any{{"embedding": []float64{0.1}, "index": 0}},
		}), nil
	})
	_, err := c.Embed(context.Background(), []string{"a", "b"})
	assert.Error(t, err)
}

func TestExtractJSON(t *testing.T) {
	cases := map[string]struct {
		in   string
		want string
	}{
		"fenced":        {in: "Here you go:\n```json\n[{\"course_code\":\"CS101\"}]\n```\nGood luck", want: `[{"course_code":"CS101"}]`},
		"bare fence":    {in: "```\n{\"a\":1}\n```", want: `{"a":1}`},
		"plain":         {in: `[1,2]`, want: `[1,2]`},
		"with preamble": {in: `Result: [{"x":1}] done`, want: `[{"x":1}]`},
		"no json":       {in: "sorry", want: "sorry"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExtractJSON(tc.in))
		})
	}
}
