package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// PayloadKindKey tags every point this service writes so Clear never touches foreign points.
	PayloadKindKey = "kind"
	// KindCourse marks course description vectors.
	KindCourse = "course"

	maxBodyBytes      = 1 << 20
	maxErrorBodyBytes = 1024
	defaultLimit      = 10
)

var pointNamespace = uuid.MustParse("6f1c2b7e-5d0a-4c1e-9a43-2b8f0e7d9c11")

// Config points the client at one collection.
type Config struct {
	URL        string
	Collection string
	VectorDim  int
	Timeout    time.Duration
}

// Point is a vector with its payload. ID is a caller key, mapped to a stable UUID.
type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

// Match is a search hit.
type Match struct {
	ID      string         `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Stats summarises the collection.
type Stats struct {
	Status      string `json:"status"`
	PointsCount int64  `json:"points_count"`
	VectorSize  int    `json:"vector_size"`
	Distance    string `json:"distance"`
}

// Qdrant talks to the Qdrant REST API.
type Qdrant struct {
	cfg     Config
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

type envelope struct {
	Result json.RawMessage `json:"result"`
	Status json.RawMessage `json:"status"`
	Time   float64         `json:"time"`
}

type searchItem struct {
	ID      json.RawMessage `json:"id"`
	Score   float64         `json:"score"`
	Payload map[string]any  `json:"payload"`
}

// NewQdrant builds a client. A nil httpClient gets one with cfg.Timeout.
func NewQdrant(cfg Config, httpClient *http.Client, logger *zap.Logger) (*Qdrant, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("vectorstore: url required")
	}
	if strings.TrimSpace(cfg.Collection) == "" {
		return nil, errors.New("vectorstore: collection required")
	}
	if cfg.VectorDim <= 0 {
		return nil, errors.New("vectorstore: vector dimension must be positive")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Qdrant{
		cfg:     cfg,
		baseURL: strings.TrimRight(cfg.URL, "/"),
		http:    httpClient,
		logger:  logger,
	}, nil
}

// PointID derives the stable point UUID for a caller key.
func PointID(key string) string {
	return uuid.NewSHA1(pointNamespace, []byte(strings.TrimSpace(key))).String()
}

// Ready queries the server readiness endpoint.
func (q *Qdrant) Ready(ctx context.Context) error {
	const op = "ready"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, q.baseURL+"/readyz", nil)
	if err != nil {
		return opErr(op, CodeTransportFailed, "build request failed", err)
	}
	resp, err := q.http.Do(req)
	if err != nil {
		return classifyCallError(op, err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &OperationError{Code: CodeRequestFailed, Operation: op, StatusCode: resp.StatusCode,
			Message: fmt.Sprintf("ready check returned status=%d", resp.StatusCode)}
	}
	return nil
}

// EnsureCollection creates the collection with cosine distance when it does not exist.
func (q *Qdrant) EnsureCollection(ctx context.Context) error {
	_, err := q.Stats(ctx)
	if err == nil {
		return nil
	}
	var opError *OperationError
	if !errors.As(err, &opError) || opError.Code != CodeNotFound {
		return err
	}
	body := map[string]any{
		"vectors": map[string]any{"size": q.cfg.VectorDim, "distance": "Cosine"},
	}
	if err := q.doJSON(ctx, "create_collection", http.MethodPut, q.collectionPath(""), body, nil); err != nil {
		return err
	}
	q.logger.Info("qdrant collection created", zap.String("collection", q.cfg.Collection), zap.Int("vector_dim", q.cfg.VectorDim))
	return nil
}

// Upsert writes points and waits for the write to be applied.
func (q *Qdrant) Upsert(ctx context.Context, points []Point) error {
	const op = "upsert"
	if len(points) == 0 {
		return nil
	}
	wire := make([]map[string]any, 0, len(points))
	for _, p := range points {
		key := strings.TrimSpace(p.ID)
		if key == "" {
			return opErr(op, CodeValidation, "point id is required", nil)
		}
		if len(p.Vector) != q.cfg.VectorDim {
			return opErr(op, CodeValidation,
				fmt.Sprintf("point %q dimension mismatch: expected=%d got=%d", key, q.cfg.VectorDim, len(p.Vector)), nil)
		}
		payload := make(map[string]any, len(p.Payload)+2)
		for k, v := range p.Payload {
			payload[k] = v
		}
		payload["key"] = key
		if _, ok := payload[PayloadKindKey]; !ok {
			payload[PayloadKindKey] = KindCourse
		}
		wire = append(wire, map[string]any{
			"id":      PointID(key),
			"vector":  p.Vector,
			"payload": payload,
		})
	}
	return q.doJSON(ctx, op, http.MethodPut, q.collectionPath("/points?wait=true"), map[string]any{"points": wire}, nil)
}

// Search returns the closest points ordered by descending score.
func (q *Qdrant) Search(ctx context.Context, vector []float32, limit int) ([]Match, error) {
	const op = "search"
	if len(vector) != q.cfg.VectorDim {
		return nil, opErr(op, CodeValidation,
			fmt.Sprintf("query dimension mismatch: expected=%d got=%d", q.cfg.VectorDim, len(vector)), nil)
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
		"with_vector":  false,
	}
	var items []searchItem
	if err := q.doJSON(ctx, op, http.MethodPost, q.collectionPath("/points/search"), req, &items); err != nil {
		return nil, err
	}

	matches := make([]Match, 0, len(items))
	for _, item := range items {
		id, _ := item.Payload["key"].(string)
		if id == "" {
			id = decodePointID(item.ID)
		}
		if id == "" {
			continue
		}
		matches = append(matches, Match{ID: id, Score: item.Score, Payload: item.Payload})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score == matches[j].Score {
			return matches[i].ID < matches[j].ID
		}
		return matches[i].Score > matches[j].Score
	})
	return matches, nil
}

// Clear removes every point tagged with the given kind.
func (q *Qdrant) Clear(ctx context.Context, kind string) error {
	req := map[string]any{
		"filter": map[string]any{
			"must": []any{
				map[string]any{"key": PayloadKindKey, "match": map[string]any{"value": kind}},
			},
		},
	}
	return q.doJSON(ctx, "clear", http.MethodPost, q.collectionPath("/points/delete?wait=true"), req, nil)
}

// Stats reads collection info.
func (q *Qdrant) Stats(ctx context.Context) (*Stats, error) {
	var result struct {
		Status      string `json:"status"`
		PointsCount int64  `json:"points_count"`
		Config      struct {
			Params struct {
				Vectors struct {
					Size     int    `json:"size"`
					Distance string `json:"distance"`
				} `json:"vectors"`
			} `json:"params"`
		} `json:"config"`
	}
	if err := q.doJSON(ctx, "stats", http.MethodGet, q.collectionPath(""), nil, &result); err != nil {
		return nil, err
	}
	return &Stats{
		Status:      result.Status,
		PointsCount: result.PointsCount,
		VectorSize:  result.Config.Params.Vectors.Size,
		Distance:    result.Config.Params.Vectors.Distance,
	}, nil
}

func (q *Qdrant) doJSON(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(in); err != nil {
			return opErr(op, CodeEncodeFailed, "encode request failed", err)
		}
		body = &buf
	}

	req, err := http.NewRequestWithContext(ctx, method, q.baseURL+path, body)
	if err != nil {
		return opErr(op, CodeTransportFailed, "build request failed", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := q.http.Do(req)
	if err != nil {
		return classifyCallError(op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return opErr(op, CodeDecodeFailed, "read response failed", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return &OperationError{Code: CodeNotFound, Operation: op, StatusCode: resp.StatusCode, Message: truncate(raw)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &OperationError{Code: CodeRequestFailed, Operation: op, StatusCode: resp.StatusCode,
			Message: fmt.Sprintf("http status=%d body=%q", resp.StatusCode, truncate(raw))}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return opErr(op, CodeDecodeFailed, "decode envelope failed", err)
	}
	if msg := envelopeStatusError(env.Status); msg != "" {
		return &OperationError{Code: CodeRequestFailed, Operation: op, StatusCode: resp.StatusCode, Message: msg}
	}
	if out == nil || len(env.Result) == 0 || string(env.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return opErr(op, CodeDecodeFailed, "decode result failed", err)
	}
	return nil
}

func (q *Qdrant) collectionPath(suffix string) string {
	return "/collections/" + q.cfg.Collection + suffix
}

func classifyCallError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return opErr(op, CodeTimeout, "request timed out", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return opErr(op, CodeTimeout, "request timed out", err)
	}
	return opErr(op, CodeTransportFailed, "request failed", err)
}

func envelopeStatusError(raw json.RawMessage) string {
	status := strings.TrimSpace(string(raw))
	if status == "" || status == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if strings.EqualFold(s, "ok") {
			return ""
		}
		return fmt.Sprintf("status=%q", s)
	}
	var obj struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && strings.TrimSpace(obj.Error) != "" {
		return strings.TrimSpace(obj.Error)
	}
	return "status=" + status
}

func decodePointID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return fmt.Sprintf("%d", n)
	}
	return ""
}

func truncate(raw []byte) string {
	if len(raw) <= maxErrorBodyBytes {
		return string(raw)
	}
	return string(raw[:maxErrorBodyBytes]) + "..."
}
