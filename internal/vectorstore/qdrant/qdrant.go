package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"qahub/internal/domain"
	"qahub/internal/vectorstore"
)

// Storage is a minimal REST client to Qdrant. Init drops and recreates the
// collection, so every ingestion starts from an empty collection.
type Storage struct {
	url        string
	apiKey     string
	collection string
	metric     vectorstore.Metric
	dimension  int
	client     *http.Client
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Metric     vectorstore.Metric
	Timeout    time.Duration
}

func NewStorage(cfg Config) *Storage {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	metric := cfg.Metric
	if metric == "" {
		metric = vectorstore.L2
	}
	collection := cfg.Collection
	if collection == "" {
		collection = "docs"
	}
	return &Storage{
		url:        strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: collection,
		metric:     metric,
		client:     &http.Client{Timeout: timeout},
	}
}

func (s *Storage) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	s.dimension = dimension
	if err := s.Clear(ctx); err != nil {
		return err
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": s.distanceName(),
		},
	}
	return s.do(ctx, http.MethodPut, s.collectionURL(""), body, nil)
}

func (s *Storage) Upsert(ctx context.Context, docs []domain.Document, vectors [][]float32) error {
	if len(docs) != len(vectors) {
		return errors.New("documents and vectors length mismatch")
	}
	if len(docs) == 0 {
		return nil
	}
	points := make([]map[string]any, len(docs))
	for i := range docs {
		points[i] = map[string]any{
			"id":     PointID(docs[i].ID),
			"vector": vectors[i],
			"payload": map[string]any{
				"document_id": docs[i].ID,
				"name":        docs[i].Name,
				"text":        docs[i].Text,
				"position":    i,
			},
		}
	}
	return s.do(ctx, http.MethodPut, s.collectionURL("/points?wait=true"), map[string]any{"points": points}, nil)
}

func (s *Storage) Search(ctx context.Context, vector []float32, topK int) ([]domain.Match, error) {
	if topK <= 0 {
		topK = 5
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodPost, s.collectionURL("/points/search"), req, &resp); err != nil {
		return nil, err
	}
	matches := make([]domain.Match, 0, len(resp.Result))
	for _, r := range resp.Result {
		var doc domain.Document
		if v, ok := r.Payload["document_id"].(string); ok {
			doc.ID = v
		}
		if v, ok := r.Payload["name"].(string); ok {
			doc.Name = v
		}
		if v, ok := r.Payload["text"].(string); ok {
			doc.Text = v
		}
		matches = append(matches, domain.Match{Document: doc, Distance: s.toDistance(r.Score)})
	}
	return vectorstore.TopK(matches, topK), nil
}

// Clear drops the collection. A missing collection is not an error.
func (s *Storage) Clear(ctx context.Context) error {
	err := s.do(ctx, http.MethodDelete, s.collectionURL(""), nil, nil)
	var se *statusError
	if errors.As(err, &se) && se.code == http.StatusNotFound {
		return nil
	}
	return err
}

// PointID maps a document ID to the deterministic UUID Qdrant requires.
func PointID(documentID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("qahub:"+documentID)).String()
}

func (s *Storage) distanceName() string {
	if s.metric == vectorstore.Cosine {
		return "Cosine"
	}
	return "Euclid"
}

// toDistance converts a Qdrant score to this package's distance scale:
// Euclid is squared, Cosine similarity becomes 1-similarity.
func (s *Storage) toDistance(score float64) float64 {
	if s.metric == vectorstore.Cosine {
		return 1 - score
	}
	return score * score
}

func (s *Storage) collectionURL(suffix string) string {
	return fmt.Sprintf("%s/collections/%s%s", s.url, s.collection, suffix)
}

type statusError struct {
	method string
	url    string
	code   int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("qdrant %s %s failed: %d %s", e.method, e.url, e.code, e.body)
}

func (s *Storage) do(ctx context.Context, method, url string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &statusError{method: method, url: url, code: resp.StatusCode, body: strings.TrimSpace(string(data))}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
