package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qahub/internal/answer"
	"qahub/internal/domain"
	"qahub/internal/embedding/tfidf"
	"qahub/internal/generation/extractive"
	"qahub/internal/index"
	"qahub/internal/session"
	"qahub/internal/vectorstore/memory"
)

type failingGenerator struct{}

func (failingGenerator) Generate(context.Context, string, int) (string, error) {
	return "", errors.New("connection refused")
}

func newTestAPI(gen domain.Generator) (*API, *session.Session) {
	newIndex := func() (domain.Index, error) {
		return index.New(tfidf.NewEmbedder(), memory.NewStorage("")), nil
	}
	sess := session.New(answer.NewAnswerer(gen, answer.DefaultPolicy()), newIndex)
	return NewAPI(sess, nil), sess
}

func uploadBody(t *testing.T, files map[string]string, order []string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, name := range order {
		fw, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(files[name]))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) apiError {
	t.Helper()
	var e apiError
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &e))
	return e
}

func TestHealthz(t *testing.T) {
	api, _ := newTestAPI(extractive.New())
	rr := httptest.NewRecorder()
	api.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())
}

func TestRequestID(t *testing.T) {
	api, _ := newTestAPI(extractive.New())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc123")
	rr := httptest.NewRecorder()
	api.Handler().ServeHTTP(rr, req)
	assert.Equal(t, "abc123", rr.Header().Get("X-Request-ID"))

	rr = httptest.NewRecorder()
	api.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Len(t, rr.Header().Get("X-Request-ID"), 36)
}

func TestUploadAskHistory(t *testing.T) {
	api, _ := newTestAPI(extractive.New())
	h := api.Handler()

	body, ctype := uploadBody(t, map[string]string{
		"btc.txt":  "Bitcoin's supply is capped at 21 million coins.",
		"eth.md":   "Ethereum enables smart contracts and NFTs.",
		"tool.exe": "MZ",
	}, []string{"btc.txt", "tool.exe", "eth.md"})
	req := httptest.NewRequest(http.MethodPost, "/api/documents", body)
	req.Header.Set("Content-Type", ctype)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var up struct {
		Documents []documentView `json:"documents"`
		Failed    []failureView  `json:"failed"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &up))
	require.Len(t, up.Documents, 2)
	assert.Equal(t, "doc1", up.Documents[0].ID)
	assert.Equal(t, "btc.txt", up.Documents[0].Name)
	assert.Equal(t, "doc2", up.Documents[1].ID)
	require.Len(t, up.Failed, 1)
	assert.Equal(t, "tool.exe", up.Failed[0].Name)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/documents", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "eth.md")

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/ask",
		strings.NewReader(`{"question":"What is Bitcoin's max supply?"}`)))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var ans askResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &ans))
	assert.False(t, ans.Refused)
	assert.Contains(t, ans.Answer, "21 million")
	require.NotEmpty(t, ans.Sources)
	assert.Equal(t, "Bitcoin's supply is capped at 21 million coins.", ans.Sources[0])

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/history", nil))
	assert.JSONEq(t, `{"history":["What is Bitcoin's max supply?"]}`, rr.Body.String())

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/history/export", nil))
	assert.Equal(t, "Q1: What is Bitcoin's max supply?\n", rr.Body.String())
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "qa_history.txt")
	assert.True(t, strings.HasPrefix(rr.Header().Get("Content-Type"), "text/plain"))

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/api/documents", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/history", nil))
	assert.JSONEq(t, `{"history":[]}`, rr.Body.String())
}

func TestAsk_EmptyIndexRefuses(t *testing.T) {
	api, _ := newTestAPI(extractive.New())
	rr := httptest.NewRecorder()
	api.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/ask",
		strings.NewReader(`{"question":"What is Ethereum?"}`)))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"answer":"`+answer.RefusalMessage+`","sources":[],"refused":true}`, rr.Body.String())
}

func TestAsk_Errors(t *testing.T) {
	api, sess := newTestAPI(failingGenerator{})
	h := api.Handler()

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(`{"question":"  "}`)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "invalid_request", decodeError(t, rr).Error)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(`{`)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "invalid_json", decodeError(t, rr).Error)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/ask", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)

	_, err := sess.IngestTexts(context.Background(), []string{"Bitcoin's supply is capped at 21 million coins."})
	require.NoError(t, err)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/ask",
		strings.NewReader(`{"question":"What is Bitcoin's max supply?"}`)))
	assert.Equal(t, http.StatusBadGateway, rr.Code)
	e := decodeError(t, rr)
	assert.Equal(t, "backend_unavailable", e.Error)
	assert.Equal(t, http.StatusBadGateway, e.Code)
	assert.Empty(t, sess.History())
}

func TestUpload_Limits(t *testing.T) {
	api, sess := newTestAPI(extractive.New())
	h := api.Handler()

	files := map[string]string{}
	var order []string
	for _, n := range []string{"a.txt", "b.txt", "c.txt", "d.txt", "e.txt", "f.txt"} {
		files[n] = "some text"
		order = append(order, n)
	}
	body, ctype := uploadBody(t, files, order)
	req := httptest.NewRequest(http.MethodPost, "/api/documents", body)
	req.Header.Set("Content-Type", ctype)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "too_many_files", decodeError(t, rr).Error)
	assert.Empty(t, sess.Documents())

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/documents", strings.NewReader("x")))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short", preview("short"))
	long := strings.Repeat("é", previewRunes+10)
	got := preview(long)
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Equal(t, previewRunes+3, len([]rune(got)))
}
