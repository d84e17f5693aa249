package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	t.Setenv("QAHUB_TEST_KEY", "sk-test")
	c, err := NewClient(Config{BaseURL: srv.URL, APIKeyEnv: "QAHUB_TEST_KEY", Model: "m"})
	require.NoError(t, err)
	return c
}

func TestNewClient_RequiresKey(t *testing.T) {
	t.Setenv("QAHUB_EMPTY_KEY", "")
	_, err := NewClient(Config{APIKeyEnv: "QAHUB_EMPTY_KEY"})
	assert.Error(t, err)
}

func TestEmbed_OpenAIShape(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "m", body["model"])
		assert.Equal(t, "hello", body["input"])
		_, _ = w.Write([]byte(`{"data":[{"embedding":[0.1,0.2,0.3]}]}`))
	})

	v, err := c.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, v)
	assert.Equal(t, 3, c.Dimension())
}

func TestEmbed_OllamaShapeAndPrepare(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embedding":[1,2]}`))
	})
	require.NoError(t, c.Prepare([]string{"doc"}))
	assert.Equal(t, 2, c.Dimension())
}

func TestEmbed_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"data":[{"embedding":[1]}]}`))
	})
	_, err := c.Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestEmbed_ClientErrorAndEmptyBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad model", http.StatusBadRequest)
	})
	_, err := c.Embed(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad model")

	empty := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[]}`))
	})
	_, err = empty.Embed(context.Background(), "x")
	assert.EqualError(t, err, "no embedding returned")
}
