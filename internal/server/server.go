// Package server exposes a session over a small JSON HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"qahub/internal/domain"
	"qahub/internal/log"
	"qahub/internal/session"
)

const previewRunes = 500

type API struct {
	sess   *session.Session
	logger *log.Logger
}

func NewAPI(sess *session.Session, logger *log.Logger) *API {
	if logger == nil {
		logger = log.Nop()
	}
	return &API{sess: sess, logger: logger}
}

// Handler returns the routed API wrapped in request logging.
func (a *API) Handler() http.Handler {
	return a.logMiddleware(a.mux())
}

func (a *API) mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/api/documents", a.handleDocuments)
	mux.HandleFunc("/api/ask", a.handleAsk)
	mux.HandleFunc("/api/history", a.handleHistory)
	mux.HandleFunc("/api/history/export", a.handleHistoryExport)
	return mux
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (a *API) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errs := make(chan error, 1)
	go func() {
		errs <- srv.ListenAndServe()
	}()
	a.logger.Info("http server listening", "addr", addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

type documentView struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Preview string `json:"preview"`
}

type failureView struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
	Refused bool     `json:"refused"`
}

func (a *API) handleDocuments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"documents": views(a.sess.Documents())})
	case http.MethodPost:
		a.handleUpload(w, r)
	case http.MethodDelete:
		a.sess.Clear()
		writeJSON(w, http.StatusOK, map[string]any{"cleared": true})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
	}
}

func (a *API) handleUpload(w http.ResponseWriter, r *http.Request) {
	limits := a.sess.Limits()
	// room for every file at the size limit plus one over-limit file to report
	r.Body = http.MaxBytesReader(w, r.Body, int64(limits.MaxFiles+1)*limits.MaxFileBytes+1<<20)
	reader, err := r.MultipartReader()
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "multipart form with field \"files\" required")
		return
	}
	var files []domain.File
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				writeError(w, http.StatusRequestEntityTooLarge, "too_large", "upload exceeds size limit")
				return
			}
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		if part.FormName() != "files" || part.FileName() == "" {
			_ = part.Close()
			continue
		}
		if len(files) >= limits.MaxFiles {
			_ = part.Close()
			writeError(w, http.StatusBadRequest, "too_many_files",
				fmt.Sprintf("upload at most %d files at once", limits.MaxFiles))
			return
		}
		// read one byte past the limit so oversized files reach the converter as oversized
		data, err := io.ReadAll(io.LimitReader(part, limits.MaxFileBytes+1))
		_ = part.Close()
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				writeError(w, http.StatusRequestEntityTooLarge, "too_large", "upload exceeds size limit")
				return
			}
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		files = append(files, domain.File{Name: part.FileName(), Data: data})
	}
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "no files uploaded")
		return
	}

	report, err := a.sess.Ingest(r.Context(), files)
	if err != nil {
		if errors.Is(err, domain.ErrTooManyFiles) {
			writeError(w, http.StatusBadRequest, "too_many_files", err.Error())
			return
		}
		a.logger.Error("ingest failed", "error", err)
		writeError(w, http.StatusBadGateway, "backend_unavailable", err.Error())
		return
	}
	failed := make([]failureView, len(report.Failed))
	for i, f := range report.Failed {
		failed[i] = failureView{Name: f.Name, Error: f.Err.Error()}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"documents": views(report.Documents),
		"failed":    failed,
	})
}

func (a *API) handleAsk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}
	var req askRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "malformed request body")
		return
	}
	ans, err := a.sess.Ask(r.Context(), req.Question)
	if err != nil {
		if errors.Is(err, domain.ErrEmptyQuestion) {
			writeError(w, http.StatusBadRequest, "invalid_request", "question required")
			return
		}
		a.logger.Error("ask failed", "error", err)
		writeError(w, http.StatusBadGateway, "backend_unavailable", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, askResponse{Answer: ans.Text, Sources: ans.Sources, Refused: ans.Refused})
}

func (a *API) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": a.sess.History()})
}

func (a *API) handleHistoryExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="qa_history.txt"`)
	w.WriteHeader(http.StatusOK)
	_ = a.sess.ExportHistory(w)
}

func views(docs []domain.Document) []documentView {
	out := make([]documentView, len(docs))
	for i, d := range docs {
		out[i] = documentView{ID: d.ID, Name: d.Name, Preview: preview(d.Text)}
	}
	return out
}

func preview(text string) string {
	if utf8.RuneCountInString(text) <= previewRunes {
		return text
	}
	return string([]rune(text)[:previewRunes]) + "..."
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	nbytes int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.nbytes += n
	return n, err
}

func (a *API) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", reqID)
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		a.logger.Info("http.req",
			"req_id", reqID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", int(time.Since(start)/time.Millisecond),
			"bytes", rec.nbytes,
		)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func writeError(w http.ResponseWriter, status int, errStr, message string) {
	writeJSON(w, status, apiError{Error: errStr, Message: message, Code: status})
}
