// Package api exposes the synthesis pipeline over HTTP and MCP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/kalambet/juskvi/internal/synthesis"
)

const (
	// SynthesisPath is the synthesis endpoint.
	SynthesisPath = "/api/v6/synthesis"

	maxRequestBodySize = 20 << 20 // 20MB, room for a base64 image
	requestIDHeader    = "X-Request-ID"
	indexTemplate      = "index.html"
)

// Synthesizer runs synthesis requests and memory lookups.
type Synthesizer interface {
	Synthesize(ctx context.Context, req synthesis.Request) synthesis.Result
	Recall(ctx context.Context, query string) string
}

// NewHandler returns the HTTP surface: the web shell at /, a health probe,
// and the synthesis endpoint.
func NewHandler(s Synthesizer, templateDir string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestID)

	r.Get("/", handleIndex(templateDir))
	r.Get("/health", handleHealth)
	r.Post(SynthesisPath, handleSynthesis(s))

	return r
}

// requestID tags each request with an ID, echoed in the response header and
// attached to the orchestrator's log lines.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(synthesis.WithRequestID(r.Context(), id)))
	})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// handleIndex renders the page from disk on every request. A missing or
// broken template is reported in the body with status 200.
func handleIndex(templateDir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tmpl, err := template.ParseFiles(filepath.Join(templateDir, indexTemplate))
		if err != nil {
			slog.Warn("rendering index", "error", err)
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			fmt.Fprintf(w, "Error: %v", err)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := tmpl.Execute(w, struct{ SynthesisPath string }{SynthesisPath}); err != nil {
			slog.Warn("executing index template", "error", err)
		}
	}
}

func handleSynthesis(s Synthesizer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req synthesis.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				httpError(w, http.StatusRequestEntityTooLarge, "invalid_request_error", "request body exceeds %d bytes", tooLarge.Limit)
				return
			}
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		res := s.Synthesize(r.Context(), req)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(res)
	}
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
