// Package httpapi is a small local HTTP API next to the highlighter: a
// render preview for trying phrase lists, the current settings, and the
// runtime counters of every attached page.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazyhaar/phrasemark/highlighter"
	"github.com/hazyhaar/phrasemark/phrase"
	"github.com/hazyhaar/phrasemark/render"
	"github.com/hazyhaar/phrasemark/settings"
)

// maxBody caps request bodies.
const maxBody = 1 << 20

// Options wires the API to the running process. Save and Stats are optional;
// without Save, PUT /settings is not routed.
type Options struct {
	Settings func() settings.Settings
	Save     func(ctx context.Context, s settings.Settings) error
	Stats    func() []highlighter.Stats
	Logger   *slog.Logger
}

// Server serves the API.
type Server struct {
	opts     Options
	renderer *render.Renderer
}

// New creates a Server.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Settings == nil {
		opts.Settings = settings.Default
	}
	return &Server{opts: opts, renderer: render.New()}
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	s.Register(r)
	return r
}

// Register mounts the endpoints on r.
func (s *Server) Register(r chi.Router) {
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Post("/render", s.handleRender)
	r.Get("/settings", s.handleGetSettings)
	if s.opts.Save != nil {
		r.Put("/settings", s.handlePutSettings)
	}
	r.Get("/stats", s.handleStats)
}

// RenderRequest is the body of POST /render. Without phrases the current
// settings' phrases are used.
type RenderRequest struct {
	Text    string          `json:"text"`
	Phrases []phrase.Phrase `json:"phrases,omitempty"`
}

// RenderResponse is the reply of POST /render.
type RenderResponse struct {
	Markup  string   `json:"markup"`
	Matches []string `json:"matches"`
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	var req RenderRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	list := req.Phrases
	if list == nil {
		list = s.opts.Settings().Phrases
	}
	idx := phrase.Build(list)

	matches := []string{}
	for _, loc := range idx.FindAll(req.Text) {
		matches = append(matches, req.Text[loc[0]:loc[1]])
	}
	writeJSON(w, http.StatusOK, RenderResponse{
		Markup:  s.renderer.Render(req.Text, idx),
		Matches: matches,
	})
}

func (s *Server) handleGetSettings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.opts.Settings())
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	next := settings.Default()
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&next); err != nil {
		writeError(w, http.StatusBadRequest, "invalid settings")
		return
	}
	if err := s.opts.Save(r.Context(), next); err != nil {
		s.opts.Logger.Error("httpapi: save settings", "error", err)
		writeError(w, http.StatusInternalServerError, "save failed")
		return
	}
	writeJSON(w, http.StatusOK, next)
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	out := []highlighter.Stats{}
	if s.opts.Stats != nil {
		out = append(out, s.opts.Stats()...)
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
