// Package httpadapter exposes the question-answering pipeline over
// HTTP. Handlers stay thin: decode, call the use case, map errors.
package httpadapter

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kirillkom/email-thread-rag/internal/core/ports"
	"github.com/kirillkom/email-thread-rag/internal/observability/metrics"
)

// Options tunes the transport hardening knobs; zero values disable
// the corresponding middleware.
type Options struct {
	Service          string
	RateLimitRPS     float64
	RateLimitBurst   int
	MaxInFlight      int
	OverloadWaitTime time.Duration
}

type Router struct {
	sessions  ports.SessionLifecycle
	questions ports.QuestionService
	timelines ports.TimelineService
	corpus    ports.CorpusIndex
	metrics   *metrics.HTTPServerMetrics
	opts      Options
}

func NewRouter(
	sessions ports.SessionLifecycle,
	questions ports.QuestionService,
	timelines ports.TimelineService,
	corpus ports.CorpusIndex,
	m *metrics.HTTPServerMetrics,
	opts Options,
) *Router {
	if opts.Service == "" {
		opts.Service = "api"
	}
	if opts.OverloadWaitTime <= 0 {
		opts.OverloadWaitTime = 100 * time.Millisecond
	}
	return &Router{
		sessions:  sessions,
		questions: questions,
		timelines: timelines,
		corpus:    corpus,
		metrics:   m,
		opts:      opts,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/sessions", rt.createSession)
	mux.HandleFunc("/v1/sessions/", rt.sessionSubresource)
	mux.HandleFunc("/v1/threads", rt.listThreads)
	mux.HandleFunc("/v1/threads/switch", rt.switchThread)
	mux.HandleFunc("/v1/ask", rt.ask)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.opts.MaxInFlight, rt.opts.OverloadWaitTime)
	if rt.opts.RateLimitRPS > 0 {
		limiter := rate.NewLimiter(rate.Limit(rt.opts.RateLimitRPS), rt.opts.RateLimitBurst)
		handler = rateLimitMiddleware(handler, limiter)
	}
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.opts.Service, handler)
	}
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) createSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	rt.startSessionForThread(w, r)
}

// switchThread is the alias the UI uses when jumping between
// conversations; it behaves exactly like creating a session.
func (rt *Router) switchThread(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	rt.startSessionForThread(w, r)
}

func (rt *Router) startSessionForThread(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ThreadID string `json:"thread_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.ThreadID) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "thread_id is required"})
		return
	}
	if !rt.threadExists(req.ThreadID) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown thread: " + req.ThreadID})
		return
	}

	session := rt.sessions.Start(req.ThreadID)
	writeJSON(w, http.StatusCreated, map[string]string{
		"session_id": session.ID,
		"thread_id":  session.ThreadID,
	})
}

func (rt *Router) threadExists(threadID string) bool {
	for _, id := range rt.corpus.ThreadIDs() {
		if id == threadID {
			return true
		}
	}
	return false
}

// sessionSubresource dispatches /v1/sessions/{id}[/reset|/timeline].
func (rt *Router) sessionSubresource(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/sessions/")
	sessionID, action, _ := strings.Cut(rest, "/")
	if sessionID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "session id is required"})
		return
	}

	switch action {
	case "":
		rt.getSession(w, r, sessionID)
	case "reset":
		rt.resetSession(w, r, sessionID)
	case "timeline":
		rt.timeline(w, r, sessionID)
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown resource"})
	}
}

func (rt *Router) getSession(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	session, err := rt.sessions.Get(sessionID)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// resetSession reports 404 for unknown sessions even though the store
// itself treats that as a no-op.
func (rt *Router) resetSession(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	if _, err := rt.sessions.Get(sessionID); err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	rt.sessions.Reset(sessionID)
	writeJSON(w, http.StatusOK, map[string]string{
		"status":     "reset",
		"session_id": sessionID,
	})
}

func (rt *Router) timeline(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	timeline, err := rt.timelines.Timeline(sessionID)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"timeline": timeline})
}

func (rt *Router) listThreads(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"threads": rt.corpus.ThreadIDs()})
}

func (rt *Router) ask(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		SessionID           string `json:"session_id"`
		Text                string `json:"text"`
		SearchOutsideThread bool   `json:"search_outside_thread"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "session_id is required"})
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "text is required"})
		return
	}

	// The query flag widens the body flag, never narrows it.
	searchOutside := req.SearchOutsideThread
	if v := r.URL.Query().Get("search_outside_thread"); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil && parsed {
			searchOutside = true
		}
	}

	result, err := rt.questions.Ask(r.Context(), req.SessionID, req.Text, searchOutside)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordTurn(
			rt.opts.Service,
			result.Outcome,
			len(result.Retrieved),
			time.Duration(result.LatencySec*float64(time.Second)),
		)
	}
	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
