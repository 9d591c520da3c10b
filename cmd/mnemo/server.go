package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	mnemoerrors "mnemo/internal/errors"
	"mnemo/internal/graph"
	mnemometrics "mnemo/internal/metrics"
)

// Server wires the engine, metrics, and logger into an HTTP surface: one
// route per named Query Surface operation (§4.10), plus /healthz and
// /metrics.
type Server struct {
	eng    *mnemometrics.InstrumentedEngine
	logger *zap.Logger
}

// NewServer builds a Server around an already-open engine.
func NewServer(eng *mnemometrics.InstrumentedEngine, logger *zap.Logger) *Server {
	return &Server{eng: eng, logger: logger}
}

// Router builds the chi handler tree.
func (s *Server) Router(metrics *mnemometrics.Collector) http.Handler {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(s.logRequest)

	r.Get("/healthz", s.healthz)
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		r.Post("/remember", s.handleRemember)
		r.Get("/items/{id}", s.handleGetItem)
		r.Post("/associate", s.handleAssociate)
		r.Post("/recall", s.handleRecall)
		r.Post("/search", s.handleSearch)
		r.Get("/trace/{id}", s.handleTrace)
		r.Post("/feedback", s.handleFeedback)
		r.Post("/decay", s.handleDecay)
		r.Post("/consolidate", s.handleConsolidate)
		r.Get("/summarize", s.handleSummarize)
		r.Post("/activate", s.handleActivate)
		r.Get("/stats", s.handleStats)
		r.Post("/snapshot", s.handleSnapshot)
		r.Get("/patterns", s.handlePatterns)

		r.Route("/policy", func(r chi.Router) {
			r.Get("/", s.handleGetPolicy)
			r.Put("/", s.handleSetPolicy)
			r.Get("/fn/{name}", s.handleGetPolicyFn)
			r.Put("/fn/{name}", s.handleSetPolicyFn)
			r.Get("/versions", s.handleListPolicyVersions)
			r.Put("/recall-scorers", s.handleSetRecallScorers)
			r.Put("/generator", s.handleSetPolicyGenerator)
			r.Post("/adapt", s.handleAdaptPolicy)
		})
	})

	return r
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRemember(w http.ResponseWriter, r *http.Request) {
	var in graph.RememberInput
	if !decodeJSON(w, r, &in) {
		return
	}
	item, err := s.eng.Remember(in)
	if !writeResult(w, item, err) {
		return
	}
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	item, err := s.eng.Unwrap().GetItem(chi.URLParam(r, "id"))
	writeResult(w, item, err)
}

func (s *Server) handleAssociate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		From, To, Relation string
		Weight             float64
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	edge, err := s.eng.Associate(req.From, req.To, req.Relation, req.Weight)
	writeResult(w, edge, err)
}

func (s *Server) handleRecall(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query string
		Limit int
		Scope string
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	results, err := s.eng.Recall(r.Context(), req.Query, req.Limit, req.Scope)
	writeResult(w, results, err)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query string
		Limit int
		Scope string
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	results, err := s.eng.Unwrap().Search(r.Context(), req.Query, req.Limit, req.Scope)
	writeResult(w, results, err)
}

func (s *Server) handleTrace(w http.ResponseWriter, r *http.Request) {
	depth := 3
	if d := r.URL.Query().Get("depth"); d != "" {
		if n, err := strconv.Atoi(d); err == nil {
			depth = n
		}
	}
	paths, err := s.eng.Unwrap().Trace(chi.URLParam(r, "id"), depth)
	writeResult(w, paths, err)
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID      string
		Outcome bool
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	err := s.eng.Feedback(req.ID, req.Outcome)
	writeResult(w, map[string]bool{"ok": err == nil}, err)
}

func (s *Server) handleDecay(w http.ResponseWriter, r *http.Request) {
	var req struct {
		HalfLifeDays float64
	}
	_ = decodeJSONOptional(r, &req)
	stats := s.eng.DecayNow(r.Context(), req.HalfLifeDays)
	writeResult(w, stats, nil)
}

func (s *Server) handleConsolidate(w http.ResponseWriter, r *http.Request) {
	stats := s.eng.Consolidate()
	writeResult(w, stats, nil)
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	text := s.eng.Unwrap().Summarize(r.URL.Query().Get("scope"))
	writeResult(w, map[string]string{"manifest": text}, nil)
}

func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Seeds       map[string]float64
		Steps       int
		DecayFactor float64
		Threshold   float64
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	out, err := s.eng.Unwrap().Activate(r.Context(), req.Seeds, req.Steps, req.DecayFactor, req.Threshold)
	writeResult(w, out, err)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.eng.RefreshGauges()
	writeResult(w, s.eng.Unwrap().Stats(), nil)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	text, err := s.eng.Snapshot(r.Context())
	writeResult(w, map[string]string{"snapshot": text}, err)
}

func (s *Server) handlePatterns(w http.ResponseWriter, r *http.Request) {
	minSize := 2
	if v := r.URL.Query().Get("minSize"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			minSize = n
		}
	}
	writeResult(w, s.eng.Unwrap().FindConvergentPatterns(minSize), nil)
}

func (s *Server) handleGetPolicy(w http.ResponseWriter, r *http.Request) {
	writeResult(w, s.eng.Unwrap().GetPolicy(), nil)
}

func (s *Server) handleSetPolicy(w http.ResponseWriter, r *http.Request) {
	var pol graph.Policy
	if !decodeJSON(w, r, &pol) {
		return
	}
	s.eng.Unwrap().SetPolicy(pol)
	writeResult(w, map[string]bool{"ok": true}, nil)
}

func (s *Server) handleGetPolicyFn(w http.ResponseWriter, r *http.Request) {
	src, err := s.eng.Unwrap().GetPolicyFn(chi.URLParam(r, "name"))
	writeResult(w, map[string]string{"source": src}, err)
}

func (s *Server) handleSetPolicyFn(w http.ResponseWriter, r *http.Request) {
	var req struct{ Source string }
	if !decodeJSON(w, r, &req) {
		return
	}
	id, err := s.eng.Unwrap().SetPolicyFn(chi.URLParam(r, "name"), req.Source)
	writeResult(w, map[string]string{"version": id}, err)
}

func (s *Server) handleListPolicyVersions(w http.ResponseWriter, r *http.Request) {
	writeResult(w, s.eng.Unwrap().ListPolicyVersions(), nil)
}

func (s *Server) handleSetRecallScorers(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Fns      []string
		Combiner string
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	s.eng.Unwrap().SetRecallScorers(req.Fns, req.Combiner)
	writeResult(w, map[string]bool{"ok": true}, nil)
}

func (s *Server) handleSetPolicyGenerator(w http.ResponseWriter, r *http.Request) {
	var req struct{ Source string }
	if !decodeJSON(w, r, &req) {
		return
	}
	s.eng.Unwrap().SetPolicyFnGenerator(req.Source)
	writeResult(w, map[string]bool{"ok": true}, nil)
}

func (s *Server) handleAdaptPolicy(w http.ResponseWriter, r *http.Request) {
	src, err := s.eng.Unwrap().AdaptPolicy(r.Context())
	writeResult(w, map[string]string{"source": src}, err)
}

// --- helpers ---

type contextKey string

const requestIDKey contextKey = "requestID"

// requestID mirrors the teacher's request-id middleware: reuse an
// incoming X-Request-ID, otherwise mint one.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

func (s *Server) logRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", r.Context().Value(requestIDKey).(string)),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return false
	}
	return true
}

// decodeJSONOptional decodes a body that may be absent (e.g. decay!'s
// optional half-life argument); a missing or empty body is not an error.
func decodeJSONOptional(r *http.Request, v any) error {
	if r.ContentLength == 0 {
		return nil
	}
	return json.NewDecoder(r.Body).Decode(v)
}

func writeResult(w http.ResponseWriter, v any, err error) bool {
	if err != nil {
		writeJSON(w, statusForError(err), map[string]string{"error": err.Error()})
		return false
	}
	writeJSON(w, http.StatusOK, v)
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func statusForError(err error) int {
	switch {
	case mnemoerrors.IsNotFound(err):
		return http.StatusNotFound
	case mnemoerrors.IsValidation(err), mnemoerrors.IsDuplicate(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
