package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/raspd/raspd/internal/detect"
	"github.com/raspd/raspd/internal/logging"
	"github.com/raspd/raspd/internal/normalize"
	"github.com/raspd/raspd/internal/rules"
	"github.com/raspd/raspd/internal/session"
)

const defaultMaxBodyBytes = 1 << 20

// Server exposes the detectors to instrumented applications over local HTTP.
type Server struct {
	dispatcher *detect.Dispatcher
	sessions   *session.Registry
	store      *rules.Store
	logger     *logging.Logger
	maxBody    int64
}

func New(dispatcher *detect.Dispatcher, sessions *session.Registry, store *rules.Store) *Server {
	return &Server{
		dispatcher: dispatcher,
		sessions:   sessions,
		store:      store,
		logger:     logging.Nop(),
		maxBody:    defaultMaxBodyBytes,
	}
}

func (s *Server) SetLogger(logger *logging.Logger) {
	s.logger = logger
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.health)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/detect/{kind}", s.detect)
		r.Put("/sessions/{id}", s.putSession)
		r.Delete("/sessions/{id}", s.deleteSession)
		r.Get("/rules", s.listRules)
	})
	return r
}

func (s *Server) detect(w http.ResponseWriter, r *http.Request) {
	kind, err := detect.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	body, status, err := s.readBody(w, r)
	if err != nil {
		writeError(w, status, err.Error())
		return
	}

	outcome, err := s.dispatcher.Dispatch(kind, body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) putSession(w http.ResponseWriter, r *http.Request) {
	body, status, err := s.readBody(w, r)
	if err != nil {
		writeError(w, status, err.Error())
		return
	}
	var sess normalize.Session
	if err := json.Unmarshal(body, &sess); err != nil {
		writeError(w, http.StatusBadRequest, "invalid session: "+err.Error())
		return
	}
	s.sessions.Put(chi.URLParam(r, "id"), &sess)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if !s.sessions.Delete(chi.URLParam(r, "id")) {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type rulesResponse struct {
	Hash  string       `json:"hash"`
	Rules []rules.Rule `json:"rules"`
}

func (s *Server) listRules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, rulesResponse{Hash: s.store.Hash(), Rules: s.store.RuntimeRules()})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "rules": s.store.Len()})
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, int, error) {
	if r.ContentLength > s.maxBody {
		return nil, http.StatusRequestEntityTooLarge, errors.New("request body too large")
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, http.StatusRequestEntityTooLarge, errors.New("request body too large")
		}
		return nil, http.StatusBadRequest, err
	}
	if len(body) == 0 {
		return nil, http.StatusBadRequest, errors.New("request body is empty")
	}
	return body, 0, nil
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"remote", clientIP(r),
			"request_id", middleware.GetReqID(r.Context()),
			"duration", time.Since(start).String(),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
