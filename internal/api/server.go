// Package api serves the live state of a calibration session over HTTP.
package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/banshee-data/clockdrive/internal/httputil"
	"github.com/banshee-data/clockdrive/internal/recorder"
	"github.com/banshee-data/clockdrive/internal/road"
	"github.com/banshee-data/clockdrive/internal/tracedb"
	"github.com/banshee-data/clockdrive/internal/traceplot"
)

// TraceSource is the live session being served. *recorder.Session
// implements it.
type TraceSource interface {
	Status() recorder.Status
	Trace() road.Trace
}

// SessionStore lists persisted sessions. *tracedb.DB implements it.
type SessionStore interface {
	Sessions(ctx context.Context, limit int) ([]tracedb.SessionRecord, error)
}

// Server exposes the recorder over HTTP.
type Server struct {
	source TraceSource
	store  SessionStore

	radius        int
	normalization road.Normalization

	mu       sync.RWMutex
	filtered road.Trace // set once the session has been exported
}

// NewServer returns a Server for source. store may be nil, in which case
// /sessions reports 503. radius and normalization control the preview
// filtering applied before the session is exported.
func NewServer(source TraceSource, store SessionStore, radius int, normalization road.Normalization) *Server {
	return &Server{
		source:        source,
		store:         store,
		radius:        radius,
		normalization: normalization,
	}
}

// SetFiltered records the exported filtered trace so later requests serve
// exactly what was written to disk.
func (s *Server) SetFiltered(filtered road.Trace) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filtered = filtered.Clone()
}

// ServeMux returns the route table.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/trace", s.handleTrace)
	mux.HandleFunc("/trace.csv", s.handleTraceCSV)
	mux.HandleFunc("/chart", s.handleChart)
	mux.HandleFunc("/sessions", s.handleSessions)
	return mux
}

// Handler returns the route table wrapped in request logging.
func (s *Server) Handler() http.Handler {
	return LoggingMiddleware(s.ServeMux())
}

// StatusResponse is the /status payload.
type StatusResponse struct {
	recorder.Status
	Banner  string       `json:"banner"`
	Summary road.Summary `json:"summary"`
}

// TraceResponse is the /trace payload.
type TraceResponse struct {
	Raw      road.Trace `json:"raw"`
	Filtered road.Trace `json:"filtered"`
	Exported bool       `json:"exported"`
}

func (s *Server) traces() (raw, filtered road.Trace, exported bool, err error) {
	raw = s.source.Trace()

	s.mu.RLock()
	filtered = s.filtered
	s.mu.RUnlock()
	if filtered != nil {
		return raw, filtered.Clone(), true, nil
	}

	filtered, err = s.normalization.Apply(raw, s.radius)
	return raw, filtered, false, err
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	st := s.source.Status()
	httputil.WriteJSONOK(w, StatusResponse{
		Status:  st,
		Banner:  st.String(),
		Summary: road.Summarize(s.source.Trace()),
	})
}

func (s *Server) handleTrace(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	raw, filtered, exported, err := s.traces()
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, TraceResponse{Raw: raw, Filtered: filtered, Exported: exported})
}

func (s *Server) handleTraceCSV(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	_, filtered, _, err := s.traces()
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}

	var buf bytes.Buffer
	if err := road.WriteCSV(&buf, filtered); err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.csv", road.DefaultExportPrefix))
	w.Write(buf.Bytes())
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	raw, filtered, _, err := s.traces()
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}

	var buf bytes.Buffer
	if err := traceplot.RenderHTML(&buf, raw, filtered); err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	if s.store == nil {
		httputil.ServiceUnavailable(w, "session database not configured")
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			httputil.BadRequest(w, fmt.Sprintf("invalid limit %q", v))
			return
		}
		limit = n
	}

	sessions, err := s.store.Sessions(r.Context(), limit)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	if sessions == nil {
		sessions = []tracedb.SessionRecord{}
	}
	httputil.WriteJSONOK(w, sessions)
}
