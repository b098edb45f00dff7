package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	i128 "StreamLedger/internal/math"
	"StreamLedger/internal/observability"
	"StreamLedger/internal/persistence"
	"StreamLedger/internal/query"
)

// HTTPServer is the JSON query facade in front of the QueryService.
type HTTPServer struct {
	httpServer *http.Server
	logger     zerolog.Logger
	metrics    *observability.Metrics
}

// NewHTTPServer wires the query endpoints and health probes.
// metrics may be nil.
func NewHTTPServer(
	addr string,
	qs *query.QueryService,
	health *observability.HealthChecker,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) *HTTPServer {
	s := &HTTPServer{
		logger:  logger,
		metrics: metrics,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/streams", s.instrument("list_streams", s.handleListStreams(qs)))
	mux.HandleFunc("GET /v1/streams/{id}", s.instrument("get_stream", s.handleGetStream(qs)))
	mux.HandleFunc("GET /v1/streams/{id}/claimable", s.instrument("get_claimable", s.handleGetClaimable(qs)))
	mux.HandleFunc("GET /v1/integrity", s.instrument("verify_integrity", s.handleVerifyIntegrity(qs)))
	mux.HandleFunc("GET /healthz", health.LivenessHandler)
	mux.HandleFunc("GET /readyz", health.ReadinessHandler)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return s
}

// Start runs the HTTP server (blocking) and shuts down gracefully when the
// context is cancelled.
func (s *HTTPServer) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.logger.Info().Msg("http server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("http server listening")
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *HTTPServer) handleGetStream(qs *query.QueryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		streamID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil {
			s.writeError(w, "get_stream", http.StatusBadRequest, "invalid stream id")
			return
		}

		resp, err := qs.GetStream(r.Context(), streamID)
		if err != nil {
			s.writeServiceError(w, "get_stream", err)
			return
		}
		s.writeJSON(w, http.StatusOK, resp)
	}
}

func (s *HTTPServer) handleGetClaimable(qs *query.QueryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		streamID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil {
			s.writeError(w, "get_claimable", http.StatusBadRequest, "invalid stream id")
			return
		}

		var requestedAt *int64
		if at := r.URL.Query().Get("at"); at != "" {
			v, err := strconv.ParseInt(at, 10, 64)
			if err != nil {
				s.writeError(w, "get_claimable", http.StatusBadRequest, "invalid 'at' timestamp")
				return
			}
			requestedAt = &v
		}

		resp, err := qs.GetClaimable(r.Context(), streamID, requestedAt)
		if err != nil {
			s.writeServiceError(w, "get_claimable", err)
			return
		}
		s.writeJSON(w, http.StatusOK, resp)
	}
}

func (s *HTTPServer) handleListStreams(qs *query.QueryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		var recipient *string
		if v := q.Get("recipient"); v != "" {
			recipient = &v
		}

		limit := 100
		if v := q.Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				s.writeError(w, "list_streams", http.StatusBadRequest, "invalid limit")
				return
			}
			limit = n
		}

		var afterID *int64
		if v := q.Get("after"); v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				s.writeError(w, "list_streams", http.StatusBadRequest, "invalid cursor")
				return
			}
			afterID = &n
		}

		resp, err := qs.ListStreams(r.Context(), recipient, limit, afterID)
		if err != nil {
			s.writeServiceError(w, "list_streams", err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]interface{}{"streams": resp})
	}
}

func (s *HTTPServer) handleVerifyIntegrity(qs *query.QueryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := qs.VerifyIntegrity(r.Context())
		if err != nil {
			s.writeServiceError(w, "verify_integrity", err)
			return
		}
		s.writeJSON(w, http.StatusOK, report)
	}
}

func (s *HTTPServer) instrument(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next(w, r)
		if s.metrics != nil {
			s.metrics.QueryRequests.WithLabelValues(endpoint).Inc()
			s.metrics.QueryDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
		}
	}
}

// writeServiceError maps domain errors to HTTP statuses: unknown streams
// are 404, malformed stored amounts are a client-visible 422, anything
// else is a 500.
func (s *HTTPServer) writeServiceError(w http.ResponseWriter, endpoint string, err error) {
	var parseErr *i128.ParseError

	switch {
	case errors.Is(err, persistence.ErrStreamNotFound):
		s.writeError(w, endpoint, http.StatusNotFound, "stream not found")
	case errors.As(err, &parseErr):
		s.writeError(w, endpoint, http.StatusUnprocessableEntity, parseErr.Error())
	default:
		s.logger.Error().Str("endpoint", endpoint).Err(err).Msg("query failed")
		s.writeError(w, endpoint, http.StatusInternalServerError, "internal error")
	}
}

func (s *HTTPServer) writeError(w http.ResponseWriter, endpoint string, status int, msg string) {
	if s.metrics != nil {
		s.metrics.QueryErrors.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	}
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
