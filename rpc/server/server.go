package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/ValentinKolb/dQL/lib/dbs"
	"github.com/ValentinKolb/dQL/lib/dql"
	"github.com/ValentinKolb/dQL/lib/iam"
	"github.com/ValentinKolb/dQL/lib/sql"
	"github.com/ValentinKolb/dQL/rpc/common"
	"github.com/VictoriaMetrics/metrics"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("rpc")

var (
	requestsOK      = metrics.GetOrCreateCounter(`dql_rpc_requests_total{status="ok"}`)
	requestsInvalid = metrics.GetOrCreateCounter(`dql_rpc_requests_total{status="invalid"}`)
	requestsFailed  = metrics.GetOrCreateCounter(`dql_rpc_requests_total{status="failed"}`)
	requestDuration = metrics.GetOrCreateHistogram(`dql_rpc_request_duration_seconds`)
)

// Server exposes a Datastore over HTTP.
//
// Usage:
//
//	s := server.NewServer(ds, common.ServerConfig{Endpoint: ":8000"}, iam.Root())
//	if err := s.Serve(ctx); err != nil {
//		panic(err)
//	}
type Server struct {
	ds     *dql.Datastore
	config common.ServerConfig
	auth   *iam.Auth
}

// NewServer creates a server for ds. Every request runs with auth and the
// namespace and database chosen by its headers.
func NewServer(ds *dql.Datastore, config common.ServerConfig, auth *iam.Auth) *Server {
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = common.DefaultMaxBodyBytes
	}
	return &Server{ds: ds, config: config, auth: auth}
}

// Handler returns the routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	routes := map[string]http.HandlerFunc{
		"POST " + common.PathSQL:    s.handleSQL,
		"GET " + common.PathHealth:  s.handleHealth,
		"GET " + common.PathInfo:    s.handleInfo,
		"GET " + common.PathMetrics: handleMetrics,
	}
	for pattern, h := range routes {
		if s.config.LogRequests {
			h = loggerMiddleware(h)
		}
		mux.HandleFunc(pattern, h)
	}
	return mux
}

// Serve listens on the configured endpoint until ctx is done, then shuts the
// server down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Endpoint)
	if err != nil {
		return err
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener is Serve on an existing listener.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("starting HTTP server on %s", ln.Addr())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Infof("HTTP server stopped")
	return nil
}

// --------------------------------------------------------------------------
// Handlers
// --------------------------------------------------------------------------

func (s *Server) handleSQL(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer requestDuration.UpdateDuration(start)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes))
	defer r.Body.Close()
	if err != nil {
		requestsInvalid.Inc()
		writeError(w, http.StatusBadRequest, "failed to read request body: "+err.Error())
		return
	}

	sess := dbs.NewSession(s.auth).
		WithNS(r.Header.Get(common.HeaderNS)).
		WithDB(r.Header.Get(common.HeaderDB)).
		WithOrigin(uuid.NewString(), remoteIP(r), r.Header.Get("Origin"))

	pairs := make(map[string]string)
	for name, values := range r.URL.Query() {
		if len(values) > 0 {
			pairs[name] = values[0]
		}
	}

	ctx := r.Context()
	if s.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.Timeout)
		defer cancel()
	}

	res, err := s.ds.Execute(ctx, string(body), sess, dbs.ParseVariables(pairs))
	if err != nil {
		var perr *sql.ParseError
		if errors.As(err, &perr) {
			requestsInvalid.Inc()
			writeError(w, http.StatusBadRequest, perr.Error())
			return
		}
		requestsFailed.Inc()
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	requestsOK.Inc()
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if _, err := s.ds.KV().Info(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.ds.KV().Info(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"backend": s.ds.KV().Backend(),
		"engine":  info,
	})
}

func handleMetrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	metrics.WritePrometheus(w, true)
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warningf("failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, code int, detail string) {
	writeJSON(w, code, common.ErrorBody{Code: code, Detail: detail})
}

func remoteIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		ip, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(ip)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// --------------------------------------------------------------------------
// Middleware (logging)
// --------------------------------------------------------------------------

// responseWriter captures the status code written by a handler
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// loggerMiddleware logs every request at debug level
func loggerMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(rw, r)

		log.Debugf("%s %s => %d took %s", r.Method, r.URL.Path, rw.statusCode, time.Since(start))
	}
}
