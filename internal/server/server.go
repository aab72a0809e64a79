// Package server exposes engine analysis over HTTP and WebSocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/hailam/cactus/internal/coupler"
	"github.com/hailam/cactus/internal/storage"
)

const (
	defaultMoveTime = time.Second
	maxMoveTime     = time.Minute
	maxDepth        = 64
	shutdownTimeout = 5 * time.Second
)

type Options struct {
	// MoveTime is used when a request sets neither depth nor movetime.
	MoveTime time.Duration
	// AccessLog receives one line per request in Apache combined format.
	AccessLog io.Writer
	// Origins allowed by CORS; empty allows any.
	Origins []string
}

// Server answers analysis requests with engines from a pool. The store is
// optional; without it nothing is cached or archived.
type Server struct {
	router   *mux.Router
	handler  http.Handler
	pool     *coupler.Pool
	store    *storage.Store
	upgrader websocket.Upgrader
	moveTime time.Duration
	log      logrus.FieldLogger
}

func New(pool *coupler.Pool, store *storage.Store, opts Options) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		pool:     pool,
		store:    store,
		moveTime: opts.MoveTime,
		log:      logrus.WithField("component", "server"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	if s.moveTime <= 0 {
		s.moveTime = defaultMoveTime
	}

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.health).Methods(http.MethodGet)
	api.HandleFunc("/bestmove", s.bestMove).Methods(http.MethodPost)
	api.HandleFunc("/legal", s.legal).Methods(http.MethodPost)
	api.HandleFunc("/games", s.games).Methods(http.MethodGet)
	s.router.HandleFunc("/ws/analyse", s.analyse)
	notFound := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, errors.New("not found"))
	})
	notAllowed := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
	})
	// The root router's fallback would otherwise swallow the subrouter's
	// method mismatch as a 404.
	for _, r := range []*mux.Router{s.router, api} {
		r.NotFoundHandler = notFound
		r.MethodNotAllowedHandler = notAllowed
	}

	accessLog := opts.AccessLog
	if accessLog == nil {
		accessLog = logrus.StandardLogger().WriterLevel(logrus.DebugLevel)
	}
	cors := []handlers.CORSOption{
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	}
	if len(opts.Origins) > 0 {
		cors = append(cors, handlers.AllowedOrigins(opts.Origins))
	}
	var h http.Handler = s.router
	h = handlers.CORS(cors...)(h)
	h = handlers.RecoveryHandler(handlers.RecoveryLogger(s.log), handlers.PrintRecoveryStack(true))(h)
	h = handlers.CombinedLoggingHandler(accessLog, h)
	s.handler = h
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log.WithField("addr", addr).Info("listening")

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"engines": len(s.pool.Handles()),
		"storage": s.store != nil,
	})
}
