package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/s0up4200/mircrew/mircrew"
)

const shutdownTimeout = 10 * time.Second

// NewRouter registers the API routes
func NewRouter(api mircrew.API, logger zerolog.Logger) *mux.Router {
	h := NewHandler(api, logger)

	r := mux.NewRouter()
	r.Use(requestLogger(logger))

	r.HandleFunc("/healthz", h.Health).Methods(http.MethodGet)

	// Routes live on the root router so a method mismatch answers 405
	r.HandleFunc("/api/search", h.Search).Methods(http.MethodGet)
	r.HandleFunc("/api/movies/{id}", h.Details).Methods(http.MethodGet)
	r.HandleFunc("/api/movies/{id}/magnet", h.Magnet).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, kindInvalidRequest, "no such endpoint")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, kindInvalidRequest, "method not allowed")
	})

	return r
}

// Server serves the API until its context is cancelled
type Server struct {
	srv    *http.Server
	logger zerolog.Logger
}

func New(addr string, api mircrew.API, logger zerolog.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(api, logger),
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			// a magnet request performs several forum round trips
			WriteTimeout: 5 * time.Minute,
			IdleTimeout:  120 * time.Second,
		},
		logger: logger,
	}
}

// Run listens until ctx is done, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info().Str("addr", s.srv.Addr).Msg("Server starting")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		s.logger.Info().Msg("Shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
