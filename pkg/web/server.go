package web

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/drsholding/pkg/state"
)

// Probe is what the health endpoints consult
type Probe interface {
	IsReady() bool
	Alive(now time.Time) bool
}

// Server exposes health checks and read-only record inspection
type Server struct {
	store  state.Store
	probe  Probe
	now    func() time.Time
	router *gin.Engine
}

// NewServer creates a new web server. probe may be nil when no worker runs in the process.
func NewServer(ctx context.Context, store state.Store, probe Probe) (*Server, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(zerolog.Ctx(ctx)))

	s := &Server{
		store:  store,
		probe:  probe,
		now:    time.Now,
		router: router,
	}

	router.GET("/healthz", s.handleHealth)
	router.GET("/readyz", s.handleReady)
	router.GET("/records/:pqid", s.handleRecords)

	return s, nil
}

// Handler returns the router
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve listens on addr until ctx is done
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		zerolog.Ctx(ctx).Info().Str("addr", addr).Msg("http server listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return errors.Errorf("serving http: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Errorf("shutting down http server: %w", err)
	}
	return nil
}

func requestLogger(logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("http request")
	}
}
