// Package server serves cluster state over HTTP.
package server

import (
	"context"
	stderrors "errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rileyhilliard/slurmdash/internal/errors"
	"github.com/rileyhilliard/slurmdash/internal/logger"
	"github.com/rileyhilliard/slurmdash/internal/query"
)

// Options configures a Server.
type Options struct {
	Listen          string
	ShutdownTimeout time.Duration
	// Metrics is served on /metrics when set.
	Metrics http.Handler
	Logger  logger.Logger
}

// Server is the HTTP front end over a query.Service.
type Server struct {
	svc    *query.Service
	opts   Options
	log    logger.Logger
	engine *gin.Engine
}

// New builds the router. Nothing listens until Run.
func New(svc *query.Service, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logger.Noop()
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}

	s := &Server{svc: svc, opts: opts, log: opts.Logger}
	s.engine = s.routes()
	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run listens on the configured address until ctx is cancelled, then
// shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Listen)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Couldn't listen on "+s.opts.Listen,
			"Pick a free address with server.listen in slurmdash.yaml.")
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		s.log.Info("listening on http://%s", ln.Addr())
		if err := srv.Serve(ln); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-serverErr
}

func (s *Server) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.log))

	r.GET("/healthz", s.handleHealthz)
	if s.opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(s.opts.Metrics))
	}

	v1 := r.Group("/api/v1")
	{
		v1.GET("/clusters", s.handleListClusters)   // GET /api/v1/clusters?mode=
		v1.GET("/clusters/:id", s.handleGetCluster) // GET /api/v1/clusters/{id}?mode=
	}

	r.GET("/data/:id", s.handleData)
	return r
}

// requestLogger logs one line per request through the application logger.
func requestLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("%s %s %d %s", c.Request.Method, c.Request.URL.RequestURI(), c.Writer.Status(), time.Since(start).Round(time.Microsecond))
	}
}
