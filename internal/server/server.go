package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"ragchat/internal/domain"
	"ragchat/internal/logger"
	"ragchat/internal/metrics"
)

const shutdownTimeout = 10 * time.Second

// Options configures the HTTP surface.
type Options struct {
	Port          int
	CORSOrigin    string
	TopicKeywords []string
	OffTopicReply string
	Gatherer      prometheus.Gatherer
	Recorder      metrics.Recorder
	Logger        logger.Logger
}

// Server exposes the chat pipeline over HTTP.
type Server struct {
	engine *gin.Engine
	http   *http.Server
	log    logger.Logger
}

func New(svc domain.ChatService, health domain.HealthChecker, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logger.Default()
	}
	if opts.Recorder == nil {
		opts.Recorder = metrics.NoopRecorder{}
	}
	engine := gin.New()
	engine.Use(gin.Recovery(), RequestContextMiddleware(opts.Logger), LoggerMiddleware(), CORSMiddleware(opts.CORSOrigin))

	api := engine.Group("/api")
	api.GET("", func(c *gin.Context) { c.String(http.StatusOK, "Hello World!") })
	api.GET("/health", createHealthHandler(health))
	api.POST("/chat", createChatHandler(svc, NewTopicFilter(opts.TopicKeywords), opts.OffTopicReply, opts.Recorder))
	if opts.Gatherer != nil {
		engine.GET("/metrics", gin.WrapH(metrics.HTTPHandler(opts.Gatherer)))
	}

	return &Server{
		engine: engine,
		http: &http.Server{
			Addr:              fmt.Sprintf(":%d", opts.Port),
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: opts.Logger,
	}
}

// Handler returns the routed engine.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info("HTTP server listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.log.Info("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}
