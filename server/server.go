package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/murmurchat/murmur/internal/chat"
	"github.com/murmurchat/murmur/internal/feed"
	"github.com/murmurchat/murmur/internal/profile"
	"github.com/murmurchat/murmur/plugin/ai"
	"github.com/murmurchat/murmur/plugin/storage/s3"
	"github.com/murmurchat/murmur/plugin/vectorstore"
	apiv1 "github.com/murmurchat/murmur/server/router/api/v1"
	"github.com/murmurchat/murmur/server/router/mcp"
	"github.com/murmurchat/murmur/server/router/rss"
	"github.com/murmurchat/murmur/server/runner/indexer"
	"github.com/murmurchat/murmur/store"
)

type Server struct {
	Secret  string
	Profile *profile.Profile
	Store   *store.Store

	echoServer   *echo.Echo
	httpServer   *http.Server
	apiV1Service *apiv1.APIV1Service
	feed         *feed.Aggregator
	indexer      *indexer.Runner

	runnerCancel context.CancelFunc
	runners      *errgroup.Group
}

func NewServer(ctx context.Context, profile *profile.Profile, store *store.Store) (*Server, error) {
	s := &Server{
		Secret:  profile.Secret,
		Profile: profile,
		Store:   store,
		feed:    feed.NewAggregator(store, profile.FeedLimit),
	}

	plugins, err := loadPlugins(ctx, profile)
	if err != nil {
		return nil, err
	}
	if plugins.VectorStore != nil {
		s.indexer = indexer.NewRunner(store, plugins.VectorStore)
	}

	echoServer := echo.New()
	echoServer.Use(middleware.Recover())
	s.echoServer = echoServer

	echoServer.GET("/healthz", func(c *echo.Context) error {
		return c.String(http.StatusOK, "Service ready.")
	})
	echoServer.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.metricsRegistry(), promhttp.HandlerOpts{})))

	rss.NewRSSService(profile, store, s.feed).RegisterRoutes(echoServer.Group(""))
	mcp.NewMCPService(profile.Version, store, s.feed, plugins.VectorStore).RegisterRoutes(echoServer)

	s.apiV1Service = apiv1.NewAPIV1Service(s.Secret, profile, store, s.feed, plugins)
	if err := s.apiV1Service.RegisterGateway(ctx, echoServer); err != nil {
		return nil, errors.Wrap(err, "failed to register api v1")
	}

	s.httpServer = &http.Server{
		Handler:           echoServer,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// loadPlugins builds the optional collaborators configured by the profile.
func loadPlugins(ctx context.Context, profile *profile.Profile) (apiv1.Plugins, error) {
	var plugins apiv1.Plugins

	generator, err := ai.NewGenerator(ctx, profile)
	switch {
	case errors.Is(err, ai.ErrNotConfigured):
		slog.Warn("AI provider is not configured, chat and summaries are disabled")
	case err != nil:
		return plugins, errors.Wrap(err, "failed to create AI generator")
	default:
		plugins.Generator = generator
	}

	if profile.EmbeddingBaseURL != "" {
		embedFunc := vectorstore.NewEmbeddingFunc(profile.EmbeddingBaseURL, profile.AIAPIKey, profile.EmbeddingModel)
		vs, err := vectorstore.New(profile.Data, embedFunc)
		if err != nil {
			return plugins, errors.Wrap(err, "failed to open vectorstore")
		}
		plugins.VectorStore = vs
	}

	if profile.S3Bucket != "" {
		archive, err := s3.NewClient(ctx, &s3.Config{
			Endpoint:        profile.S3Endpoint,
			Region:          profile.S3Region,
			Bucket:          profile.S3Bucket,
			AccessKeyID:     profile.S3AccessKey,
			AccessKeySecret: profile.S3SecretKey,
			UsePathStyle:    profile.S3Endpoint != "",
		})
		if err != nil {
			return plugins, errors.Wrap(err, "failed to create s3 client")
		}
		plugins.Archive = archive
	}
	return plugins, nil
}

func (s *Server) metricsRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "murmur_chat_event_subscribers",
			Help: "Open chat event subscriptions.",
		}, func() float64 { return float64(s.Store.SubscriberCount()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "murmur_chat_sessions",
			Help: "Chat sessions held in memory.",
		}, func() float64 {
			if s.apiV1Service == nil {
				return 0
			}
			return float64(s.apiV1Service.Sessions.Size())
		}),
	)
	registry.MustRegister(chat.Collectors()...)
	return registry
}

func (s *Server) Start(ctx context.Context) error {
	address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return errors.Wrap(err, "failed to listen")
	}

	if err := s.feed.Start(ctx); err != nil {
		listener.Close()
		return errors.Wrap(err, "failed to start feed")
	}
	s.StartBackgroundRunners(ctx)

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("failed to start echo server", slog.Any("err", err))
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	slog.Info("server shutting down")

	// Shutdown echo server.
	if err := s.httpServer.Shutdown(ctx); err != nil {
		slog.Error("failed to shutdown server", slog.String("error", err.Error()))
	}

	// Stop background runners.
	if s.runnerCancel != nil {
		s.runnerCancel()
	}
	s.feed.Close()
	if s.runners != nil {
		if err := s.runners.Wait(); err != nil {
			slog.Error("background runner failed", slog.Any("err", err))
		}
	}
	s.apiV1Service.Close()

	// Close database connection.
	if err := s.Store.Close(); err != nil {
		slog.Error("failed to close database", slog.String("error", err.Error()))
	}

	slog.Info("server stopped properly")
}

// StartBackgroundRunners follows the change stream in the shared feed and,
// when semantic search is configured, in the search index.
func (s *Server) StartBackgroundRunners(ctx context.Context) {
	runnerCtx, cancel := context.WithCancel(ctx)
	s.runnerCancel = cancel

	g, gctx := errgroup.WithContext(runnerCtx)
	g.Go(func() error {
		return s.feed.Run(gctx)
	})
	if s.indexer != nil {
		g.Go(func() error {
			s.indexer.Run(gctx)
			return nil
		})
	}
	s.runners = g
	slog.Info("background runners started", slog.Bool("indexer", s.indexer != nil))
}

func (s *Server) GetEcho() *echo.Echo {
	return s.echoServer
}
