// Package server wires the services together and serves the REST API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/medrecall/medrecall/internal/profile"
	"github.com/medrecall/medrecall/plugin/ai"
	"github.com/medrecall/medrecall/plugin/ai/notegen"
	appmw "github.com/medrecall/medrecall/server/middleware"
	apiv1 "github.com/medrecall/medrecall/server/router/api/v1"
	"github.com/medrecall/medrecall/server/service/performance"
	"github.com/medrecall/medrecall/server/service/practice"
	"github.com/medrecall/medrecall/server/service/resolver"
	"github.com/medrecall/medrecall/server/service/review"
	"github.com/medrecall/medrecall/server/service/revision"
	"github.com/medrecall/medrecall/store"
)

const refreshWorkers = 4

// Server is the HTTP server plus the background refresh queue.
type Server struct {
	profile *profile.Profile
	store   *store.Store
	echo    *echo.Echo

	revisionService *revision.Service
}

// NewServer builds the full service graph over the given store.
func NewServer(ctx context.Context, profile *profile.Profile, st *store.Store) (*Server, error) {
	generator, err := newGenerator(ctx, profile)
	if err != nil {
		return nil, err
	}

	resolverService := resolver.NewService(st)
	perfService := performance.NewService(st)
	reviewService := review.NewService(st)
	revisionService := revision.NewService(st, resolverService, perfService, generator, revision.NewRefreshQueue(refreshWorkers))
	practiceService := practice.NewService(st, resolverService, perfService, reviewService)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(requestLogger())
	e.Use(appmw.NewRateLimiter(10, 20).PerCaller(apiv1.UserIDHeader))

	apiv1.NewAPIV1Service(profile, st, practiceService, reviewService, revisionService, perfService).Register(e)

	return &Server{
		profile:         profile,
		store:           st,
		echo:            e,
		revisionService: revisionService,
	}, nil
}

// newGenerator picks the note generator for the profile. Without an
// API key the service still runs; every note is built from the
// deterministic fallback content.
func newGenerator(ctx context.Context, profile *profile.Profile) (notegen.Generator, error) {
	if !profile.IsGeneratorEnabled() {
		slog.Info("note generator disabled, serving fallback notes only")
		return notegen.NewMockGenerator(), nil
	}

	provider, err := ai.NewProvider(&ai.Config{
		BaseURL:   profile.OpenAIBaseURL,
		APIKey:    profile.OpenAIAPIKey,
		ChatModel: profile.GeneratorModel,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create ai provider")
	}
	if err := provider.Validate(ctx); err != nil {
		return nil, errors.Wrap(err, "validate ai provider")
	}
	return notegen.NewOpenAIGenerator(provider), nil
}

// requestLogger logs every request through slog.
func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
			}
			if v.Error != nil {
				attrs = append(attrs, "error", v.Error)
				slog.Error("request", attrs...)
				return nil
			}
			slog.Info("request", attrs...)
			return nil
		},
	})
}

// Start serves HTTP until the context is canceled.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.profile.Addr, s.profile.Port)
	slog.Info("server started", "addr", addr, "mode", s.profile.Mode)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.echo.Start(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return nil
	}
}

// Shutdown drains in-flight requests and the refresh queue. It takes
// its own deadline because the serving context is already canceled by
// the time shutdown runs.
func (s *Server) Shutdown() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shut down http server", "error", err)
	}

	s.revisionService.Queue().Close()

	if err := s.store.Close(); err != nil {
		slog.Error("failed to close store", "error", err)
	}
	slog.Info("server shut down")
}
