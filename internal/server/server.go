package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/tutorgate/tutorgate/internal/config"
	"github.com/tutorgate/tutorgate/internal/handlers"
	"github.com/tutorgate/tutorgate/internal/history"
	"github.com/tutorgate/tutorgate/internal/middleware"
	"github.com/tutorgate/tutorgate/internal/prompts"
	"github.com/tutorgate/tutorgate/internal/proxy"
	"github.com/tutorgate/tutorgate/internal/registry"
	"github.com/tutorgate/tutorgate/internal/syllabus"
)

type Server struct {
	config  *config.Manager
	logger  *slog.Logger
	server  *http.Server
	history history.Store
}

func New(configManager *config.Manager, logger *slog.Logger) (*Server, error) {
	cfg := configManager.Get()
	if cfg == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}

	historyStore, err := history.NewMemoryStore(cfg.HistoryFile)
	if err != nil {
		return nil, fmt.Errorf("initializing history store: %w", err)
	}

	return &Server{
		config:  configManager,
		logger:  logger,
		history: historyStore,
	}, nil
}

func (s *Server) Start() error {
	cfg := s.config.Get()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:    addr,
		Handler: s.setupRoutes(cfg),
	}

	s.logger.Info("Starting server", "address", addr)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Server error", "error", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	s.logger.Info("Server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	s.logger.Info("Server exited")
	return nil
}

func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}

func (s *Server) setupRoutes(cfg *config.Config) http.Handler {
	resolver := registry.NewResolver(s.config)
	orchestrator := proxy.New(resolver, s.logger)
	promptStore := prompts.NewStore(cfg.PromptsDir)
	syllabusStore := syllabus.NewStore(cfg.SyllabusDir, cfg.MainSubject)

	askHandler := handlers.NewAskHandler(orchestrator, promptStore, s.history, s.logger)
	mcqHandler := handlers.NewMCQHandler(orchestrator, promptStore, s.history, s.logger)
	functionHandler := handlers.NewFunctionHandler(orchestrator, s.logger)
	syllabusHandler := handlers.NewSyllabusHandler(syllabusStore, s.logger)
	historyHandler := handlers.NewHistoryHandler(s.history, s.logger)

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		MaxAge:         300,
	}))
	r.Use(middleware.NewLoggingMiddleware(s.logger))
	r.Use(middleware.NewAuthMiddleware(s.config, s.logger))

	r.Get("/health", handlers.HealthHandler)
	r.Route("/v1", func(r chi.Router) {
		// EventSource clients can only issue GETs; form posts also work.
		r.Get("/ask", askHandler.ServeHTTP)
		r.Post("/ask", askHandler.ServeHTTP)
		r.Post("/mcq", mcqHandler.ServeHTTP)
		r.Post("/websearch", functionHandler.WebSearch)
		r.Post("/youtube", functionHandler.YouTubeSummarize)
		r.Get("/syllabus", syllabusHandler.ServeHTTP)
		r.Post("/history/list", historyHandler.List)
		r.Get("/history/{id}", historyHandler.Get)
	})

	return r
}
