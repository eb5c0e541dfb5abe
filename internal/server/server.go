// Package server is the composition root: it opens the database, wires
// repositories into services into handlers, and mounts the route tree.
// No other package creates dependencies; everything is assembled here
// and passed down.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/fancy-blog/internal/auth"
	"github.com/sakif/fancy-blog/internal/config"
	"github.com/sakif/fancy-blog/internal/handler"
	"github.com/sakif/fancy-blog/internal/middleware"
	"github.com/sakif/fancy-blog/internal/repository/gormdb"
	"github.com/sakif/fancy-blog/internal/service"
)

// Server owns the router and the database connection. The connection is
// closed during graceful shutdown, after in-flight requests drain.
type Server struct {
	router *chi.Mux
	cfg    config.Config
	logger *slog.Logger
	db     *gormdb.DB
}

// New assembles the full dependency chain and route tree.
func New(cfg config.Config, logger *slog.Logger) (*Server, error) {
	db, err := gormdb.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		cfg:    cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// providers builds the OAuth registry from config. A provider with no
// client id is simply absent, and its callback 404s.
func (s *Server) providers() auth.Registry {
	reg := auth.Registry{}
	if s.cfg.GitHub.ClientID != "" {
		reg["github"] = auth.NewGitHubProvider(
			s.cfg.GitHub.ClientID, s.cfg.GitHub.ClientSecret, s.cfg.GitHub.CallbackURL)
	}
	if s.cfg.Google.ClientID != "" {
		reg["google"] = auth.NewGoogleProvider(
			s.cfg.Google.ClientID, s.cfg.Google.ClientSecret, s.cfg.Google.CallbackURL)
	}
	return reg
}

func (s *Server) setupRoutes() error {
	tokens, err := auth.NewTokenService(
		s.cfg.JWTSecret, s.cfg.RefreshSecret, s.cfg.JWTExpiresIn, s.cfg.RefreshExpiresIn)
	if err != nil {
		return err
	}
	passwords := auth.NewPasswordService()

	userService := service.NewUserService(
		s.db.Users(), s.db.Sessions(), tokens, passwords, s.cfg.AdminCode, s.logger)
	postService := service.NewPostService(s.db.Posts(), s.cfg.MaxPageSize, s.logger)
	commentService := service.NewCommentService(s.db.Comments(), s.db.Posts(), s.logger)

	userHandler := handler.NewUserHandler(
		userService, s.providers(), s.cfg.RefreshExpiresIn, s.cfg.IsProduction(), s.logger)
	postHandler := handler.NewPostHandler(postService, s.cfg.MaxAbstractLength, s.logger)
	commentHandler := handler.NewCommentHandler(commentService, s.cfg.MaxPageSize, s.logger)

	// Order matters: the session middleware only attaches identity, so
	// it runs globally; RequireAuth gates individual routes.
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(auth.Sessions(tokens, s.db.Users()))

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/user", func(r chi.Router) {
			r.Post("/", userHandler.HandleSignup)
			r.Post("/login", userHandler.HandleLogin)
			r.Post("/refresh", userHandler.HandleRefresh)
			r.Get("/oauth/{provider}", userHandler.HandleOAuthStart)
			r.Get("/oauth/{provider}/callback", userHandler.HandleOAuthCallback)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAuth(false))
				r.Get("/", userHandler.HandleProfile)
				r.Put("/", userHandler.HandleUpdate)
				r.Delete("/", userHandler.HandleDelete)
				r.Get("/logout", userHandler.HandleLogout)
			})
		})

		r.Route("/post", func(r chi.Router) {
			r.Get("/", postHandler.HandleList)
			r.Get("/{id}", postHandler.HandleGet)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAuth(true))
				r.Post("/", postHandler.HandleCreate)
				r.Put("/{id}", postHandler.HandleUpdate)
				r.Delete("/{id}", postHandler.HandleDelete)
			})
		})

		r.Get("/tag", postHandler.HandleTags)

		r.Route("/comment", func(r chi.Router) {
			r.Get("/", commentHandler.HandleList)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAuth(false))
				r.Post("/", commentHandler.HandleCreate)
				r.Put("/{id}", commentHandler.HandleUpdate)
				r.Delete("/{id}", commentHandler.HandleDelete)
			})
		})
	})

	return nil
}

// Router exposes the assembled route tree, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start runs the server until SIGINT or SIGTERM, then drains in-flight
// requests and closes the database.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.cfg.Port),
			slog.String("env", s.cfg.Env),
			slog.String("database", s.cfg.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
