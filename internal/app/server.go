package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/markdave123-py/silverrag/internal/api/handlers"
	appMiddleware "github.com/markdave123-py/silverrag/internal/api/middlewares"
	"github.com/markdave123-py/silverrag/internal/config"
	"github.com/markdave123-py/silverrag/internal/core"
	"github.com/markdave123-py/silverrag/internal/core/ingestion_engine"
	"github.com/markdave123-py/silverrag/internal/observability/metrics"
	"github.com/markdave123-py/silverrag/internal/services"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterDeps are the collaborators the HTTP surface is built from.
type RouterDeps struct {
	Config    *config.Config
	Logger    zerolog.Logger
	Metrics   *metrics.Metrics
	UserStore core.UserStore
	Health    Pinger

	Ingestor  ingestion_engine.Ingestor
	Documents *services.DocumentService
	Users     *services.UserService
	Tokens    *services.TokenService
	Chat      *services.ChatService
}

// NewRouter wires every route.
func NewRouter(d RouterDeps) http.Handler {
	cfg := d.Config
	authHandler := handlers.NewAuthHandler(d.Users, d.Tokens)
	docHandler := handlers.NewDocumentHandler(d.Ingestor, d.Documents, cfg.UploadMaxBytes, cfg.SignedURLDuration)
	chatHandler := handlers.NewChatHandler(d.Chat, d.Metrics)
	requireUser := appMiddleware.JWTMiddleware(d.Tokens, d.UserStore, cfg.AccessLogEnabled)
	optionalUser := appMiddleware.OptionalJWTMiddleware(d.Tokens, d.UserStore)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(appMiddleware.RequestLogger(d.Logger))
	r.Use(middleware.Recoverer)
	r.Use(d.Metrics.Middleware)
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CorsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", healthz(d.Health))
	r.Handle("/metrics", d.Metrics.Handler())

	r.Route("/documents", func(docs chi.Router) {
		docs.Post("/upload", docHandler.UploadDocument)
		docs.Get("/list", docHandler.ListDocuments)
		docs.Get("/single", docHandler.LookupDocument)
		docs.Get("/id/{id}", docHandler.GetDocument)
		docs.Get("/embedding/{indexDocID}", docHandler.GetDocumentByIndexID)
		docs.Get("/{id}/file", docHandler.DownloadFile)
		docs.Get("/{id}/file/url", docHandler.FileURL)
		docs.Delete("/{id}", docHandler.DeleteDocument)
	})

	r.Route("/users", func(users chi.Router) {
		// public endpoints
		users.With(optionalUser).Post("/create", authHandler.CreateUser)
		users.Post("/login", authHandler.Login)

		// protected endpoints
		users.Group(func(protected chi.Router) {
			protected.Use(requireUser)
			protected.Put("/change-password", authHandler.ChangePassword)
			protected.Get("/profile", authHandler.Profile)
		})
	})

	r.Route("/chat", func(chat chi.Router) {
		chat.Use(requireUser)
		chat.Post("/messages", chatHandler.SendMessage)
		chat.Get("/conversations", chatHandler.Conversations)
		chat.Get("/conversations/messages", chatHandler.ConversationMessages)
		chat.Get("/messages/{id}/suggested", chatHandler.SuggestedQuestions)
	})

	return r
}

func healthz(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.Ping(ctx); err != nil {
				log.Ctx(r.Context()).Error().Err(err).Msg("health check failed")
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"unavailable"}`))
				return
			}
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
}

func NewServer(cfg *config.Config, handler http.Handler) *Server {
	return &Server{httpServer: &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 30 * time.Second,
	}}
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	log.Info().Str("addr", s.httpServer.Addr).Msg("HTTP server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
