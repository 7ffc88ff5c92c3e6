package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/handlers"

	"github.com/edumesh/commchat/internal/config"
	"github.com/edumesh/commchat/internal/database"
	"github.com/edumesh/commchat/internal/server"
	"github.com/edumesh/commchat/internal/stats"
)

type CommChatApp struct {
	log            *log.Logger
	db             database.CommunityRepository
	mux            *http.Server
	cs             *server.ChatServer
	stats          stats.StatsProvider
	validate       *validator.Validate
	signingKey     []byte
	allowedOrigins []string
}

func NewCommChatApp(mux *http.ServeMux, logger *log.Logger, cs *server.ChatServer,
	db database.CommunityRepository, sp stats.StatsProvider, cfg *config.Config) *CommChatApp {
	s := &CommChatApp{
		log:            logger,
		db:             db,
		cs:             cs,
		stats:          sp,
		validate:       validator.New(),
		signingKey:     cfg.SigningKey,
		allowedOrigins: cfg.AllowedOrigins,
	}

	mux.HandleFunc("GET /healthz", s.healthCheck)
	mux.HandleFunc("POST /api/auth/register", s.createAccount)
	mux.HandleFunc("POST /api/auth/login", s.login)
	mux.HandleFunc("GET /api/auth/session", s.authMiddleware(s.session))
	mux.HandleFunc("GET /api/auth/logout", s.authMiddleware(s.logout))
	mux.HandleFunc("POST /api/communities", s.authMiddleware(s.createCommunity))
	mux.HandleFunc("GET /api/communities", s.authMiddleware(s.listCommunities))
	mux.HandleFunc("POST /api/communities/{slug}/join", s.authMiddleware(s.joinCommunity))
	mux.HandleFunc("POST /api/communities/{slug}/exit", s.authMiddleware(s.exitCommunity))
	mux.HandleFunc("GET /api/communities/{slug}/messages", s.authMiddleware(s.getMessages))
	mux.HandleFunc("GET /api/notifications", s.authMiddleware(s.listNotifications))
	mux.HandleFunc("POST /api/notifications/{id}/read", s.authMiddleware(s.markNotificationRead))
	mux.HandleFunc("GET /ws/community/{slug}", s.authMiddleware(s.serveChatWs))
	mux.HandleFunc("GET /ws/notifications", s.authMiddleware(s.serveNotificationsWs))

	sp.RegisterMetric(stats.HttpRequests)

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.countRequests(h)
	h = s.errorHandler(h)

	s.mux = &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	return s
}

func (s *CommChatApp) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *CommChatApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
