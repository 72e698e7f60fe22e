package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/teris-io/shortid"

	"popchat/internal/config"
	"popchat/internal/server"
	"popchat/internal/stats"
	"popchat/internal/store"
)

type PopChatApp struct {
	log            *log.Logger
	repo           store.Repository
	mux            *http.Server
	cs             *server.ChatServer
	stats          stats.StatsProvider
	allowedOrigins []string
	// generateRoomId is a field so tests can pin the generated code
	generateRoomId func() (string, error)
}

func NewPopChatApp(mux *http.ServeMux, logger *log.Logger, cs *server.ChatServer, repo store.Repository, su stats.StatsProvider, cfg *config.Config) *PopChatApp {
	s := &PopChatApp{
		log:            logger,
		repo:           repo,
		cs:             cs,
		stats:          su,
		allowedOrigins: cfg.AllowedOrigins,
		generateRoomId: shortid.Generate,
	}

	su.RegisterMetric("NumRoomsCreated")

	mux.HandleFunc("POST /rooms", s.createRoom)
	mux.HandleFunc("GET /rooms/{roomId}", s.getRoom)
	mux.HandleFunc("DELETE /rooms/{roomId}", s.deleteRoom)
	mux.HandleFunc("GET /ws", s.serveWs)

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept"}),
	)(mux)

	h = s.errorHandler(h)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	s.mux = srv
	return s
}

func (s *PopChatApp) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *PopChatApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
