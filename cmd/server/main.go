package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"popchat/internal/api"
	"popchat/internal/config"
	"popchat/internal/server"
	"popchat/internal/stats"
	"popchat/internal/store"
)

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

var (
	addr           string
	backend        string
	mongoURI       string
	mongoDatabase  string
	reapInterval   time.Duration
	idleThreshold  time.Duration
	allowedOrigins stringSliceFlag
)

func main() {
	flag.StringVar(&addr, "addr", "localhost:8000", "server address")
	flag.StringVar(&backend, "store", config.StoreMemory, "store backend (memory or mongo)")
	flag.StringVar(&mongoURI, "mongo-uri", "mongodb://localhost:27017", "MongoDB connection URI")
	flag.StringVar(&mongoDatabase, "mongo-db", "popchat", "MongoDB database name")
	flag.DurationVar(&reapInterval, "reap-interval", config.DefaultReapInterval, "how often the idle reaper sweeps")
	flag.DurationVar(&idleThreshold, "idle-threshold", config.DefaultIdleRoomThreshold, "inactivity threshold after which a room is deleted")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.Parse()

	logger := log.New(os.Stderr, "[popchat] ", log.LstdFlags)

	cfg, err := config.NewConfig(addr, allowedOrigins, backend, mongoURI, mongoDatabase, reapInterval, idleThreshold)
	if err != nil {
		logger.Fatal("config:", err)
	}

	var repo store.Repository
	switch cfg.StoreBackend {
	case config.StoreMongo:
		connectCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		mongoRepo, err := store.NewMongoRepository(connectCtx, cfg.MongoURI, cfg.MongoDatabase)
		cancel()
		if err != nil {
			logger.Fatal("mongo:", err)
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := mongoRepo.Close(closeCtx); err != nil {
				logger.Println("mongo close:", err)
			}
		}()
		repo = mongoRepo
	default:
		repo = store.NewMemoryRepository()
	}

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)

	chatServer, err := server.NewChatServer(logger, repo, statsUpdater)
	if err != nil {
		logger.Fatal("new chat server:", err)
	}

	srv := api.NewPopChatApp(mux, logger, chatServer, repo, statsUpdater, cfg)

	statsUpdater.Run()
	defer statsUpdater.Stop()

	go chatServer.Run()

	reaper := server.NewReaper(chatServer, logger, cfg.ReapInterval, cfg.IdleRoomThreshold)
	go reaper.Run()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		logger.Println("server:", err)
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("HTTP server shutdown:", err)
	}

	reaper.Stop()

	logger.Println("shutting down chat server...")
	if err := chatServer.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("chat server shutdown:", err)
	}

	logger.Println("shutdown complete")
}
