package config

import (
	"fmt"
	"time"
)

const (
	StoreMemory = "memory"
	StoreMongo  = "mongo"

	// DefaultReapInterval is how often the idle reaper sweeps.
	DefaultReapInterval = 5 * time.Minute
	// DefaultIdleRoomThreshold is how long a room may sit without
	// activity before a sweep deletes it.
	DefaultIdleRoomThreshold = 10 * time.Minute
)

type Config struct {
	ServerAddr        string
	AllowedOrigins    []string
	StoreBackend      string
	MongoURI          string
	MongoDatabase     string
	ReapInterval      time.Duration
	IdleRoomThreshold time.Duration
}

func NewConfig(serverAddr string, allowedOrigins []string, backend, mongoURI, mongoDatabase string,
	reapInterval, idleRoomThreshold time.Duration) (*Config, error) {
	if serverAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}

	switch backend {
	case StoreMemory:
	case StoreMongo:
		if mongoURI == "" {
			return nil, fmt.Errorf("mongo URI cannot be empty with the %s backend", StoreMongo)
		}
		if mongoDatabase == "" {
			return nil, fmt.Errorf("mongo database cannot be empty with the %s backend", StoreMongo)
		}
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}

	if reapInterval <= 0 {
		reapInterval = DefaultReapInterval
	}
	if idleRoomThreshold <= 0 {
		idleRoomThreshold = DefaultIdleRoomThreshold
	}

	return &Config{
		ServerAddr:        serverAddr,
		AllowedOrigins:    allowedOrigins,
		StoreBackend:      backend,
		MongoURI:          mongoURI,
		MongoDatabase:     mongoDatabase,
		ReapInterval:      reapInterval,
		IdleRoomThreshold: idleRoomThreshold,
	}, nil
}
