package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig(t *testing.T) {
	tcases := []struct {
		name          string
		serverAddr    string
		backend       string
		mongoURI      string
		mongoDatabase string
		expectErr     bool
	}{
		{
			name:       "valid memory config",
			serverAddr: "localhost:8000",
			backend:    StoreMemory,
		},
		{
			name:          "valid mongo config",
			serverAddr:    "localhost:8000",
			backend:       StoreMongo,
			mongoURI:      "mongodb://localhost:27017",
			mongoDatabase: "popchat",
		},
		{
			name:      "empty server address",
			backend:   StoreMemory,
			expectErr: true,
		},
		{
			name:       "unknown backend",
			serverAddr: "localhost:8000",
			backend:    "postgres",
			expectErr:  true,
		},
		{
			name:          "mongo backend without URI",
			serverAddr:    "localhost:8000",
			backend:       StoreMongo,
			mongoDatabase: "popchat",
			expectErr:     true,
		},
		{
			name:       "mongo backend without database",
			serverAddr: "localhost:8000",
			backend:    StoreMongo,
			mongoURI:   "mongodb://localhost:27017",
			expectErr:  true,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := NewConfig(tc.serverAddr, nil, tc.backend, tc.mongoURI, tc.mongoDatabase,
				time.Minute, time.Hour)
			if tc.expectErr {
				assert.Error(t, err, "expected config validation to fail")
				return
			}

			require.NoError(t, err, "expected config validation to pass")
			assert.Equal(t, tc.serverAddr, cfg.ServerAddr)
			assert.Equal(t, tc.backend, cfg.StoreBackend)
			assert.Equal(t, time.Minute, cfg.ReapInterval)
			assert.Equal(t, time.Hour, cfg.IdleRoomThreshold)
		})
	}
}

func TestNewConfig_DefaultsDurations(t *testing.T) {
	cfg, err := NewConfig("localhost:8000", nil, StoreMemory, "", "", 0, -time.Minute)
	require.NoError(t, err)
	assert.Equal(t, DefaultReapInterval, cfg.ReapInterval, "expected non-positive interval to default")
	assert.Equal(t, DefaultIdleRoomThreshold, cfg.IdleRoomThreshold, "expected non-positive threshold to default")
}
