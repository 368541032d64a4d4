package internal

import (
	"testing"
	"time"

	"github.com/Netflix/go-env"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Host:            "localhost",
		Port:            8080,
		GrpcPort:        9090,
		LogLevel:        "INFO",
		RoomName:        "Chatroom",
		StoreBackend:    "memory",
		MaxNameLength:   32,
		SendTimeout:     time.Second,
		StoreTimeout:    time.Second,
		StatsInterval:   time.Minute,
		RestartInterval: time.Second,
	}
}

func TestConfig_Defaults(t *testing.T) {
	req := require.New(t)

	var config Config
	err := env.Unmarshal(env.EnvSet{"LOG_LEVEL": "DEBUG"}, &config)

	req.NoError(err)
	req.NoError(config.Validate())
	req.Equal("localhost:8080", config.Address())
	req.Equal("localhost:9090", config.GrpcAddress())
	req.Equal("Chatroom", config.RoomName)
	req.Equal("memory", config.StoreBackend)
	req.Equal(5*time.Second, config.SendTimeout)
}

func TestConfig_LogLevelRequired(t *testing.T) {
	var config Config
	err := env.Unmarshal(env.EnvSet{}, &config)
	require.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid memory", func(*Config) {}, false},
		{"unknown backend", func(c *Config) { c.StoreBackend = "redis" }, true},
		{"badger without path", func(c *Config) { c.StoreBackend = "badger" }, true},
		{"badger with path", func(c *Config) { c.StoreBackend = "badger"; c.BadgerFilepath = "/tmp/room" }, false},
		{"sqlite without path", func(c *Config) { c.StoreBackend = "sqlite" }, true},
		{"mongo without uri", func(c *Config) { c.StoreBackend = "mongo" }, true},
		{"mongo with uri", func(c *Config) { c.StoreBackend = "mongo"; c.MongoURI = "mongodb://localhost:27017" }, false},
		{"same ports", func(c *Config) { c.GrpcPort = c.Port }, true},
		{"zero name length", func(c *Config) { c.MaxNameLength = 0 }, true},
		{"zero stats interval", func(c *Config) { c.StatsInterval = 0 }, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			config := validConfig()
			tc.mutate(&config)
			err := config.Validate()
			if tc.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
