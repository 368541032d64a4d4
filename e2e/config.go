package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// CHATROOM_WS_URL is the websocket endpoint of a running server, e.g. ws://localhost:8080/ws
	WebsocketURL string `envconfig:"CHATROOM_WS_URL"`
	GrpcAddr     string `envconfig:"CHATROOM_GRPC_ADDR"`
	// E2E_DEBUG_JSON allows dumping full gRPC request/response bodies as JSON
	DebugJSON bool `envconfig:"E2E_DEBUG_JSON" default:"false"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
