package internal

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

type Config struct {
	Host            string        `env:"HOST,default=localhost" validate:"required"`
	Port            int           `env:"PORT,default=8080" validate:"min=1,max=65535"`
	GrpcPort        int           `env:"GRPC_PORT,default=9090" validate:"min=1,max=65535,nefield=Port"`
	LogLevel        string        `env:"LOG_LEVEL,required=true" validate:"required"`
	RoomName        string        `env:"ROOM_NAME,default=Chatroom" validate:"required"`
	StoreBackend    string        `env:"STORE_BACKEND,default=memory" validate:"oneof=memory badger sqlite mongo"`
	BadgerFilepath  string        `env:"BADGER_FILEPATH" validate:"required_if=StoreBackend badger"`
	SQLiteFilepath  string        `env:"SQLITE_FILEPATH" validate:"required_if=StoreBackend sqlite"`
	MongoURI        string        `env:"MONGO_URI" validate:"required_if=StoreBackend mongo"`
	MongoDatabase   string        `env:"MONGO_DATABASE,default=chatroom"`
	MaxNameLength   int           `env:"MAX_NAME_LENGTH,default=32" validate:"min=1"`
	SendTimeout     time.Duration `env:"SEND_TIMEOUT,default=5s" validate:"min=0"`
	StoreTimeout    time.Duration `env:"STORE_TIMEOUT,default=5s" validate:"min=0"`
	StatsInterval   time.Duration `env:"STATS_INTERVAL,default=30s" validate:"gt=0"`
	RestartInterval time.Duration `env:"RESTART_INTERVAL,default=1s" validate:"gt=0"`
}

func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c Config) GrpcAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.GrpcPort)
}
