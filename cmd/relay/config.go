package main

import "time"

type Config struct {
	BadgerFilepath         string        `env:"BADGER_FILEPATH,required=true"`
	LogLevel               string        `env:"LOG_LEVEL,required=true"`
	AuthSecret             string        `env:"AUTH_SECRET,required=true"`
	AuthTokenDuration      time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`
	SubscriptionBufferSize int           `env:"SUBSCRIPTION_BUFFER_SIZE,default=256"`
	ReplayPageSize         int           `env:"REPLAY_PAGE_SIZE,default=128"`
	MaxTextLength          int           `env:"MAX_TEXT_LENGTH,default=1000"`
	MaxAttachmentSize      int64         `env:"MAX_ATTACHMENT_SIZE,default=10485760"`
	AttachmentPrefix       string        `env:"ATTACHMENT_PREFIX,default=chat_photos"`
	HeartbeatInterval      time.Duration `env:"HEARTBEAT_INTERVAL,default=30s"`
	ShutdownTimeout        time.Duration `env:"SHUTDOWN_TIMEOUT,default=5s"`
	Host                   string        `env:"HOST,default=localhost"`
	Port                   int           `env:"PORT,default=8080"`
	DebugPort              int           `env:"DEBUG_PORT,default=9090"`
}
