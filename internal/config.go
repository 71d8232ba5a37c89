package internal

import (
	"fmt"
	"time"
)

type Config struct {
	Host     string `env:"HOST,required=true"`
	Port     int    `env:"PORT,required=true"`
	LogLevel string `env:"LOG_LEVEL,required=true"`

	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`

	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,required=true"`
	PresenceBufferSize   int           `env:"PRESENCE_BUFFER_SIZE,required=true"`
	WriteTimeout         time.Duration `env:"WRITE_TIMEOUT,required=true"`
	PingInterval         time.Duration `env:"PING_INTERVAL,required=true"`
	PongTimeout          time.Duration `env:"PONG_TIMEOUT,required=true"`
	MaxFrameBytes        int64         `env:"MAX_FRAME_BYTES,required=true"`

	LookupTimeout   time.Duration `env:"LOOKUP_TIMEOUT,required=true"`
	RingTimeout     time.Duration `env:"RING_TIMEOUT"`
	MetricInterval  time.Duration `env:"METRIC_INTERVAL,required=true"`
	RestartInterval time.Duration `env:"RESTART_INTERVAL,required=true"`

	AuthSecret        string        `env:"AUTH_SECRET,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,required=true"`
	InternalKeyHash   string        `env:"INTERNAL_KEY_HASH,required=true"`

	CensoredFilepath string `env:"CENSORED_FILEPATH"`
	CharReplacement  string `env:"CHARACTER_REPLACEMENT"`
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
