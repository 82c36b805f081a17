package internal

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Host                 string        `env:"HOST,default=0.0.0.0"`
	Port                 int           `env:"PORT,default=8080"`
	HealthPort           int           `env:"HEALTH_PORT,default=8090"`
	DebugPort            int           `env:"DEBUG_PORT,default=8081"`
	BadgerFilepath       string        `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath        string        `env:"BLUGE_FILEPATH,required=true"`
	LogLevel             string        `env:"LOG_LEVEL,default=INFO"`
	JWTSecret            string        `env:"JWT_SECRET,required=true"`
	AuthTokenDuration    time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`
	AllowedOrigins       string        `env:"ALLOWED_ORIGINS,default=*"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=256"`
	IndexBufferSize      int           `env:"INDEX_BUFFER_SIZE,default=1024"`
	MaxContentLength     int           `env:"MAX_CONTENT_LENGTH,default=5000"`
	DefaultPageSize      int           `env:"DEFAULT_PAGE_SIZE,default=50"`
	MaxPageSize          int           `env:"MAX_PAGE_SIZE,default=200"`
	MaxFrameSize         int64         `env:"MAX_FRAME_SIZE,default=65536"`
	CharReplacement      string        `env:"CHARACTER_REPLACEMENT,default=*"`
	CensoredDir          string        `env:"CENSORED_DIR,default=censored"`
	WriteTimeout         time.Duration `env:"WRITE_TIMEOUT,default=10s"`
	PingInterval         time.Duration `env:"PING_INTERVAL,default=30s"`
	TelemetryInterval    time.Duration `env:"TELEMETRY_INTERVAL,default=1m"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,default=1s"`
	ShutdownTimeout      time.Duration `env:"SHUTDOWN_TIMEOUT,default=15s"`
}

func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Origins splits ALLOWED_ORIGINS on commas.
func (c Config) Origins() []string {
	var origins []string
	for _, origin := range strings.Split(c.AllowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
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
