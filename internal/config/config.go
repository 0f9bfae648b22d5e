package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	Secret     string        `mapstructure:"secret"`

	// Caption dedup window on the client side; exposed here so client
	// and server builds read one config shape.
	DedupWindow time.Duration `mapstructure:"dedup_window"`

	// Peer link negotiation is abandoned after this much time without
	// an established connection.
	NegotiationTimeout time.Duration `mapstructure:"negotiation_timeout"`

	// Transcript flood control, events per window per peer.
	TranscriptLimit  int           `mapstructure:"transcript_limit"`
	TranscriptWindow time.Duration `mapstructure:"transcript_window"`

	// Optional transcript persistence observer; empty disables it.
	RedisAddr     string        `mapstructure:"redis_addr"`
	TranscriptTTL time.Duration `mapstructure:"transcript_ttl"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("dedup_window", "5s")
	v.SetDefault("negotiation_timeout", "30s")
	v.SetDefault("transcript_limit", 10)
	v.SetDefault("transcript_window", "10s")
	v.SetDefault("redis_addr", "")
	v.SetDefault("transcript_ttl", "24h")

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
