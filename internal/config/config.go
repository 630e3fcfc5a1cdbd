package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type RateLimit struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

// Client configures the peercall CLI.
type Client struct {
	ServerURL      string        `mapstructure:"server_url"`
	Token          string        `mapstructure:"token"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	STUNServers    []string      `mapstructure:"stun_servers"`
	MDNS           bool          `mapstructure:"mdns"`
}

type Config struct {
	Mode          string        `mapstructure:"mode"`
	Port          int           `mapstructure:"port"`
	Secret        string        `mapstructure:"secret"`
	CallTTL       time.Duration `mapstructure:"call_ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	PingPeriod    time.Duration `mapstructure:"ping_period"`
	ReadLimit     int64         `mapstructure:"read_limit"`
	RateLimit     RateLimit     `mapstructure:"rate_limit"`
	Client        Client        `mapstructure:"client"`
}

const EnvPrefix = "PEERCALL"

var ErrNoSecret = errors.New("secret is required in release mode")

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("secret", "")
	v.SetDefault("call_ttl", "2m")
	v.SetDefault("sweep_interval", "15s")
	v.SetDefault("ping_period", "54s")
	v.SetDefault("read_limit", 4096)
	v.SetDefault("rate_limit.rps", 20)
	v.SetDefault("rate_limit.burst", 40)

	v.SetDefault("client.server_url", "http://localhost:8080")
	v.SetDefault("client.token", "")
	v.SetDefault("client.poll_interval", "1s")
	v.SetDefault("client.connect_timeout", "30s")
	v.SetDefault("client.request_timeout", "10s")
	v.SetDefault("client.stun_servers", []string{
		"stun:stun.l.google.com:19302",
		"stun:stun1.l.google.com:19302",
		"stun:stun2.l.google.com:19302",
	})
	v.SetDefault("client.mdns", false)
}

// Load reads config/config.<CONFIG_ENV>.yaml (dev by default) on top of
// defaults. PEERCALL_* environment variables override both, e.g.
// PEERCALL_CLIENT_TOKEN.
func Load() (*Config, error) {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFile(fmt.Sprintf("config/config.%s.yaml", env))
}

// LoadFile is Load with an explicit file. A missing file is not an error.
func LoadFile(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Dur("call_ttl", cfg.CallTTL).Msg("config ready")
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Mode == "release" && c.Secret == "" {
		return ErrNoSecret
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.CallTTL <= 0 {
		return fmt.Errorf("call_ttl must be positive, got %s", c.CallTTL)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("sweep_interval must be positive, got %s", c.SweepInterval)
	}
	return nil
}
