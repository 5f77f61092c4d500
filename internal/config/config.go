package config

import (
	"flag"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env        string           `yaml:"env" env:"APP_ENV" env-default:"local"`
	HTTP       HTTPConfig       `yaml:"http"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Session    SessionConfig    `yaml:"session"`
	Lifecycle  LifecycleConfig  `yaml:"lifecycle"`
	Moderation ModerationConfig `yaml:"moderation"`
	RateLimits RateLimitsConfig `yaml:"rate_limits"`
}

type HTTPConfig struct {
	Address string `yaml:"address" env:"HTTP_ADDRESS" env-default:":8080"`
}

type DatabaseConfig struct {
	DSN string `yaml:"dsn" env:"DATABASE_DSN"`
}

// RedisConfig selects the shared rate-limit counter store. An empty address
// falls back to per-process counters.
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

type SessionConfig struct {
	TTL time.Duration `yaml:"ttl" env:"SESSION_TTL" env-default:"168h"`
	// TokenKey keys the one-way derivation of session tokens. The raw token
	// is never stored or logged.
	TokenKey string `yaml:"token_key" env:"SESSION_TOKEN_KEY" env-default:"dev-token-key-change-me"`
	// CookieSecure toggles the Secure attribute on the session cookie.
	CookieSecure bool `yaml:"cookie_secure" env:"SESSION_COOKIE_SECURE" env-default:"false"`
}

type LifecycleConfig struct {
	RoomTTL       time.Duration `yaml:"room_ttl" env:"ROOM_TTL" env-default:"24h"`
	WarningWindow time.Duration `yaml:"warning_window" env:"ROOM_WARNING_WINDOW" env-default:"1h"`
	SweepInterval time.Duration `yaml:"sweep_interval" env:"SWEEP_INTERVAL" env-default:"1h"`
}

type ModerationConfig struct {
	NGWords           []string      `yaml:"ng_words" env:"NG_WORDS"`
	MaxRoomNameLength int           `yaml:"max_room_name_length" env-default:"100"`
	MaxMessageLength  int           `yaml:"max_message_length" env-default:"1000"`
	MaxNicknameLength int           `yaml:"max_nickname_length" env-default:"32"`
	RoomCooldown      time.Duration `yaml:"room_cooldown" env-default:"30s"`
	BurstLimit        int           `yaml:"burst_limit" env-default:"30"`
	BurstWindow       time.Duration `yaml:"burst_window" env-default:"60s"`
}

type RateLimitsConfig struct {
	MessageCreation WindowLimit `yaml:"message_creation"`
	RoomCreation    WindowLimit `yaml:"room_creation"`
	NicknameUpdate  WindowLimit `yaml:"nickname_update"`
}

type WindowLimit struct {
	Limit  int           `yaml:"limit"`
	Window time.Duration `yaml:"window"`
}

func MustLoad() *Config {
	configPath := fetchConfigPath()

	if configPath == "" || fileMissing(configPath) {
		// no config file is fine, env vars and defaults carry everything
		var cfg Config
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			panic("cannot read config from env: " + err.Error())
		}
		cfg.setDefaults()
		return &cfg
	}

	return MustLoadPath(configPath)
}

func MustLoadPath(configPath string) *Config {
	if fileMissing(configPath) {
		panic("config file does not exist: " + configPath)
	}

	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		panic("cannot read config: " + err.Error())
	}

	cfg.setDefaults()

	return &cfg
}

func fetchConfigPath() string {
	var res string

	flag.StringVar(&res, "config", "", "path to config file")
	flag.Parse()

	if res == "" {
		res = os.Getenv("CONFIG_PATH")
	}

	if res == "" {
		res = "config/local.yaml"
	}

	return res
}

func fileMissing(path string) bool {
	_, err := os.Stat(path)
	return os.IsNotExist(err)
}

func (c *Config) setDefaults() {
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	if c.RateLimits.MessageCreation.Limit == 0 {
		c.RateLimits.MessageCreation = WindowLimit{Limit: 30, Window: time.Minute}
	}
	if c.RateLimits.RoomCreation.Limit == 0 {
		c.RateLimits.RoomCreation = WindowLimit{Limit: 5, Window: 5 * time.Minute}
	}
	if c.RateLimits.NicknameUpdate.Limit == 0 {
		c.RateLimits.NicknameUpdate = WindowLimit{Limit: 10, Window: time.Minute}
	}
}
