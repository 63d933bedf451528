package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DiscordToken    string       `yaml:"discord_token"`
	GuildID         string       `yaml:"guild_id"`
	OwnerID         string       `yaml:"owner_id"`
	DatabasePath    string       `yaml:"database_path"`
	LogLevel        string       `yaml:"log_level"`
	Timezone        string       `yaml:"timezone"`
	Health          HealthConfig `yaml:"health"`
	Channels        Channels     `yaml:"channels"`
	Voice           VoiceConfig  `yaml:"voice"`
	Spam            SpamConfig   `yaml:"spam"`
	Strikes         StrikeConfig `yaml:"strikes"`
	Raid            RaidConfig   `yaml:"raid"`
	Nuke            NukeConfig   `yaml:"nuke"`
	Todo            TodoConfig   `yaml:"todo"`
	Redis           RedisConfig  `yaml:"redis"`
	WhitelistedBots []string     `yaml:"whitelisted_bots"`
}

type HealthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type Channels struct {
	Alert       string `yaml:"alert"`
	Leaderboard string `yaml:"leaderboard"`
	Todo        string `yaml:"todo"`
}

type VoiceConfig struct {
	StrictChannels         []string `yaml:"strict_channels"`
	ExcludedChannel        string   `yaml:"excluded_channel"`
	FlushSeconds           int      `yaml:"flush_seconds"`
	WarnDelaySeconds       int      `yaml:"warn_delay_seconds"`
	DisconnectDelaySeconds int      `yaml:"disconnect_delay_seconds"`
	HopThreshold           int      `yaml:"hop_threshold"`
	HopWindowSeconds       int      `yaml:"hop_window_seconds"`
	HopTimeoutMinutes      int      `yaml:"hop_timeout_minutes"`
}

type SpamConfig struct {
	Messages      int `yaml:"messages"`
	WindowSeconds int `yaml:"window_seconds"`
	MaxMentions   int `yaml:"max_mentions"`
}

type StrikeConfig struct {
	WindowSeconds  int `yaml:"window_seconds"`
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

type RaidConfig struct {
	Joins         int `yaml:"joins"`
	WindowSeconds int `yaml:"window_seconds"`
}

type NukeConfig struct {
	SuppressSeconds int      `yaml:"suppress_seconds"`
	CacheSize       int      `yaml:"cache_size"`
	PollSeconds     int      `yaml:"poll_seconds"`
	TrustedUsers    []string `yaml:"trusted_users"`
	TrustedWebhooks []string `yaml:"trusted_webhooks"`
}

type TodoConfig struct {
	RoleID             string `yaml:"role_id"`
	PingAfterHours     int    `yaml:"ping_after_hours"`
	RoleStripAfterDays int    `yaml:"role_strip_after_days"`
	SweepMinutes       int    `yaml:"sweep_minutes"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

func DefaultConfig() Config {
	return Config{
		DatabasePath: "/data/studyguard.db",
		LogLevel:     "info",
		Timezone:     "Asia/Kolkata",
		Health:       HealthConfig{Enabled: false, Addr: ":8080"},
		Voice: VoiceConfig{
			FlushSeconds:           120,
			WarnDelaySeconds:       30,
			DisconnectDelaySeconds: 180,
			HopThreshold:           5,
			HopWindowSeconds:       30,
			HopTimeoutMinutes:      5,
		},
		Spam: SpamConfig{
			Messages:      4,
			WindowSeconds: 5,
			MaxMentions:   5,
		},
		Strikes: StrikeConfig{
			WindowSeconds:  300,
			TimeoutSeconds: 60,
		},
		Raid: RaidConfig{
			Joins:         5,
			WindowSeconds: 60,
		},
		Nuke: NukeConfig{
			SuppressSeconds: 60,
			CacheSize:       1000,
			PollSeconds:     60,
		},
		Todo: TodoConfig{
			PingAfterHours:     24,
			RoleStripAfterDays: 5,
			SweepMinutes:       60,
		},
		Redis: RedisConfig{Enabled: false, Addr: "localhost:6379"},
	}
}

func Load() (Config, error) {
	cfg := DefaultConfig()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)
	if cfg.DiscordToken == "" {
		return Config{}, errors.New("DISCORD_TOKEN is required")
	}
	if cfg.GuildID == "" {
		return Config{}, errors.New("GUILD_ID is required")
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.DiscordToken = envString("DISCORD_TOKEN", cfg.DiscordToken)
	cfg.GuildID = envString("GUILD_ID", cfg.GuildID)
	cfg.OwnerID = envString("OWNER_ID", cfg.OwnerID)
	cfg.DatabasePath = envString("DATABASE_PATH", cfg.DatabasePath)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.Timezone = envString("TIMEZONE", cfg.Timezone)
	cfg.Health.Enabled = envBool("HEALTH_ENABLED", cfg.Health.Enabled)
	cfg.Health.Addr = envString("HEALTH_ADDR", cfg.Health.Addr)
	cfg.Channels.Alert = envString("ALERT_CHANNEL_ID", cfg.Channels.Alert)
	cfg.Channels.Leaderboard = envString("LEADERBOARD_CHANNEL_ID", cfg.Channels.Leaderboard)
	cfg.Channels.Todo = envString("TODO_CHANNEL_ID", cfg.Channels.Todo)
	cfg.Voice.ExcludedChannel = envString("EXCLUDED_CHANNEL_ID", cfg.Voice.ExcludedChannel)
	cfg.Voice.FlushSeconds = envInt("VOICE_FLUSH_SECONDS", cfg.Voice.FlushSeconds)
	cfg.Voice.WarnDelaySeconds = envInt("CAM_WARN_DELAY_SECONDS", cfg.Voice.WarnDelaySeconds)
	cfg.Voice.DisconnectDelaySeconds = envInt("CAM_DISCONNECT_DELAY_SECONDS", cfg.Voice.DisconnectDelaySeconds)
	cfg.Spam.Messages = envInt("SPAM_MESSAGES", cfg.Spam.Messages)
	cfg.Spam.WindowSeconds = envInt("SPAM_WINDOW_SECONDS", cfg.Spam.WindowSeconds)
	cfg.Spam.MaxMentions = envInt("SPAM_MAX_MENTIONS", cfg.Spam.MaxMentions)
	cfg.Strikes.WindowSeconds = envInt("STRIKE_WINDOW_SECONDS", cfg.Strikes.WindowSeconds)
	cfg.Strikes.TimeoutSeconds = envInt("STRIKE_TIMEOUT_SECONDS", cfg.Strikes.TimeoutSeconds)
	cfg.Raid.Joins = envInt("RAID_JOINS", cfg.Raid.Joins)
	cfg.Raid.WindowSeconds = envInt("RAID_WINDOW_SECONDS", cfg.Raid.WindowSeconds)
	cfg.Nuke.PollSeconds = envInt("NUKE_POLL_SECONDS", cfg.Nuke.PollSeconds)
	cfg.Todo.RoleID = envString("TODO_ROLE_ID", cfg.Todo.RoleID)
	cfg.Redis.Enabled = envBool("REDIS_ENABLED", cfg.Redis.Enabled)
	cfg.Redis.Addr = envString("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = envString("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = envInt("REDIS_DB", cfg.Redis.DB)
}

func BuildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	lvl := strings.ToLower(level)
	switch lvl {
	case "debug", "info", "warn", "error":
		cfg.Level = zap.NewAtomicLevelAt(parseLevel(lvl))
	default:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	return cfg.Build()
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "1" || lower == "true" || lower == "yes"
	}
	return fallback
}
