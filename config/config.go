package config

import (
	"encoding/json"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// StorageConfig holds the Postgres connection for finished-match results.
type StorageConfig struct {
	// DatabaseURL is a pgx connection string. Empty disables persistence.
	DatabaseURL string `json:"database_url"`
}

// EventsConfig holds the NATS connection for match lifecycle events.
type EventsConfig struct {
	// NATSURL is the server URL (e.g. nats://localhost:4222). Empty disables publishing.
	NATSURL         string `json:"nats_url"`
	SubjectPrefix   string `json:"subject_prefix"`
	MaxReconnects   int    `json:"max_reconnects"`
	ReconnectWaitMS int    `json:"reconnect_wait_ms"`
}

// BotParams configures one computer opponent profile.
type BotParams struct {
	Name       string `json:"name"`
	DelayMinMS int    `json:"delay_min_ms"`
	DelayMaxMS int    `json:"delay_max_ms"`
	// TakeDiscardChance is the percent chance of taking a discard that completes a meld.
	TakeDiscardChance int `json:"take_discard_chance"`
}

// Config holds all configurable server parameters. The ruleset itself is fixed.
type Config struct {
	Port          int `json:"port"`
	MaxNameLength int `json:"max_name_length"`

	// EventLogSize caps the per-match event log sent in every snapshot.
	EventLogSize int `json:"event_log_size"`
	// ActionQueueSize is the buffer of each match's action channel.
	ActionQueueSize int `json:"action_queue_size"`
	// MoveTimeoutMS bounds how long a request waits for its match loop to answer.
	MoveTimeoutMS int `json:"move_timeout_ms"`

	// GameRetentionSec is how long a finished match stays queryable before eviction.
	GameRetentionSec int `json:"game_retention_sec"`
	// IdleEvictSec is how long a match in progress may go without an applied move. 0 disables.
	IdleEvictSec     int `json:"idle_evict_sec"`
	EvictIntervalSec int `json:"evict_interval_sec"`

	// AllowedOrigins restricts browser origins for CORS and WebSocket upgrades. Empty allows all.
	AllowedOrigins []string `json:"allowed_origins"`
	LogLevel       string   `json:"log_level"`

	Storage StorageConfig `json:"storage"`
	Events  EventsConfig  `json:"events"`

	// Bots are the computer opponents that can be added to the waiting room.
	Bots []BotParams `json:"bots"`
}

// Defaults returns a Config with all default values.
func Defaults() *Config {
	return &Config{
		Port:             5000,
		MaxNameLength:    24,
		EventLogSize:     50,
		ActionQueueSize:  16,
		MoveTimeoutMS:    2000,
		GameRetentionSec: 600,
		IdleEvictSec:     1800,
		EvictIntervalSec: 60,
		LogLevel:         "info",
		Events: EventsConfig{
			SubjectPrefix:   "rummy",
			MaxReconnects:   10,
			ReconnectWaitMS: 2000,
		},
		Bots: []BotParams{
			{Name: "Gin Bot", DelayMinMS: 600, DelayMaxMS: 1400, TakeDiscardChance: 90},
			{Name: "Quick Bot", DelayMinMS: 100, DelayMaxMS: 300, TakeDiscardChance: 60},
		},
	}
}

// Load reads configuration from an optional config.json file,
// then applies environment variable overrides. Fields not set
// in either source retain their default values.
func Load() *Config {
	cfg := Defaults()

	if f, err := os.Open("config.json"); err == nil {
		defer f.Close()
		if err := json.NewDecoder(f).Decode(cfg); err != nil {
			slog.Warn("failed to parse config.json", "tag", "config", "err", err)
		}
	}

	overrideInt(&cfg.Port, "PORT")
	overrideInt(&cfg.MaxNameLength, "MAX_NAME_LENGTH")
	overrideInt(&cfg.EventLogSize, "EVENT_LOG_SIZE")
	overrideInt(&cfg.ActionQueueSize, "ACTION_QUEUE_SIZE")
	overrideInt(&cfg.MoveTimeoutMS, "MOVE_TIMEOUT_MS")
	overrideInt(&cfg.GameRetentionSec, "GAME_RETENTION_SEC")
	overrideInt(&cfg.IdleEvictSec, "IDLE_EVICT_SEC")
	overrideInt(&cfg.EvictIntervalSec, "EVICT_INTERVAL_SEC")
	overrideList(&cfg.AllowedOrigins, "ALLOWED_ORIGINS")
	overrideString(&cfg.LogLevel, "LOG_LEVEL")
	overrideString(&cfg.Storage.DatabaseURL, "DATABASE_URL")
	overrideString(&cfg.Events.NATSURL, "NATS_URL")
	overrideString(&cfg.Events.SubjectPrefix, "NATS_SUBJECT_PREFIX")

	return cfg
}

// Bot returns the bot profile with the given name, ignoring case. An empty name picks the first profile.
func (c *Config) Bot(name string) (BotParams, bool) {
	name = strings.TrimSpace(name)
	for _, b := range c.Bots {
		if name == "" || strings.EqualFold(b.Name, name) {
			return b, true
		}
	}
	return BotParams{}, false
}

// SlogLevel maps LogLevel to a slog.Level, defaulting to Info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// OriginAllowed reports whether a browser origin may call the API or open a WebSocket.
// An empty allowlist or a missing Origin header allows the request; "*" matches any origin.
func (c *Config) OriginAllowed(origin string) bool {
	if origin == "" || len(c.AllowedOrigins) == 0 {
		return true
	}
	for _, o := range c.AllowedOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

func overrideInt(field *int, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			*field = n
		} else {
			slog.Warn("invalid integer in environment", "tag", "config", "key", envKey, "value", val)
		}
	}
}

func overrideString(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

// overrideList splits a comma-separated variable, dropping blanks.
func overrideList(field *[]string, envKey string) {
	val := os.Getenv(envKey)
	if val == "" {
		return
	}
	var out []string
	for _, s := range strings.Split(val, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	*field = out
}
