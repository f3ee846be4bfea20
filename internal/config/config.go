// Package config provides Viper-based configuration loading for the battle
// server and client.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	// ReadyTimeout bounds the startup schema check.
	ReadyTimeout time.Duration `mapstructure:"ready_timeout"`
}

// DSN returns the PostgreSQL connection string.
//
// Precondition: Host, Port, User, and Name must be non-empty.
// Postcondition: Returns a valid PostgreSQL DSN string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// Storage drivers for species persistence.
const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

// StorageConfig selects where looked-up species are persisted.
type StorageConfig struct {
	// Driver is one of "memory", "sqlite", or "postgres".
	Driver string `mapstructure:"driver"`
}

// SQLiteConfig holds the SQLite species store settings.
type SQLiteConfig struct {
	// Path is the database file. ":memory:" keeps it in process.
	Path string `mapstructure:"path"`
}

// RedisConfig holds battle archive settings.
type RedisConfig struct {
	// Enabled stores battle records in Redis; otherwise they are kept in memory.
	Enabled bool `mapstructure:"enabled"`
	// Addr is the "host:port" Redis address.
	Addr string `mapstructure:"addr"`
	// TTL is how long a battle record is kept.
	TTL time.Duration `mapstructure:"ttl"`
}

// PokeAPIConfig holds the remote species source settings.
type PokeAPIConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	// MaxMoveFetches bounds how many move detail requests run at once.
	MaxMoveFetches int `mapstructure:"max_move_fetches"`
}

// DexConfig points at the bundled species YAML directory.
type DexConfig struct {
	Dir string `mapstructure:"dir"`
}

// Advisor kinds.
const (
	AdvisorNone      = "none"
	AdvisorAnthropic = "anthropic"
	AdvisorLua       = "lua"
)

// AdvisorConfig configures the external move advisor used by the advised strategy.
type AdvisorConfig struct {
	// Kind is one of "none", "anthropic", or "lua".
	Kind      string        `mapstructure:"kind"`
	Model     string        `mapstructure:"model"`
	APIKey    string        `mapstructure:"api_key"`
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	MaxTokens int64         `mapstructure:"max_tokens"`
	// Script is a Lua file or directory defining choose_move.
	Script string `mapstructure:"script"`
	// InstructionLimit bounds Lua opcodes per advice call; 0 uses the sandbox default.
	InstructionLimit int `mapstructure:"instruction_limit"`
}

// BattleConfig holds engine settings.
type BattleConfig struct {
	// HeuristicTurnCap is the safety turn limit for heuristic battles.
	HeuristicTurnCap int `mapstructure:"heuristic_turn_cap"`
}

// TransportConfig holds client transport settings.
type TransportConfig struct {
	ProtocolVersion string        `mapstructure:"protocol_version"`
	ServerCommand   string        `mapstructure:"server_command"`
	ServerArgs      []string      `mapstructure:"server_args"`
	MaxFrameBytes   int           `mapstructure:"max_frame_bytes"`
	CallTimeout     time.Duration `mapstructure:"call_timeout"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// TracingConfig holds OpenTelemetry settings. An empty Endpoint disables export.
type TracingConfig struct {
	Endpoint    string `mapstructure:"endpoint"`
	ServiceName string `mapstructure:"service_name"`
	Insecure    bool   `mapstructure:"insecure"`
}

// Config is the top-level application configuration.
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Database  DatabaseConfig  `mapstructure:"database"`
	SQLite    SQLiteConfig    `mapstructure:"sqlite"`
	Redis     RedisConfig     `mapstructure:"redis"`
	PokeAPI   PokeAPIConfig   `mapstructure:"pokeapi"`
	Dex       DexConfig       `mapstructure:"dex"`
	Advisor   AdvisorConfig   `mapstructure:"advisor"`
	Battle    BattleConfig    `mapstructure:"battle"`
	Transport TransportConfig `mapstructure:"transport"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateStorage(c); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateRedis(c.Redis); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validatePokeAPI(c.PokeAPI); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateAdvisor(c.Advisor); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Battle.HeuristicTurnCap < 1 {
		errs = append(errs, fmt.Sprintf("battle.heuristic_turn_cap must be >= 1, got %d", c.Battle.HeuristicTurnCap))
	}
	if err := validateTransport(c.Transport); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateStorage(c Config) error {
	switch c.Storage.Driver {
	case StorageMemory:
		return nil
	case StorageSQLite:
		if c.SQLite.Path == "" {
			return errors.New("sqlite.path must not be empty when storage.driver is sqlite")
		}
		return nil
	case StoragePostgres:
		return validateDatabase(c.Database)
	default:
		return fmt.Errorf("storage.driver must be one of [memory, sqlite, postgres], got %q", c.Storage.Driver)
	}
}

func validateDatabase(d DatabaseConfig) error {
	var errs []string
	if d.Host == "" {
		errs = append(errs, "database.host must not be empty")
	}
	if d.Port < 1 || d.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", d.Port))
	}
	if d.User == "" {
		errs = append(errs, "database.user must not be empty")
	}
	if d.Name == "" {
		errs = append(errs, "database.name must not be empty")
	}
	validSSL := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSL[d.SSLMode] {
		errs = append(errs, fmt.Sprintf("database.sslmode must be one of [disable, require, verify-ca, verify-full], got %q", d.SSLMode))
	}
	if d.MaxConns < 1 {
		errs = append(errs, fmt.Sprintf("database.max_conns must be >= 1, got %d", d.MaxConns))
	}
	if d.MinConns < 0 {
		errs = append(errs, fmt.Sprintf("database.min_conns must be >= 0, got %d", d.MinConns))
	}
	if d.MinConns > d.MaxConns {
		errs = append(errs, "database.min_conns must not exceed database.max_conns")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateRedis(r RedisConfig) error {
	if !r.Enabled {
		return nil
	}
	var errs []string
	if r.Addr == "" {
		errs = append(errs, "redis.addr must not be empty when redis is enabled")
	}
	if r.TTL <= 0 {
		errs = append(errs, "redis.ttl must be positive")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validatePokeAPI(p PokeAPIConfig) error {
	if !p.Enabled {
		return nil
	}
	var errs []string
	if p.BaseURL == "" {
		errs = append(errs, "pokeapi.base_url must not be empty when pokeapi is enabled")
	}
	if p.Timeout <= 0 {
		errs = append(errs, "pokeapi.timeout must be positive")
	}
	if p.MaxMoveFetches < 1 {
		errs = append(errs, fmt.Sprintf("pokeapi.max_move_fetches must be >= 1, got %d", p.MaxMoveFetches))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateAdvisor(a AdvisorConfig) error {
	var errs []string
	switch a.Kind {
	case AdvisorNone:
	case AdvisorAnthropic:
		if a.Model == "" {
			errs = append(errs, "advisor.model must not be empty for the anthropic advisor")
		}
		if a.MaxTokens < 1 {
			errs = append(errs, fmt.Sprintf("advisor.max_tokens must be >= 1, got %d", a.MaxTokens))
		}
	case AdvisorLua:
		if a.Script == "" {
			errs = append(errs, "advisor.script must not be empty for the lua advisor")
		}
		if a.InstructionLimit < 0 {
			errs = append(errs, "advisor.instruction_limit must not be negative")
		}
	default:
		errs = append(errs, fmt.Sprintf("advisor.kind must be one of [none, anthropic, lua], got %q", a.Kind))
	}
	if a.Timeout <= 0 {
		errs = append(errs, "advisor.timeout must be positive")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateTransport(t TransportConfig) error {
	var errs []string
	if t.ProtocolVersion == "" {
		errs = append(errs, "transport.protocol_version must not be empty")
	}
	if t.MaxFrameBytes < 1024 {
		errs = append(errs, fmt.Sprintf("transport.max_frame_bytes must be >= 1024, got %d", t.MaxFrameBytes))
	}
	if t.CallTimeout < 0 {
		errs = append(errs, "transport.call_timeout must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result. An empty path uses defaults and the
// environment only.
//
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := NewViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}
	return LoadFromViper(v)
}

// NewViper returns a Viper instance carrying the defaults and POKEDUEL_
// environment overrides.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("POKEDUEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("storage.driver", StorageMemory)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "pokeduel")
	v.SetDefault("database.password", "pokeduel")
	v.SetDefault("database.name", "pokeduel")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.ready_timeout", "5s")

	v.SetDefault("sqlite.path", "pokeduel.db")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.ttl", "24h")

	v.SetDefault("pokeapi.enabled", false)
	v.SetDefault("pokeapi.base_url", "https://pokeapi.co/api/v2")
	v.SetDefault("pokeapi.timeout", "10s")
	v.SetDefault("pokeapi.max_move_fetches", 8)

	v.SetDefault("dex.dir", "content/species")

	v.SetDefault("advisor.kind", AdvisorNone)
	v.SetDefault("advisor.model", "claude-3-5-haiku-latest")
	v.SetDefault("advisor.api_key", "")
	v.SetDefault("advisor.base_url", "")
	v.SetDefault("advisor.timeout", "15s")
	v.SetDefault("advisor.max_tokens", 512)
	v.SetDefault("advisor.script", "content/scripts/advisor.lua")
	v.SetDefault("advisor.instruction_limit", 0)

	v.SetDefault("battle.heuristic_turn_cap", 500)

	v.SetDefault("transport.protocol_version", "2024-11-05")
	v.SetDefault("transport.server_command", "battleserver")
	v.SetDefault("transport.server_args", []string{})
	v.SetDefault("transport.max_frame_bytes", 4<<20)
	v.SetDefault("transport.call_timeout", "2m")

	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.service_name", "pokeduel")
	v.SetDefault("tracing.insecure", true)
}
