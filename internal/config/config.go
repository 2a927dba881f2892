// Package config provides Viper-based configuration loading for the scripting
// service and its operator tools.
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

// RedisConfig holds the character document store settings.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	// KeyPrefix namespaces every key written by the store.
	KeyPrefix string `mapstructure:"key_prefix"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// ScriptingConfig holds the resource ceilings applied to every invocation.
type ScriptingConfig struct {
	// Timeout bounds the wall-clock time of one top-level expansion.
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxStatements     int           `mapstructure:"max_statements"`
	MaxLoops          int           `mapstructure:"max_loops"`
	MaxIterLength     int           `mapstructure:"max_iter_length"`
	MaxConstLen       int           `mapstructure:"max_const_len"`
	MaxRecursionDepth int           `mapstructure:"max_recursion_depth"`
	// MaxRolls bounds the dice in one roll call.
	MaxRolls int `mapstructure:"max_rolls"`
	// MaxTotalRolls bounds the dice rolled over one whole invocation.
	MaxTotalRolls int `mapstructure:"max_total_rolls"`
	MaxCvarLength int `mapstructure:"max_cvar_length"`
	MaxUvarLength int `mapstructure:"max_uvar_length"`
	MaxSvarLength int `mapstructure:"max_svar_length"`
	MaxGvarLength int `mapstructure:"max_gvar_length"`
	MaxBodyLength int `mapstructure:"max_body_length"`
}

// SigningConfig holds the signed-capability key.
type SigningConfig struct {
	Secret string `mapstructure:"secret"`
}

// Config is the top-level application configuration.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Scripting ScriptingConfig `mapstructure:"scripting"`
	Signing   SigningConfig   `mapstructure:"signing"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateDatabase(c.Database); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateRedis(c.Redis); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateScripting(c.Scripting); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateSigning(c.Signing); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
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
	var errs []string
	if r.Addr == "" {
		errs = append(errs, "redis.addr must not be empty")
	}
	if r.DB < 0 || r.DB > 15 {
		errs = append(errs, fmt.Sprintf("redis.db must be 0-15, got %d", r.DB))
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

func validateScripting(s ScriptingConfig) error {
	var errs []string
	if s.Timeout <= 0 {
		errs = append(errs, "scripting.timeout must be positive")
	}
	positive := []struct {
		name string
		v    int
	}{
		{"max_statements", s.MaxStatements},
		{"max_loops", s.MaxLoops},
		{"max_iter_length", s.MaxIterLength},
		{"max_const_len", s.MaxConstLen},
		{"max_recursion_depth", s.MaxRecursionDepth},
		{"max_rolls", s.MaxRolls},
		{"max_total_rolls", s.MaxTotalRolls},
		{"max_cvar_length", s.MaxCvarLength},
		{"max_uvar_length", s.MaxUvarLength},
		{"max_svar_length", s.MaxSvarLength},
		{"max_gvar_length", s.MaxGvarLength},
		{"max_body_length", s.MaxBodyLength},
	}
	for _, p := range positive {
		if p.v < 1 {
			errs = append(errs, fmt.Sprintf("scripting.%s must be >= 1, got %d", p.name, p.v))
		}
	}
	if s.MaxTotalRolls < s.MaxRolls {
		errs = append(errs, "scripting.max_total_rolls must not be less than scripting.max_rolls")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateSigning(s SigningConfig) error {
	if s.Secret == "" {
		return errors.New("signing.secret must not be empty")
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := NewViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	return LoadFromViper(v)
}

// NewViper returns a Viper instance with defaults and DRACONIC_ environment
// overrides configured but no config file attached.
//
// Postcondition: Returns a non-nil Viper.
func NewViper() *viper.Viper {
	v := viper.New()

	// Environment variable overrides with DRACONIC_ prefix
	v.SetEnvPrefix("DRACONIC")
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
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "draconic")
	v.SetDefault("database.password", "draconic")
	v.SetDefault("database.name", "draconic")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "draconic")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("scripting.timeout", "5s")
	v.SetDefault("scripting.max_statements", 1_200_000)
	v.SetDefault("scripting.max_loops", 1_000_000)
	v.SetDefault("scripting.max_iter_length", 10_000)
	v.SetDefault("scripting.max_const_len", 200_000)
	v.SetDefault("scripting.max_recursion_depth", 50)
	v.SetDefault("scripting.max_rolls", 1000)
	v.SetDefault("scripting.max_total_rolls", 10_000)
	v.SetDefault("scripting.max_cvar_length", 10_000)
	v.SetDefault("scripting.max_uvar_length", 10_000)
	v.SetDefault("scripting.max_svar_length", 10_000)
	v.SetDefault("scripting.max_gvar_length", 100_000)
	v.SetDefault("scripting.max_body_length", 5_000)

	// Registered so AutomaticEnv can supply it without a file entry.
	v.SetDefault("signing.secret", "")
}
