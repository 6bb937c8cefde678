// Package config provides centralized configuration management.
// Values come from Default*() functions, then an optional YAML file, then
// environment variables, each layer overriding the one before.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/volanre/jollyred/internal/game"
)

// =============================================================================
// SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port           int      `yaml:"port" env:"PORT"`
	AdminToken     string   `yaml:"admin_token" env:"ADMIN_TOKEN"` // Empty disables auth on admin routes
	AllowedOrigins []string `yaml:"allowed_origins" env:"ALLOWED_ORIGINS" envSeparator:","`
	RequestsPerSec float64  `yaml:"requests_per_sec" env:"RATE_LIMIT_RPS"`   // Per-client HTTP budget
	RequestBurst   int      `yaml:"request_burst" env:"RATE_LIMIT_BURST"`    // Per-client HTTP burst
	BroadcastHz    int      `yaml:"broadcast_hz" env:"BROADCAST_HZ"`         // WebSocket state pushes per second
	CommandWorkers int      `yaml:"command_workers" env:"COMMAND_WORKERS"`   // Command queue shards
	CommandsPerSec float64  `yaml:"commands_per_sec" env:"COMMANDS_PER_SEC"` // Per-client command budget
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Port:           3000,
		AllowedOrigins: []string{"*"},
		RequestsPerSec: 20,
		RequestBurst:   40,
		BroadcastHz:    20,
		CommandWorkers: 4,
		CommandsPerSec: 30,
	}
}

// =============================================================================
// ENGINE CONFIGURATION
// =============================================================================

// EngineConfig holds simulation settings.
type EngineConfig struct {
	TickRate      int     `yaml:"tick_rate" env:"TICK_RATE"`           // Logic ticks per second
	FixedTimestep float64 `yaml:"fixed_timestep" env:"FIXED_TIMESTEP"` // Seconds per physics step
	MaxFixedSteps int     `yaml:"max_fixed_steps" env:"MAX_FIXED_STEPS"`
	Gravity       float64 `yaml:"gravity" env:"GRAVITY"`
	Mass          float64 `yaml:"mass" env:"CHARACTER_MASS"`
	AttackReach   float64 `yaml:"attack_reach" env:"ATTACK_REACH"`
	ArenaWidth    float64 `yaml:"arena_width" env:"ARENA_WIDTH"`
	Seed          int64   `yaml:"seed" env:"SEED"` // 0 seeds from the clock
}

// DefaultEngine returns the default engine configuration.
func DefaultEngine() EngineConfig {
	d := game.DefaultEngineConfig()
	return EngineConfig{
		TickRate:      d.TickRate,
		FixedTimestep: d.FixedTimestep,
		MaxFixedSteps: d.MaxFixedSteps,
		Gravity:       d.Gravity,
		Mass:          d.Mass,
		AttackReach:   d.AttackReach,
		ArenaWidth:    d.ArenaWidth,
	}
}

// =============================================================================
// CHARACTER CONFIGURATION
// =============================================================================

// CharacterConfig holds per-character resource limits and spawn defaults.
type CharacterConfig struct {
	DefaultProfile        string `yaml:"default_profile" env:"DEFAULT_PROFILE"`
	MaxCharacters         int    `yaml:"max_characters" env:"MAX_CHARACTERS"`                   // Hard cap on live characters
	MaxSnapshotCharacters int    `yaml:"max_snapshot_characters" env:"MAX_SNAPSHOT_CHARACTERS"` // Characters per published snapshot
	TraceLength           int    `yaml:"trace_length" env:"TRACE_LENGTH"`                       // Samples kept per character
}

// DefaultCharacter returns the default character configuration.
func DefaultCharacter() CharacterConfig {
	return CharacterConfig{
		DefaultProfile:        game.DefaultProfileName,
		MaxCharacters:         game.DefaultLimits.MaxCharacters,
		MaxSnapshotCharacters: game.DefaultLimits.MaxSnapshotCharacters,
		TraceLength:           game.DefaultLimits.TraceLength,
	}
}

// =============================================================================
// STORAGE CONFIGURATION
// =============================================================================

// StorageConfig holds database settings.
type StorageConfig struct {
	// DSN is a SQLite file path, or a postgres:// URL
	DSN string `yaml:"dsn" env:"DATABASE_URL"`
}

// DefaultStorage returns the default storage configuration.
func DefaultStorage() StorageConfig {
	return StorageConfig{DSN: "jollyred.db"}
}

// =============================================================================
// EVENT LOG CONFIGURATION
// =============================================================================

// EventLogConfig holds event log settings.
type EventLogConfig struct {
	Path                     string `yaml:"path" env:"EVENT_LOG_PATH"` // Empty disables the log
	MaxEventsPerSec          int    `yaml:"max_events_per_sec" env:"EVENT_LOG_RATE"`
	MaxEventsPerCharacterSec int    `yaml:"max_events_per_character_sec" env:"EVENT_LOG_CHARACTER_RATE"`
}

// DefaultEventLog returns the default event log configuration.
func DefaultEventLog() EventLogConfig {
	d := game.DefaultEventLogConfig()
	return EventLogConfig{
		MaxEventsPerSec:          d.MaxEventsPerSec,
		MaxEventsPerCharacterSec: d.MaxEventsPerCharacterSec,
	}
}

// =============================================================================
// DEBUG CONFIGURATION
// =============================================================================

// DebugConfig holds the metrics/pprof server settings.
type DebugConfig struct {
	Enabled bool `yaml:"enabled" env:"DEBUG_ENABLED"`
	Port    int  `yaml:"port" env:"DEBUG_PORT"`
}

// DefaultDebug returns the default debug configuration.
func DefaultDebug() DebugConfig {
	return DebugConfig{
		Enabled: true,
		Port:    6060,
	}
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Server    ServerConfig    `yaml:"server"`
	Engine    EngineConfig    `yaml:"engine"`
	Character CharacterConfig `yaml:"character"`
	Storage   StorageConfig   `yaml:"storage"`
	EventLog  EventLogConfig  `yaml:"event_log"`
	Debug     DebugConfig     `yaml:"debug"`
	Profiles  ProfileList     `yaml:"profiles"`
}

// Default returns the complete configuration with no file or env applied.
func Default() AppConfig {
	return AppConfig{
		Server:    DefaultServer(),
		Engine:    DefaultEngine(),
		Character: DefaultCharacter(),
		Storage:   DefaultStorage(),
		EventLog:  DefaultEventLog(),
		Debug:     DefaultDebug(),
		Profiles:  ProfileList{game.DefaultProfile()},
	}
}

// Load returns the complete configuration. A missing file at path is not an
// error; an empty path skips the file layer.
func Load(path string) (AppConfig, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parsing config %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return cfg, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the settings the rest of the program relies on.
func (c AppConfig) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if c.Debug.Enabled && c.Debug.Port == c.Server.Port {
		errs = append(errs, fmt.Errorf("debug.port must differ from server.port (%d)", c.Server.Port))
	}
	if c.Engine.TickRate <= 0 {
		errs = append(errs, fmt.Errorf("engine.tick_rate must be positive, got %d", c.Engine.TickRate))
	}
	if c.Engine.FixedTimestep <= 0 {
		errs = append(errs, fmt.Errorf("engine.fixed_timestep must be positive, got %g", c.Engine.FixedTimestep))
	}
	if c.Character.MaxCharacters <= 0 {
		errs = append(errs, fmt.Errorf("character.max_characters must be positive, got %d", c.Character.MaxCharacters))
	}

	seen := make(map[string]bool, len(c.Profiles))
	for _, p := range c.Profiles {
		if err := p.Validate(); err != nil {
			errs = append(errs, err)
		}
		if seen[p.Name] {
			errs = append(errs, fmt.Errorf("duplicate profile %q", p.Name))
		}
		seen[p.Name] = true
	}
	if !seen[c.Character.DefaultProfile] {
		errs = append(errs, fmt.Errorf("character.default_profile %q is not defined", c.Character.DefaultProfile))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// GameConfig converts the settings into the engine's own config type.
func (c AppConfig) GameConfig() game.EngineConfig {
	return game.EngineConfig{
		TickRate:      c.Engine.TickRate,
		FixedTimestep: c.Engine.FixedTimestep,
		MaxFixedSteps: c.Engine.MaxFixedSteps,
		Gravity:       c.Engine.Gravity,
		Mass:          c.Engine.Mass,
		AttackReach:   c.Engine.AttackReach,
		ArenaWidth:    c.Engine.ArenaWidth,
		Seed:          c.Engine.Seed,
		Limits: game.ResourceLimits{
			MaxCharacters:         c.Character.MaxCharacters,
			MaxSnapshotCharacters: c.Character.MaxSnapshotCharacters,
			TraceLength:           c.Character.TraceLength,
		},
		EventLog: game.EventLogConfig{
			MaxEventsPerSec:          c.EventLog.MaxEventsPerSec,
			MaxEventsPerCharacterSec: c.EventLog.MaxEventsPerCharacterSec,
		},
	}
}

// Profile looks up a configured profile by name.
func (c AppConfig) Profile(name string) (game.Profile, bool) {
	for _, p := range c.Profiles {
		if p.Name == name {
			return p, true
		}
	}
	return game.Profile{}, false
}

// =============================================================================
// PROFILES
// =============================================================================

// ProfileList is the configured set of character profiles. Fields a YAML
// entry leaves out keep the stock profile's values.
type ProfileList []game.Profile

// UnmarshalYAML decodes each entry over game.DefaultProfile.
func (l *ProfileList) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.SequenceNode {
		return fmt.Errorf("line %d: profiles must be a list", value.Line)
	}

	out := make(ProfileList, 0, len(value.Content))
	for _, item := range value.Content {
		p := game.DefaultProfile()
		p.Name = ""
		p.Title = ""
		if err := item.Decode(&p); err != nil {
			return err
		}
		if p.Title == "" {
			p.Title = p.Name
		}
		out = append(out, p)
	}
	*l = out
	return nil
}
