package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Server    ServerConfig    `toml:"server"`
	Database  DatabaseConfig  `toml:"database"`
	Network   NetworkConfig   `toml:"network"`
	World     WorldConfig     `toml:"world"`
	Walker    WalkerConfig    `toml:"walker"`
	Scripting ScriptingConfig `toml:"scripting"`
	Logging   LoggingConfig   `toml:"logging"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
	Debug     DebugConfig     `toml:"debug"`
}

type ServerConfig struct {
	Name      string `toml:"name"`
	ID        int    `toml:"id"`
	StartTime int64  // set at boot, not from config
}

type DatabaseConfig struct {
	DSN             string        `toml:"dsn"` // empty = positions are not persisted
	MaxOpenConns    int           `toml:"max_open_conns"`
	MaxIdleConns    int           `toml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `toml:"conn_max_lifetime"`
}

type NetworkConfig struct {
	BindAddress        string        `toml:"bind_address"`
	WebSocketPath      string        `toml:"websocket_path"`
	TickRate           time.Duration `toml:"tick_rate"`
	InQueueSize        int           `toml:"in_queue_size"`
	OutQueueSize       int           `toml:"out_queue_size"`
	MaxCommandsPerTick int           `toml:"max_commands_per_tick"`
	WriteTimeout       time.Duration `toml:"write_timeout"`
	ReadTimeout        time.Duration `toml:"read_timeout"`
}

type WorldConfig struct {
	MapList      string        `toml:"map_list"`
	SpawnList    string        `toml:"spawn_list"`
	WarpList     string        `toml:"warp_list"`
	DefaultMap   uint16        `toml:"default_map"`
	CellSide     int           `toml:"cell_side"`
	InfoRange    uint8         `toml:"info_range"`
	DropTTL      time.Duration `toml:"drop_ttl"`
	WanderChance float64       `toml:"wander_chance"` // per NPC per tick (0.0-1.0)
	MapWorkers   int           `toml:"map_workers"`   // maps ticked in parallel
	SaveInterval time.Duration `toml:"save_interval"`
}

type WalkerConfig struct {
	BaseStepDelay time.Duration `toml:"base_step_delay"`
	MinStepDelay  time.Duration `toml:"min_step_delay"`
}

type ScriptingConfig struct {
	Dir string `toml:"dir"` // empty = fixed step delay
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

type RateLimitConfig struct {
	Enabled           bool `toml:"enabled"`
	CommandsPerSecond int  `toml:"commands_per_second"`
	Burst             int  `toml:"burst"`
}

type DebugConfig struct {
	DeadlockDetection bool          `toml:"deadlock_detection"`
	DeadlockTimeout   time.Duration `toml:"deadlock_timeout"`
}

// Load reads path over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := defaults()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	cfg.Server.StartTime = time.Now().Unix()
	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return defaults()
}

// Validate rejects settings the world cannot be built with.
func (c *Config) Validate() error {
	var errs []error
	if c.World.CellSide <= 0 || 256%c.World.CellSide != 0 {
		errs = append(errs, fmt.Errorf("world.cell_side %d must divide 256", c.World.CellSide))
	}
	if c.World.InfoRange == 0 {
		errs = append(errs, errors.New("world.info_range must be positive"))
	}
	if c.World.WanderChance < 0 || c.World.WanderChance > 1 {
		errs = append(errs, fmt.Errorf("world.wander_chance %v outside [0,1]", c.World.WanderChance))
	}
	if c.World.MapWorkers <= 0 {
		errs = append(errs, errors.New("world.map_workers must be positive"))
	}
	if c.Walker.BaseStepDelay <= 0 {
		errs = append(errs, errors.New("walker.base_step_delay must be positive"))
	}
	if c.Walker.MinStepDelay <= 0 || c.Walker.MinStepDelay > c.Walker.BaseStepDelay {
		errs = append(errs, errors.New("walker.min_step_delay must be positive and at most base_step_delay"))
	}
	if c.Network.TickRate <= 0 {
		errs = append(errs, errors.New("network.tick_rate must be positive"))
	}
	if c.Network.OutQueueSize <= 0 || c.Network.InQueueSize <= 0 {
		errs = append(errs, errors.New("network queue sizes must be positive"))
	}
	if c.RateLimit.Enabled && c.RateLimit.CommandsPerSecond <= 0 {
		errs = append(errs, errors.New("rate_limit.commands_per_second must be positive"))
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q must be json or console", c.Logging.Format))
	}
	return errors.Join(errs...)
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Name: "world",
			ID:   1,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Network: NetworkConfig{
			BindAddress:        "0.0.0.0:7001",
			WebSocketPath:      "/ws",
			TickRate:           200 * time.Millisecond,
			InQueueSize:        128,
			OutQueueSize:       256,
			MaxCommandsPerTick: 32,
			WriteTimeout:       10 * time.Second,
			ReadTimeout:        60 * time.Second,
		},
		World: WorldConfig{
			MapList:      "data/yaml/map_list.yaml",
			SpawnList:    "data/yaml/spawn_list.yaml",
			WarpList:     "data/yaml/warp_list.yaml",
			DefaultMap:   0,
			CellSide:     8,
			InfoRange:    20,
			DropTTL:      2 * time.Minute,
			WanderChance: 0.05,
			MapWorkers:   4,
			SaveInterval: time.Minute,
		},
		Walker: WalkerConfig{
			BaseStepDelay: 500 * time.Millisecond,
			MinStepDelay:  100 * time.Millisecond,
		},
		Scripting: ScriptingConfig{
			Dir: "scripts",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			CommandsPerSecond: 20,
			Burst:             40,
		},
		Debug: DebugConfig{
			DeadlockDetection: false,
			DeadlockTimeout:   30 * time.Second,
		},
	}
}
