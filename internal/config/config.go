package config

import (
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"strconv"
	"time"

	"github.com/danielpatrickdp/algo-explorer/internal/logging"
	"github.com/danielpatrickdp/algo-explorer/internal/points"
	"github.com/danielpatrickdp/algo-explorer/internal/regression"
	"github.com/danielpatrickdp/algo-explorer/internal/session"
	"github.com/danielpatrickdp/algo-explorer/internal/step"
	"github.com/danielpatrickdp/algo-explorer/internal/tree"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// #region types

// Config is the file-backed configuration shared by every binary.
type Config struct {
	Session  SessionConfig  `yaml:"session"`
	Generate GenerateConfig `yaml:"generate"`
	Grid     GridConfig     `yaml:"grid"`
	Player   PlayerConfig   `yaml:"player"`
	Journal  JournalConfig  `yaml:"journal"`
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
}

// SessionConfig holds engine hyper-parameters.
type SessionConfig struct {
	K            int     `yaml:"k" validate:"min=1"`
	MaxDepth     int     `yaml:"max_depth" validate:"min=0"`
	LearningRate float64 `yaml:"learning_rate" validate:"gt=0"`
	OriginOffset float64 `yaml:"origin_offset"`
	Seed         uint64  `yaml:"seed"` // 0 picks a time-based seed
}

// GenerateConfig controls the synthetic point cloud.
type GenerateConfig struct {
	Clusters   int     `yaml:"clusters" validate:"min=1"`
	PerCluster int     `yaml:"per_cluster" validate:"min=0"`
	Spread     float64 `yaml:"spread" validate:"gte=0"`
	Width      float64 `yaml:"width" validate:"gt=0"`
	Height     float64 `yaml:"height" validate:"gt=0"`
	Palette    int     `yaml:"palette" validate:"gte=0"`
}

// GridConfig is the tree threshold grid.
type GridConfig struct {
	Step float64 `yaml:"step" validate:"gt=0"`
	MaxX float64 `yaml:"max_x" validate:"gt=0"`
	MaxY float64 `yaml:"max_y" validate:"gt=0"`
}

// PlayerConfig controls auto-play.
type PlayerConfig struct {
	Delay time.Duration `yaml:"delay" validate:"gt=0"`
}

// JournalConfig locates the sqlite journal. An empty path disables it.
type JournalConfig struct {
	Path string `yaml:"path"`
}

// ServerConfig holds listen addresses for cmd/serve.
type ServerConfig struct {
	GRPCAddr    string `yaml:"grpc_addr" validate:"required"`
	MetricsAddr string `yaml:"metrics_addr"`
}

// LogConfig selects the structured log output.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// #endregion types

// #region defaults

// Default returns the configuration used when no file is given.
func Default() Config {
	sess := session.DefaultConfig()
	return Config{
		Session: SessionConfig{
			K:            sess.K,
			MaxDepth:     sess.MaxDepth,
			LearningRate: sess.Regression.LearningRate,
			OriginOffset: sess.Regression.OriginOffset,
		},
		Generate: GenerateConfig(sess.Generate),
		Grid:     GridConfig(sess.Grid),
		Player:   PlayerConfig{Delay: step.DefaultPlayerConfig().Delay},
		Journal:  JournalConfig{Path: "algo-explorer.db"},
		Server:   ServerConfig{GRPCAddr: "127.0.0.1:50061", MetricsAddr: "127.0.0.1:9464"},
		Log:      LogConfig{Level: "info", Format: "text"},
	}
}

// #endregion defaults

// #region load

// Load reads configuration with priority env > file > defaults. A missing
// file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	cfg.Journal.Path = envOr("EXPLORER_DB", cfg.Journal.Path)
	cfg.Server.GRPCAddr = envOr("EXPLORER_GRPC_ADDR", cfg.Server.GRPCAddr)
	cfg.Server.MetricsAddr = envOr("EXPLORER_METRICS_ADDR", cfg.Server.MetricsAddr)
	cfg.Log.Level = envOr("EXPLORER_LOG_LEVEL", cfg.Log.Level)
	if v := os.Getenv("EXPLORER_SEED"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("EXPLORER_SEED: %w", err)
		}
		cfg.Session.Seed = seed
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Validate checks every field against its constraints.
func (c *Config) Validate() error {
	return validate.Struct(c)
}

// #endregion load

// #region conversions

// SessionConfig converts to the session's hyper-parameters.
func (c *Config) SessionConfig() session.Config {
	return session.Config{
		K:        c.Session.K,
		MaxDepth: c.Session.MaxDepth,
		Grid:     tree.Grid(c.Grid),
		Regression: regression.Config{
			LearningRate: c.Session.LearningRate,
			OriginOffset: c.Session.OriginOffset,
		},
		Generate: points.GenerateConfig(c.Generate),
	}
}

// PlayerConfig converts to the step player's configuration.
func (c *Config) PlayerConfig() step.PlayerConfig {
	return step.PlayerConfig{Delay: c.Player.Delay}
}

// LoggingConfig converts to the logger configuration for one binary.
func (c *Config) LoggingConfig(service string) logging.Config {
	return logging.Config{Level: c.Log.Level, Format: c.Log.Format, Service: service}
}

// Rand returns the session random source.
func (c *Config) Rand() *rand.Rand {
	seed := c.Session.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// #endregion conversions
