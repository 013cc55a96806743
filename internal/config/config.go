package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

const (
	configDirName = "gh-chartstream"
	defaultConfig = ".config"
)

var configFiles = []string{
	"config.yaml",
	"config.yml",
}

// Config represents the structure of the configuration file used by the application.
type Config struct {
	Playback PlaybackConfig `yaml:"playback"`
	Render   RenderConfig   `yaml:"render"`
	Parser   ParserConfig   `yaml:"parser"`
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// PlaybackConfig paces simulated playback of an event log.
type PlaybackConfig struct {
	MinDelay time.Duration `yaml:"min_delay" default:"50ms"`
	Jitter   time.Duration `yaml:"jitter" default:"100ms"`
}

// RenderConfig controls terminal output.
type RenderConfig struct {
	// Format is "terminal", "plain", "json", "yaml" or "html".
	Format   string `yaml:"format" default:"terminal"`
	Wrap     int    `yaml:"wrap" default:"120"`
	ChartDir string `yaml:"chart_dir" default:"charts"`
}

// ParserConfig controls segmentation policy.
type ParserConfig struct {
	// InvalidSegments surfaces malformed chart blocks instead of dropping them.
	InvalidSegments bool `yaml:"invalid_segments"`
}

type ServerConfig struct {
	Addr         string `yaml:"addr" default:":8090"`
	MaxBodyBytes int64  `yaml:"max_body_bytes" default:"1048576"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" default:"info"`
	Format string `yaml:"format" default:"console"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

// configResult is a struct used to return the configuration and any error that occurs during loading.
type configResult struct {
	config *Config
	err    error
}

// newDefaultConfig creates a configuration with every default tag applied.
func newDefaultConfig() *Config {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		// tags are static; a failure here is a programming error
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return cfg
}

// Default returns the built-in configuration.
func Default() *Config { return newDefaultConfig() }

// getConfigPath retrieves the path to the configuration directory based on the XDG_CONFIG_HOME environment variable.
func getConfigPath() (string, error) {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home directory: %w", err)
		}
		configHome = filepath.Join(home, defaultConfig)
	}

	return filepath.Join(configHome, configDirName), nil
}

// tryLoadConfig attempts to load a configuration file from the specified path.
func tryLoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := newDefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// LoadConfig loads the configuration from the user's config directory, with a
// timeout, then applies environment overrides. A non-empty path loads that file
// instead and fails if it is missing.
func LoadConfig(ctx context.Context, path string) (*Config, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	result := make(chan configResult, 1)

	go func() {
		var (
			cfg *Config
			err error
		)
		if path != "" {
			cfg, err = tryLoadConfig(path)
			if err != nil {
				err = fmt.Errorf("failed to load config from %s: %w", path, err)
			}
		} else {
			cfg, err = loadConfigFiles(ctx)
		}
		result <- configResult{config: cfg, err: err}
	}()

	done := ctx.Done()
	select {
	case <-done:
		return nil, ctx.Err()
	case r := <-result:
		if r.err != nil {
			return nil, r.err
		}
		applyEnv(r.config)
		return r.config, nil
	}
}

// loadConfigFiles loads configuration files from the user's config directory.
func loadConfigFiles(ctx context.Context) (*Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error before loading config: %w", err)
	}

	configDir, err := getConfigPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get config path: %w", err)
	}

	// Return default config early if directory doesn't exist
	if _, err := os.Stat(configDir); os.IsNotExist(err) {
		return newDefaultConfig(), nil
	}

	for _, filename := range configFiles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		cfg, err := tryLoadConfig(filepath.Join(configDir, filename))
		if err == nil {
			return cfg, nil
		}
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load config from %s: %w", filename, err)
		}
	}

	return newDefaultConfig(), nil
}

// Environment overrides.
const (
	EnvConfig    = "CHARTSTREAM_CONFIG"
	EnvMinDelay  = "CHARTSTREAM_MIN_DELAY"
	EnvJitter    = "CHARTSTREAM_JITTER"
	EnvFormat    = "CHARTSTREAM_FORMAT"
	EnvChartDir  = "CHARTSTREAM_CHART_DIR"
	EnvInvalid   = "CHARTSTREAM_INVALID_SEGMENTS"
	EnvAddr      = "CHARTSTREAM_ADDR"
	EnvLogLevel  = "CHARTSTREAM_LOG_LEVEL"
	EnvLogFormat = "CHARTSTREAM_LOG_FORMAT"
	EnvLogFile   = "CHARTSTREAM_LOG_FILE"
	EnvLogSource = "CHARTSTREAM_LOG_SOURCE"
)

func applyEnv(cfg *Config) {
	cfg.Playback.MinDelay = envDuration(EnvMinDelay, cfg.Playback.MinDelay)
	cfg.Playback.Jitter = envDuration(EnvJitter, cfg.Playback.Jitter)
	cfg.Render.Format = envOr(EnvFormat, cfg.Render.Format)
	cfg.Render.ChartDir = envOr(EnvChartDir, cfg.Render.ChartDir)
	cfg.Parser.InvalidSegments = envBool(EnvInvalid, cfg.Parser.InvalidSegments)
	cfg.Server.Addr = envOr(EnvAddr, cfg.Server.Addr)
	cfg.Logging.Level = envOr(EnvLogLevel, cfg.Logging.Level)
	cfg.Logging.Format = envOr(EnvLogFormat, cfg.Logging.Format)
	cfg.Logging.File = envOr(EnvLogFile, cfg.Logging.File)
	cfg.Logging.Source = envBool(EnvLogSource, cfg.Logging.Source)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
