package cfg

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"diabetes-risk/internal/common"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Settings struct {
	ModelPath      string
	ModelBackend   string
	ModelURL       string
	PythonPath     string
	PredictTimeout time.Duration
	HTTPPort       int
	DataPath       string
	HistoryLimit   int
	DriftWindow    int // 0 disables input drift monitoring
	LogLevel       string
	LogPretty      bool
	LogFile        string
}

type ConfigFile struct {
	Model struct {
		Path           string `yaml:"path"`
		Backend        string `yaml:"backend"`
		URL            string `yaml:"url"`
		PythonPath     string `yaml:"pythonPath"`
		PredictTimeout string `yaml:"predictTimeout"`
	} `yaml:"model"`

	Server struct {
		HTTPPort int `yaml:"httpPort"`
	} `yaml:"server"`

	History struct {
		DataPath string `yaml:"dataPath"`
		Limit    int    `yaml:"limit"`
	} `yaml:"history"`

	Drift struct {
		Window *int `yaml:"window"` // nil means unset; 0 disables
	} `yaml:"drift"`

	Logging struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
		File   string `yaml:"file"`
	} `yaml:"logging"`
}

// Load reads settings from a .env file (if present), then from CONFIG_FILE
// YAML when set, falling back to environment variables. Environment
// variables always override YAML values.
func Load() (Settings, error) {
	if err := loadDotEnv(".env"); err != nil {
		return Settings{}, err
	}

	if configPath := os.Getenv(common.EnvConfigFile); configPath != "" {
		return loadFromYAML(configPath)
	}

	return loadFromEnv()
}

// loadDotEnv populates the environment from path without overriding
// variables that are already set. A missing file is not an error.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	predictTimeout, err := time.ParseDuration(config.Model.PredictTimeout)
	if err != nil {
		predictTimeout = defaultPredictTimeout()
	}

	settings := Settings{
		ModelPath:      getEnvOrDefault(common.EnvModelPath, orDefault(config.Model.Path, common.DefaultModelPath)),
		ModelBackend:   strings.ToLower(getEnvOrDefault(common.EnvModelBackend, orDefault(config.Model.Backend, common.DefaultModelBackend))),
		ModelURL:       getEnvOrDefault(common.EnvModelURL, config.Model.URL),
		PythonPath:     getEnvOrDefault(common.EnvPythonPath, config.Model.PythonPath),
		PredictTimeout: getDurationOrDefault(common.EnvPredictTimeout, predictTimeout),
		HTTPPort:       getIntFromEnvOrConfig(common.EnvHTTPPort, config.Server.HTTPPort, common.DefaultHTTPPort),
		DataPath:       getEnvOrDefault(common.EnvDataPath, config.History.DataPath),
		HistoryLimit:   getIntFromEnvOrConfig(common.EnvHistoryLimit, config.History.Limit, common.DefaultHistoryLimit),
		DriftWindow:    getIntFromEnvOrConfigPtr(common.EnvDriftWindow, config.Drift.Window, common.DefaultDriftWindow),
		LogLevel:       getEnvOrDefault(common.EnvLogLevel, orDefault(config.Logging.Level, common.DefaultLogLevel)),
		LogPretty:      getBoolFromEnvOrConfig(common.EnvLogPretty, config.Logging.Pretty),
		LogFile:        getEnvOrDefault(common.EnvLogFile, config.Logging.File),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func loadFromEnv() (Settings, error) {
	settings := Settings{
		ModelPath:      getEnvOrDefault(common.EnvModelPath, common.DefaultModelPath),
		ModelBackend:   strings.ToLower(getEnvOrDefault(common.EnvModelBackend, common.DefaultModelBackend)),
		ModelURL:       os.Getenv(common.EnvModelURL),
		PythonPath:     os.Getenv(common.EnvPythonPath),
		PredictTimeout: getDurationOrDefault(common.EnvPredictTimeout, defaultPredictTimeout()),
		HTTPPort:       getIntOrDefault(common.EnvHTTPPort, common.DefaultHTTPPort),
		DataPath:       os.Getenv(common.EnvDataPath), // optional
		HistoryLimit:   getIntOrDefault(common.EnvHistoryLimit, common.DefaultHistoryLimit),
		DriftWindow:    getIntOrDefault(common.EnvDriftWindow, common.DefaultDriftWindow),
		LogLevel:       getEnvOrDefault(common.EnvLogLevel, common.DefaultLogLevel),
		LogPretty:      getBoolOrDefault(common.EnvLogPretty, false),
		LogFile:        os.Getenv(common.EnvLogFile),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func defaultPredictTimeout() time.Duration {
	d, _ := time.ParseDuration(common.DefaultPredictTimeout)
	return d
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

func getIntFromEnvOrConfig(key string, configValue, defaultValue int) int {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.Atoi(env); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

// getIntFromEnvOrConfigPtr is getIntFromEnvOrConfig for keys where an
// explicit zero in the config file is meaningful.
func getIntFromEnvOrConfigPtr(key string, configValue *int, defaultValue int) int {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.Atoi(env); err == nil {
			return val
		}
	}
	if configValue != nil {
		return *configValue
	}
	return defaultValue
}

func getBoolFromEnvOrConfig(key string, configValue bool) bool {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.ParseBool(env); err == nil {
			return val
		}
	}
	return configValue
}

// validateSettings checks ranges and cross-field requirements
func validateSettings(settings *Settings) error {
	switch settings.ModelBackend {
	case common.BackendAuto, common.BackendNative, common.BackendPython:
		if settings.ModelPath == "" {
			return errors.New(common.ErrMsgModelPathRequired)
		}
	case common.BackendRemote:
		if settings.ModelURL == "" {
			return errors.New(common.ErrMsgModelURLRequired)
		}
	default:
		return fmt.Errorf("unknown model backend %q (want auto, native, python or remote)", settings.ModelBackend)
	}

	if settings.PredictTimeout < 100*time.Millisecond || settings.PredictTimeout > time.Minute {
		return fmt.Errorf("predict timeout must be between 100ms and 1m, got %v", settings.PredictTimeout)
	}
	if settings.HTTPPort < common.MinHTTPPort || settings.HTTPPort > common.MaxHTTPPort {
		return fmt.Errorf("HTTP port must be between %d and %d, got %d", common.MinHTTPPort, common.MaxHTTPPort, settings.HTTPPort)
	}
	if settings.HistoryLimit <= 0 || settings.HistoryLimit > common.MaxHistoryLimit {
		return fmt.Errorf("history limit must be between 1 and %d, got %d", common.MaxHistoryLimit, settings.HistoryLimit)
	}

	if settings.DriftWindow < 0 || settings.DriftWindow > common.MaxDriftWindow {
		return fmt.Errorf("drift window must be between 0 and %d, got %d", common.MaxDriftWindow, settings.DriftWindow)
	}

	switch strings.ToLower(settings.LogLevel) {
	case "trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled":
	default:
		return fmt.Errorf("unknown log level %q", settings.LogLevel)
	}

	return nil
}
