package cfg

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"forest-cover/internal/common"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Settings struct {
	HTTPPort        int
	ModelServerPort int
	ModelSource     string
	ModelFileID     string
	DriveBaseURL    string
	ModelURL        string
	ModelPath       string
	ModelFormat     string
	PredictURL      string
	ONNXLibPath     string
	DataPath        string
	FetchTimeout    time.Duration
	FetchRetries    int
	FetchRetryWait  time.Duration
	PredictTimeout  time.Duration
	CacheSize       int
	CacheTTL        time.Duration
	LogLevel        string
	LogFormat       string
	LogFile         string
}

type ConfigFile struct {
	Server struct {
		HTTPPort        int `yaml:"httpPort"`
		ModelServerPort int `yaml:"modelServerPort"`
	} `yaml:"server"`

	Model struct {
		Source       string `yaml:"source"`
		FileID       string `yaml:"fileID"`
		DriveBaseURL string `yaml:"driveBaseURL"`
		URL          string `yaml:"url"`
		Path         string `yaml:"path"`
		Format       string `yaml:"format"`
		PredictURL   string `yaml:"predictURL"`
		ONNXLibPath  string `yaml:"onnxLibPath"`
	} `yaml:"model"`

	Fetch struct {
		Timeout   string `yaml:"timeout"`
		Retries   int    `yaml:"retries"`
		RetryWait string `yaml:"retryWait"`
	} `yaml:"fetch"`

	Prediction struct {
		Timeout   string `yaml:"timeout"`
		CacheSize int    `yaml:"cacheSize"`
		CacheTTL  string `yaml:"cacheTTL"`
	} `yaml:"prediction"`

	System struct {
		DataPath  string `yaml:"dataPath"`
		LogLevel  string `yaml:"logLevel"`
		LogFormat string `yaml:"logFormat"`
		LogFile   string `yaml:"logFile"`
	} `yaml:"system"`
}

func Load() (Settings, error) {
	if err := loadEnvFile(); err != nil {
		return Settings{}, err
	}

	// Try to load from YAML file first
	if configPath := os.Getenv(common.EnvConfigFile); configPath != "" {
		return loadFromYAML(configPath)
	}

	// Fallback to environment variables
	return loadFromEnv()
}

// loadEnvFile reads KEY=VALUE pairs from ENV_FILE (or ./.env when present)
// into the process environment. Variables that are already set win.
func loadEnvFile() error {
	path := os.Getenv(common.EnvEnvFile)
	explicit := path != ""
	if !explicit {
		path = common.DefaultEnvFile
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return nil
		}
		return fmt.Errorf("env file %s: %w", path, err)
	}

	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
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

	// Parse durations
	fetchTimeout, err := time.ParseDuration(config.Fetch.Timeout)
	if err != nil {
		fetchTimeout = 60 * time.Second
	}

	retryWait, err := time.ParseDuration(config.Fetch.RetryWait)
	if err != nil {
		retryWait = 2 * time.Second
	}

	predictTimeout, err := time.ParseDuration(config.Prediction.Timeout)
	if err != nil {
		predictTimeout = 5 * time.Second
	}

	cacheTTL, err := time.ParseDuration(config.Prediction.CacheTTL)
	if err != nil {
		cacheTTL = 10 * time.Minute
	}

	settings := Settings{
		HTTPPort:        getIntFromEnvOrConfig(common.EnvHTTPPort, config.Server.HTTPPort, common.DefaultHTTPPort),
		ModelServerPort: getIntFromEnvOrConfig(common.EnvModelServerPort, config.Server.ModelServerPort, 0),
		ModelSource:     getEnvOrDefault(common.EnvModelSource, orDefault(config.Model.Source, common.DefaultModelSource)),
		ModelFileID:     getEnvOrDefault(common.EnvModelFileID, orDefault(config.Model.FileID, common.DefaultModelFileID)),
		DriveBaseURL:    getEnvOrDefault(common.EnvDriveBaseURL, orDefault(config.Model.DriveBaseURL, common.DefaultDriveBaseURL)),
		ModelURL:        getEnvOrDefault(common.EnvModelURL, config.Model.URL),
		ModelPath:       getEnvOrDefault(common.EnvModelPath, orDefault(config.Model.Path, common.DefaultModelPath)),
		ModelFormat:     getEnvOrDefault(common.EnvModelFormat, orDefault(config.Model.Format, common.DefaultModelFormat)),
		PredictURL:      getEnvOrDefault(common.EnvPredictURL, config.Model.PredictURL),
		ONNXLibPath:     getEnvOrDefault(common.EnvONNXLibPath, orDefault(config.Model.ONNXLibPath, common.DefaultONNXLibPath)),
		DataPath:        getEnvOrDefault(common.EnvDataPath, config.System.DataPath),
		FetchTimeout:    getDurationOrDefault(common.EnvFetchTimeout, fetchTimeout),
		FetchRetries:    getIntFromEnvOrConfig(common.EnvFetchRetries, config.Fetch.Retries, common.DefaultFetchRetries),
		FetchRetryWait:  getDurationOrDefault(common.EnvFetchRetryWait, retryWait),
		PredictTimeout:  getDurationOrDefault(common.EnvPredictTimeout, predictTimeout),
		CacheSize:       getIntFromEnvOrConfig(common.EnvCacheSize, config.Prediction.CacheSize, common.DefaultCacheSize),
		CacheTTL:        getDurationOrDefault(common.EnvCacheTTL, cacheTTL),
		LogLevel:        getEnvOrDefault(common.EnvLogLevel, orDefault(config.System.LogLevel, common.DefaultLogLevel)),
		LogFormat:       getEnvOrDefault(common.EnvLogFormat, orDefault(config.System.LogFormat, common.DefaultLogFormat)),
		LogFile:         getEnvOrDefault(common.EnvLogFile, config.System.LogFile),
	}

	// Validate configuration
	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func loadFromEnv() (Settings, error) {
	settings := Settings{
		HTTPPort:        getIntOrDefault(common.EnvHTTPPort, common.DefaultHTTPPort),
		ModelServerPort: getIntOrDefault(common.EnvModelServerPort, 0), // optional
		ModelSource:     getEnvOrDefault(common.EnvModelSource, common.DefaultModelSource),
		ModelFileID:     getEnvOrDefault(common.EnvModelFileID, common.DefaultModelFileID),
		DriveBaseURL:    getEnvOrDefault(common.EnvDriveBaseURL, common.DefaultDriveBaseURL),
		ModelURL:        os.Getenv(common.EnvModelURL),
		ModelPath:       getEnvOrDefault(common.EnvModelPath, common.DefaultModelPath),
		ModelFormat:     getEnvOrDefault(common.EnvModelFormat, common.DefaultModelFormat),
		PredictURL:      os.Getenv(common.EnvPredictURL),
		ONNXLibPath:     getEnvOrDefault(common.EnvONNXLibPath, common.DefaultONNXLibPath),
		DataPath:        os.Getenv(common.EnvDataPath), // optional
		FetchTimeout:    getDurationOrDefault(common.EnvFetchTimeout, 60*time.Second),
		FetchRetries:    getIntOrDefault(common.EnvFetchRetries, common.DefaultFetchRetries),
		FetchRetryWait:  getDurationOrDefault(common.EnvFetchRetryWait, 2*time.Second),
		PredictTimeout:  getDurationOrDefault(common.EnvPredictTimeout, 5*time.Second),
		CacheSize:       getIntOrDefault(common.EnvCacheSize, common.DefaultCacheSize),
		CacheTTL:        getDurationOrDefault(common.EnvCacheTTL, 10*time.Minute),
		LogLevel:        getEnvOrDefault(common.EnvLogLevel, common.DefaultLogLevel),
		LogFormat:       getEnvOrDefault(common.EnvLogFormat, common.DefaultLogFormat),
		LogFile:         os.Getenv(common.EnvLogFile),
	}

	// Validate configuration
	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

// ModelKey identifies the configured artifact in the local artifact cache.
func (s *Settings) ModelKey() string {
	switch s.ModelSource {
	case common.SourceDrive:
		return "drive:" + s.ModelFileID
	case common.SourceURL:
		return "url:" + s.ModelURL
	case common.SourceFile:
		return "file:" + s.ModelPath
	default:
		return s.ModelSource
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func orDefault(v, defaultValue string) string {
	if v != "" {
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

// validateSettings performs comprehensive validation of configuration values
func validateSettings(settings *Settings) error {
	// Validate ports
	if settings.HTTPPort < common.MinPort || settings.HTTPPort > common.MaxPort {
		return fmt.Errorf("HTTP port must be between %d and %d, got %d", common.MinPort, common.MaxPort, settings.HTTPPort)
	}
	if settings.ModelServerPort != 0 {
		if settings.ModelServerPort < common.MinPort || settings.ModelServerPort > common.MaxPort {
			return fmt.Errorf("model server port must be between %d and %d, got %d", common.MinPort, common.MaxPort, settings.ModelServerPort)
		}
		if settings.ModelServerPort == settings.HTTPPort {
			return fmt.Errorf("model server port must differ from HTTP port %d", settings.HTTPPort)
		}
	}

	// Validate model source
	switch settings.ModelSource {
	case common.SourceDrive:
		if settings.ModelFileID == "" {
			return errors.New(common.ErrMsgFileIDRequired)
		}
		if !isHTTPURL(settings.DriveBaseURL) {
			return fmt.Errorf("drive base URL must be an http(s) URL, got %q", settings.DriveBaseURL)
		}
	case common.SourceURL:
		if settings.ModelURL == "" {
			return errors.New(common.ErrMsgModelURLRequired)
		}
		if !isHTTPURL(settings.ModelURL) {
			return fmt.Errorf("model URL must be an http(s) URL, got %q", settings.ModelURL)
		}
	case common.SourceFile:
		if settings.ModelPath == "" {
			return errors.New(common.ErrMsgModelPathRequired)
		}
	case common.SourceRemote:
		if settings.PredictURL == "" {
			return errors.New(common.ErrMsgPredictURLRequired)
		}
		if !isHTTPURL(settings.PredictURL) {
			return fmt.Errorf("predict URL must be an http(s) URL, got %q", settings.PredictURL)
		}
	default:
		return fmt.Errorf("unknown model source %q (want drive, url, file or remote)", settings.ModelSource)
	}

	// Validate model format
	if settings.ModelSource != common.SourceRemote {
		switch settings.ModelFormat {
		case common.FormatEnsemble, common.FormatONNX:
		default:
			return fmt.Errorf("unknown model format %q (want ensemble or onnx)", settings.ModelFormat)
		}
	}

	// Validate time durations
	if settings.FetchTimeout < time.Second || settings.FetchTimeout > 10*time.Minute {
		return fmt.Errorf("fetch timeout must be between 1s and 10m, got %v", settings.FetchTimeout)
	}
	if settings.FetchRetryWait < 0 || settings.FetchRetryWait > time.Minute {
		return fmt.Errorf("fetch retry wait must be between 0 and 1m, got %v", settings.FetchRetryWait)
	}
	if settings.PredictTimeout < 100*time.Millisecond || settings.PredictTimeout > time.Minute {
		return fmt.Errorf("predict timeout must be between 100ms and 1m, got %v", settings.PredictTimeout)
	}

	// Validate integer values
	if settings.FetchRetries < 0 || settings.FetchRetries > common.MaxFetchRetries {
		return fmt.Errorf("fetch retries must be between 0 and %d, got %d", common.MaxFetchRetries, settings.FetchRetries)
	}
	if settings.CacheSize < 0 || settings.CacheSize > common.MaxCacheSize {
		return fmt.Errorf("prediction cache size must be between 0 and %d, got %d", common.MaxCacheSize, settings.CacheSize)
	}
	if settings.CacheSize > 0 && settings.CacheTTL <= 0 {
		return fmt.Errorf("prediction cache TTL must be positive when the cache is enabled, got %v", settings.CacheTTL)
	}

	// Validate logging
	switch strings.ToLower(settings.LogFormat) {
	case "json", "console":
	default:
		return fmt.Errorf("log format must be json or console, got %q", settings.LogFormat)
	}

	return nil
}

func isHTTPURL(v string) bool {
	return strings.HasPrefix(v, "http://") || strings.HasPrefix(v, "https://")
}
