package cfg

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"forest-cover/internal/common"
)

func TestLoadFromEnv(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		wantErr  bool
		validate func(t *testing.T, settings Settings)
	}{
		{
			name:    "defaults",
			envVars: map[string]string{},
			wantErr: false,
			validate: func(t *testing.T, settings Settings) {
				if settings.HTTPPort != 8501 {
					t.Errorf("expected default HTTPPort 8501, got %d", settings.HTTPPort)
				}
				if settings.ModelSource != common.SourceDrive {
					t.Errorf("expected default source drive, got %s", settings.ModelSource)
				}
				if settings.ModelFileID != common.DefaultModelFileID {
					t.Errorf("expected default file id, got %s", settings.ModelFileID)
				}
				if settings.ModelFormat != common.FormatEnsemble {
					t.Errorf("expected default format ensemble, got %s", settings.ModelFormat)
				}
				if settings.FetchRetries != 3 {
					t.Errorf("expected default FetchRetries 3, got %d", settings.FetchRetries)
				}
				if settings.PredictTimeout != 5*time.Second {
					t.Errorf("expected default PredictTimeout 5s, got %v", settings.PredictTimeout)
				}
				if settings.DataPath != "" {
					t.Errorf("expected empty DataPath, got %s", settings.DataPath)
				}
			},
		},
		{
			name: "file source with custom settings",
			envVars: map[string]string{
				"MODEL_SOURCE":          "file",
				"MODEL_PATH":            "/srv/models/forest.json",
				"HTTP_PORT":             "9000",
				"MODEL_SERVER_PORT":     "9001",
				"FETCH_TIMEOUT":         "30s",
				"PREDICTION_CACHE_SIZE": "0",
				"LOG_FORMAT":            "json",
			},
			wantErr: false,
			validate: func(t *testing.T, settings Settings) {
				if settings.ModelSource != common.SourceFile {
					t.Errorf("expected file source, got %s", settings.ModelSource)
				}
				if settings.ModelPath != "/srv/models/forest.json" {
					t.Errorf("expected custom ModelPath, got %s", settings.ModelPath)
				}
				if settings.HTTPPort != 9000 || settings.ModelServerPort != 9001 {
					t.Errorf("expected ports 9000/9001, got %d/%d", settings.HTTPPort, settings.ModelServerPort)
				}
				if settings.FetchTimeout != 30*time.Second {
					t.Errorf("expected FetchTimeout 30s, got %v", settings.FetchTimeout)
				}
				if settings.CacheSize != 0 {
					t.Errorf("expected cache disabled, got %d", settings.CacheSize)
				}
			},
		},
		{
			name: "url source without url",
			envVars: map[string]string{
				"MODEL_SOURCE": "url",
			},
			wantErr: true,
		},
		{
			name: "remote source requires predict url",
			envVars: map[string]string{
				"MODEL_SOURCE": "remote",
			},
			wantErr: true,
		},
		{
			name: "unknown source",
			envVars: map[string]string{
				"MODEL_SOURCE": "s3",
			},
			wantErr: true,
		},
		{
			name: "port collision",
			envVars: map[string]string{
				"HTTP_PORT":         "9000",
				"MODEL_SERVER_PORT": "9000",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearTestEnv(t)

			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			settings, err := loadFromEnv()

			if tt.wantErr && err == nil {
				t.Error("expected error but got none")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}

			if !tt.wantErr && tt.validate != nil {
				tt.validate(t, settings)
			}
		})
	}
}

func TestLoadFromYAML(t *testing.T) {
	tests := []struct {
		name         string
		yamlContent  string
		envOverrides map[string]string
		wantErr      bool
		validate     func(t *testing.T, settings Settings)
	}{
		{
			name: "valid YAML config",
			yamlContent: `
server:
  httpPort: 8600
model:
  source: "url"
  url: "https://models.example.com/covertype.json"
  format: "ensemble"
fetch:
  timeout: "45s"
  retries: 5
  retryWait: "500ms"
prediction:
  timeout: "2s"
  cacheSize: 64
  cacheTTL: "1m"
system:
  dataPath: "/var/lib/forest-cover"
  logLevel: "debug"
  logFormat: "json"
`,
			wantErr: false,
			validate: func(t *testing.T, settings Settings) {
				if settings.HTTPPort != 8600 {
					t.Errorf("expected HTTPPort 8600, got %d", settings.HTTPPort)
				}
				if settings.ModelURL != "https://models.example.com/covertype.json" {
					t.Errorf("unexpected ModelURL %s", settings.ModelURL)
				}
				if settings.FetchTimeout != 45*time.Second {
					t.Errorf("expected FetchTimeout 45s, got %v", settings.FetchTimeout)
				}
				if settings.FetchRetries != 5 {
					t.Errorf("expected FetchRetries 5, got %d", settings.FetchRetries)
				}
				if settings.FetchRetryWait != 500*time.Millisecond {
					t.Errorf("expected FetchRetryWait 500ms, got %v", settings.FetchRetryWait)
				}
				if settings.CacheSize != 64 || settings.CacheTTL != time.Minute {
					t.Errorf("expected cache 64/1m, got %d/%v", settings.CacheSize, settings.CacheTTL)
				}
				if settings.DataPath != "/var/lib/forest-cover" {
					t.Errorf("unexpected DataPath %s", settings.DataPath)
				}
				if settings.LogLevel != "debug" {
					t.Errorf("expected LogLevel debug, got %s", settings.LogLevel)
				}
			},
		},
		{
			name: "YAML with env overrides",
			yamlContent: `
model:
  source: "drive"
  fileID: "yaml-file-id"
`,
			envOverrides: map[string]string{
				"MODEL_FILE_ID": "env-file-id",
				"HTTP_PORT":     "8700",
			},
			wantErr: false,
			validate: func(t *testing.T, settings Settings) {
				if settings.ModelFileID != "env-file-id" {
					t.Errorf("expected env override file id, got %s", settings.ModelFileID)
				}
				if settings.HTTPPort != 8700 {
					t.Errorf("expected env override HTTPPort 8700, got %d", settings.HTTPPort)
				}
			},
		},
		{
			name: "YAML with invalid format",
			yamlContent: `
model:
  source: "file"
  path: "model.bin"
  format: "pickle"
`,
			wantErr: true,
		},
		{
			name:        "malformed YAML",
			yamlContent: "model: [unterminated",
			wantErr:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearTestEnv(t)

			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.yamlContent), 0o600); err != nil {
				t.Fatalf("failed to write config: %v", err)
			}

			for key, value := range tt.envOverrides {
				t.Setenv(key, value)
			}

			settings, err := loadFromYAML(path)

			if tt.wantErr && err == nil {
				t.Error("expected error but got none")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}

			if !tt.wantErr && tt.validate != nil {
				tt.validate(t, settings)
			}
		})
	}
}

func TestLoadFromYAML_MissingFile(t *testing.T) {
	clearTestEnv(t)

	_, err := loadFromYAML(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestLoad_EnvFile(t *testing.T) {
	clearTestEnv(t)

	envPath := filepath.Join(t.TempDir(), "test.env")
	content := "MODEL_SOURCE=file\nMODEL_PATH=/from/envfile.json\nHTTP_PORT=8800\n"
	if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write env file: %v", err)
	}
	t.Setenv(common.EnvEnvFile, envPath)
	// Already-set variables take precedence over the file.
	t.Setenv(common.EnvHTTPPort, "8900")
	t.Cleanup(func() {
		os.Unsetenv(common.EnvModelSource)
		os.Unsetenv(common.EnvModelPath)
	})

	settings, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.ModelPath != "/from/envfile.json" {
		t.Errorf("expected ModelPath from env file, got %s", settings.ModelPath)
	}
	if settings.HTTPPort != 8900 {
		t.Errorf("expected process env HTTPPort 8900, got %d", settings.HTTPPort)
	}
}

func TestLoad_MissingExplicitEnvFile(t *testing.T) {
	clearTestEnv(t)
	t.Setenv(common.EnvEnvFile, filepath.Join(t.TempDir(), "nope.env"))

	if _, err := Load(); err == nil {
		t.Error("expected error for missing explicit env file")
	}
}

func TestSettings_ModelKey(t *testing.T) {
	s := Settings{ModelSource: common.SourceDrive, ModelFileID: "abc"}
	if got := s.ModelKey(); got != "drive:abc" {
		t.Errorf("expected drive:abc, got %s", got)
	}
	s = Settings{ModelSource: common.SourceURL, ModelURL: "https://x/y"}
	if got := s.ModelKey(); got != "url:https://x/y" {
		t.Errorf("expected url key, got %s", got)
	}
}

func TestValidateSettings_Ranges(t *testing.T) {
	valid := func() *Settings {
		return &Settings{
			HTTPPort:       8501,
			ModelSource:    common.SourceFile,
			ModelPath:      "model.json",
			ModelFormat:    common.FormatEnsemble,
			FetchTimeout:   time.Minute,
			FetchRetries:   3,
			FetchRetryWait: time.Second,
			PredictTimeout: 5 * time.Second,
			CacheSize:      10,
			CacheTTL:       time.Minute,
			LogFormat:      "console",
		}
	}

	if err := validateSettings(valid()); err != nil {
		t.Fatalf("expected valid settings, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(s *Settings)
	}{
		{"low port", func(s *Settings) { s.HTTPPort = 80 }},
		{"fetch timeout too short", func(s *Settings) { s.FetchTimeout = 10 * time.Millisecond }},
		{"negative retries", func(s *Settings) { s.FetchRetries = -1 }},
		{"too many retries", func(s *Settings) { s.FetchRetries = 50 }},
		{"predict timeout too long", func(s *Settings) { s.PredictTimeout = time.Hour }},
		{"cache without ttl", func(s *Settings) { s.CacheTTL = 0 }},
		{"bad log format", func(s *Settings) { s.LogFormat = "xml" }},
		{"bad url", func(s *Settings) { s.ModelSource = common.SourceURL; s.ModelURL = "ftp://x" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid()
			tt.mutate(s)
			if err := validateSettings(s); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func clearTestEnv(t *testing.T) {
	envVars := []string{
		common.EnvConfigFile, common.EnvEnvFile, common.EnvHTTPPort, common.EnvModelServerPort,
		common.EnvModelSource, common.EnvModelFileID, common.EnvDriveBaseURL, common.EnvModelURL,
		common.EnvModelPath, common.EnvModelFormat, common.EnvPredictURL, common.EnvONNXLibPath,
		common.EnvDataPath, common.EnvFetchTimeout, common.EnvFetchRetries, common.EnvFetchRetryWait,
		common.EnvPredictTimeout, common.EnvCacheSize, common.EnvCacheTTL, common.EnvLogLevel,
		common.EnvLogFormat, common.EnvLogFile,
	}

	for _, env := range envVars {
		if val := os.Getenv(env); val != "" {
			t.Setenv(env, "")
		}
	}
}
