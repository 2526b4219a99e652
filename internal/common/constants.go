package common

// Model source kinds
const (
	SourceDrive  = "drive"
	SourceURL    = "url"
	SourceFile   = "file"
	SourceRemote = "remote"
)

// Model artifact formats
const (
	FormatEnsemble = "ensemble"
	FormatONNX     = "onnx"
)

// Environment variable keys
const (
	EnvConfigFile      = "CONFIG_FILE"
	EnvEnvFile         = "ENV_FILE"
	EnvHTTPPort        = "HTTP_PORT"
	EnvModelServerPort = "MODEL_SERVER_PORT"
	EnvModelSource     = "MODEL_SOURCE"
	EnvModelFileID     = "MODEL_FILE_ID"
	EnvDriveBaseURL    = "DRIVE_BASE_URL"
	EnvModelURL        = "MODEL_URL"
	EnvModelPath       = "MODEL_PATH"
	EnvModelFormat     = "MODEL_FORMAT"
	EnvPredictURL      = "PREDICT_URL"
	EnvONNXLibPath     = "ONNX_LIB_PATH"
	EnvDataPath        = "DATA_PATH"
	EnvFetchTimeout    = "FETCH_TIMEOUT"
	EnvFetchRetries    = "FETCH_RETRIES"
	EnvFetchRetryWait  = "FETCH_RETRY_WAIT"
	EnvPredictTimeout  = "PREDICT_TIMEOUT"
	EnvCacheSize       = "PREDICTION_CACHE_SIZE"
	EnvCacheTTL        = "PREDICTION_CACHE_TTL"
	EnvLogLevel        = "LOG_LEVEL"
	EnvLogFormat       = "LOG_FORMAT"
	EnvLogFile         = "LOG_FILE"
)

// Configuration defaults
const (
	DefaultEnvFile        = ".env"
	DefaultHTTPPort       = 8501
	DefaultModelSource    = SourceDrive
	DefaultModelFileID    = "13AqXvvCcmHNggKDitu-o1HBho12Mgl1N"
	DefaultModelFormat    = FormatEnsemble
	DefaultModelPath      = "models/covertype_ensemble.json"
	DefaultONNXLibPath    = "models/libonnxruntime.so"
	DefaultDriveBaseURL   = "https://drive.google.com/uc"
	DefaultFetchRetries   = 3
	DefaultCacheSize      = 256
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "console"
	DefaultLogMaxSizeMB   = 50
	DefaultLogMaxBackups  = 5
	DefaultLogMaxAgeDays  = 14
	DefaultArtifactDBFile = "forest-cover.db"
)

// Validation constants
const (
	MinPort         = 1024
	MaxPort         = 65535
	MaxFetchRetries = 10
	MaxCacheSize    = 100000
)

// Common error messages
const (
	ErrMsgModelURLRequired   = "MODEL_URL is required when MODEL_SOURCE=url"
	ErrMsgModelPathRequired  = "MODEL_PATH is required when MODEL_SOURCE=file"
	ErrMsgFileIDRequired     = "MODEL_FILE_ID is required when MODEL_SOURCE=drive"
	ErrMsgPredictURLRequired = "PREDICT_URL is required when MODEL_SOURCE=remote"
)
