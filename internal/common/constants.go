package common

// Environment variable keys
const (
	EnvConfigFile     = "CONFIG_FILE"
	EnvModelPath      = "MODEL_PATH"
	EnvModelBackend   = "MODEL_BACKEND"
	EnvModelURL       = "MODEL_URL"
	EnvPythonPath     = "PYTHON_PATH"
	EnvPredictTimeout = "PREDICT_TIMEOUT"
	EnvHTTPPort       = "HTTP_PORT"
	EnvDataPath       = "DATA_PATH"
	EnvHistoryLimit   = "HISTORY_LIMIT"
	EnvLogLevel       = "LOG_LEVEL"
	EnvLogPretty      = "LOG_PRETTY"
	EnvLogFile        = "LOG_FILE"
	EnvDriftWindow    = "DRIFT_WINDOW"
	EnvAccessible     = "ACCESSIBLE"
)

// Model backends
const (
	BackendAuto   = "auto"
	BackendNative = "native"
	BackendPython = "python"
	BackendRemote = "remote"
)

// Configuration defaults
const (
	DefaultModelPath      = "models/lr_final_for_diabetes.json"
	DefaultModelBackend   = BackendAuto
	DefaultHTTPPort       = 8501
	DefaultHistoryLimit   = 50
	DefaultLogLevel       = "info"
	DefaultPredictTimeout = "5s"
	DefaultDriftWindow    = 200
	DefaultFormLogFile    = "diabetes-form.log"
)

// Validation constants
const (
	MinHTTPPort     = 1024
	MaxHTTPPort     = 65535
	MaxHistoryLimit = 1000
	MaxDriftWindow  = 10000
)

// Prediction labels
const (
	LabelPositive = "Diabetes"
	LabelNegative = "No Diabetes"
)

// Common error messages
const (
	ErrMsgModelPathRequired = "model path is required"
	ErrMsgModelURLRequired  = "model URL is required for the remote backend"
)
