// Package envvar names the environment variables vision-explain reads.
package envvar

import (
	"os"
	"strings"
)

const (
	// VisionExplainEnv is the environment variable used to determine the environment
	VisionExplainEnv = "VISION_EXPLAIN_ENV"

	// VisionExplainConfig is the environment variable used to locate the config file
	VisionExplainConfig = "VISION_EXPLAIN_CONFIG"

	// VisionExplainLogLevel is the environment variable used to override the log level
	VisionExplainLogLevel = "VISION_EXPLAIN_LOG_LEVEL"

	// VisionExplainModelPath is the environment variable used to override the model path
	VisionExplainModelPath = "VISION_EXPLAIN_MODEL_PATH"

	// OnnxRuntimeLib is the environment variable pointing at the onnxruntime shared library
	OnnxRuntimeLib = "ONNXRUNTIME_LIB"
)

// Environment is the deployment environment the binary runs in.
type Environment string

const (
	Development Environment = "development"
	Production  Environment = "production"
)

// FromEnv reads the environment from VISION_EXPLAIN_ENV. Anything other than
// "development" (or "dev") is treated as production.
func FromEnv() Environment {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(VisionExplainEnv))) {
	case "development", "dev":
		return Development
	default:
		return Production
	}
}
