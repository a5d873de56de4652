package config

import (
	"os"

	"go.uber.org/zap"
)

// NewLogger builds the production zap logger writing to outputs.
// LOG_LEVEL overrides the default info level.
func NewLogger(outputs ...string) *zap.SugaredLogger {
	logCfg := zap.NewProductionConfig()
	logCfg.OutputPaths = outputs
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		if al, err := zap.ParseAtomicLevel(lvl); err == nil {
			logCfg.Level = al
		}
	}
	return zap.Must(logCfg.Build()).Sugar()
}
