package logging

import (
	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a JSON production logger and a function flushing buffered entries.
func New() (logr.Logger, func(), error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	cfg.EncoderConfig.FunctionKey = "func"

	zapLog, err := cfg.Build(zap.AddCaller())
	if err != nil {
		return logr.Discard(), func() {}, err
	}

	return zapr.NewLogger(zapLog), func() { _ = zapLog.Sync() }, nil
}
