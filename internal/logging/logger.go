package logging

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger writes JSON lines to logDir/uptime.log with rotation. An empty
// logDir logs to stderr instead (Lambda, containers).
func NewLogger(logDir, level string) (*zap.Logger, error) {
	lvl := zap.InfoLevel
	if level != "" {
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, err
		}
	}

	var w zapcore.WriteSyncer
	if logDir == "" {
		w = zapcore.Lock(os.Stderr)
	} else {
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return nil, err
		}
		w = zapcore.AddSync(&lumberjack.Logger{
			Filename:   filepath.Join(logDir, "uptime.log"),
			MaxSize:    10, // MB
			MaxBackups: 5,
			MaxAge:     14, // days
			Compress:   true,
		})
	}
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(cfg), w, lvl)
	return zap.New(core, zap.Fields(zap.String("service", "uptimeguard"))), nil
}
