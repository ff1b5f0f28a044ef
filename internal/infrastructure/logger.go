package infrastructure

import (
	"fmt"
	"os"
	"path/filepath"

	waLog "go.mau.fi/whatsmeow/util/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// InitLogger builds the process-wide zap logger and installs it as the global.
func InitLogger(cfg *Config) *zap.Logger {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level.SetLevel(zap.InfoLevel)
	}

	var encoder zapcore.Encoder
	if cfg.IsProduction() {
		encCfg := zap.NewProductionEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg := zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	cores := []zapcore.Core{zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), level)}
	if cfg.LogFileEnabled {
		_ = os.MkdirAll(cfg.LogDir, 0o755)
		fileEncoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
		writer := &lumberjack.Logger{
			Filename:   filepath.Join(cfg.LogDir, "app.log"),
			MaxSize:    64,
			MaxAge:     14,
			MaxBackups: 7,
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(fileEncoder, zapcore.AddSync(writer), level))
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	zap.ReplaceGlobals(logger)
	return logger
}

// waLogger adapts whatsmeow's logger interface onto zap.
type waLogger struct {
	sugar  *zap.SugaredLogger
	module string
}

// NewWALogger returns a whatsmeow logger writing through zap.
func NewWALogger(module string) waLog.Logger {
	return &waLogger{sugar: zap.S().Named(module), module: module}
}

func (l *waLogger) Warnf(msg string, args ...interface{})  { l.sugar.Warnf(msg, args...) }
func (l *waLogger) Errorf(msg string, args ...interface{}) { l.sugar.Errorf(msg, args...) }
func (l *waLogger) Infof(msg string, args ...interface{})  { l.sugar.Infof(msg, args...) }
func (l *waLogger) Debugf(msg string, args ...interface{}) { l.sugar.Debugf(msg, args...) }

func (l *waLogger) Sub(module string) waLog.Logger {
	return &waLogger{sugar: l.sugar.Named(module), module: fmt.Sprintf("%s/%s", l.module, module)}
}
