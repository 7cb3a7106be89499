package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New builds the process logger. In dev it writes a console encoder to
// stderr at debug level; with a log file configured it writes rotated JSON
// at info level.
func New(env, logFile string) *zap.SugaredLogger {
	var core zapcore.Core

	if logFile != "" {
		writer := zapcore.AddSync(&lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    10, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		})
		encoderConfig := zap.NewProductionEncoderConfig()
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		core = zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), writer, zap.InfoLevel)
	} else {
		level := zap.InfoLevel
		if env == "dev" {
			level = zap.DebugLevel
		}
		encoderConfig := zap.NewDevelopmentEncoderConfig()
		core = zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.AddSync(os.Stderr), level)
	}

	return zap.New(core, zap.AddCaller()).Sugar()
}
