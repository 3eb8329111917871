package gantry

import (
	"os"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger defines the structured logging surface used across the application.
type Logger interface {
	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
	Fatal(msg string, fields ...zap.Field)
}

// gLogger implements the Logger interface using zap for structured logging.
type gLogger struct {
	*zap.Logger
}

func (l *gLogger) Debug(msg string, fields ...zap.Field) { l.Logger.Debug(msg, fields...) }
func (l *gLogger) Info(msg string, fields ...zap.Field)  { l.Logger.Info(msg, fields...) }
func (l *gLogger) Warn(msg string, fields ...zap.Field)  { l.Logger.Warn(msg, fields...) }
func (l *gLogger) Error(msg string, fields ...zap.Field) { l.Logger.Error(msg, fields...) }
func (l *gLogger) Fatal(msg string, fields ...zap.Field) { l.Logger.Fatal(msg, fields...) }

var (
	logInstance Logger
	logMu       sync.Mutex
)

// Log returns the process-wide logger, initializing it on first use from the
// GANTRY_ENV and GANTRY_LOG_FILE environment variables.
func Log() Logger {
	logMu.Lock()
	defer logMu.Unlock()
	if logInstance == nil {
		logInstance = NewLogger(os.Getenv("GANTRY_ENV") == "development", os.Getenv("GANTRY_LOG_FILE"))
	}
	return logInstance
}

// SetLogger replaces the process-wide logger. Intended for tests and for
// hosts that bring their own zap core.
func SetLogger(l Logger) {
	logMu.Lock()
	defer logMu.Unlock()
	logInstance = l
}

// NewLogger builds a zap-backed logger with file rotation and, in dev mode,
// human-readable console output.
func NewLogger(devMode bool, logFile string) Logger {
	if logFile == "" {
		logFile = ".logs/app.log"
	}

	var cores []zapcore.Core

	// Lumberjack handles file rotation
	fileSyncer := zapcore.AddSync(&lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    100, // megabytes
		MaxBackups: 3,
		MaxAge:     30, // days
		Compress:   true,
	})
	fileEncoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	cores = append(cores, zapcore.NewCore(fileEncoder, fileSyncer, zap.DebugLevel))

	if devMode {
		consoleConfig := zap.NewDevelopmentEncoderConfig()
		consoleConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		consoleEncoder := zapcore.NewConsoleEncoder(consoleConfig)
		cores = append(cores, zapcore.NewCore(consoleEncoder, zapcore.AddSync(os.Stdout), zap.DebugLevel))
	} else {
		jsonEncoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
		cores = append(cores, zapcore.NewCore(jsonEncoder, zapcore.AddSync(os.Stdout), zap.InfoLevel))
	}

	core := zapcore.NewTee(cores...)
	return &gLogger{zap.New(core, zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel))}
}

// LogMiddleware logs each request and its response status via the gin context.
func LogMiddleware(c *gin.Context) {
	start := time.Now()
	c.Next()
	Log().Info("HTTP request",
		zap.Int("status", c.Writer.Status()),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.String("ip", c.ClientIP()),
		zap.Duration("duration", time.Since(start)),
	)
}
