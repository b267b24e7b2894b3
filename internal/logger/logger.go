package logger

import (
	"os"
	"regexp"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	emailRegex  = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	tokenRegex  = regexp.MustCompile(`eyJ[^\s]+`)
	userIDRegex = regexp.MustCompile(`\buser_id\s*=\s*\S+`)
)

// Logger is a centralized structured logger
type Logger struct {
	out *zap.Logger
}

// New creates a new Logger writing JSON lines to stdout.
// Set LOG_LEVEL=debug to see debug entries.
func New() *Logger {
	level := zapcore.InfoLevel
	if os.Getenv("LOG_LEVEL") == "debug" {
		level = zapcore.DebugLevel
	}
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.MessageKey = "message"
	encCfg.EncodeTime = zapcore.RFC3339TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.Lock(os.Stdout), level)
	return &Logger{out: zap.New(core)}
}

// NewWith wraps an existing zap logger, used by tests to capture output.
func NewWith(z *zap.Logger) *Logger {
	return &Logger{out: z}
}

// Anonymize replaces sensitive information in logs (emails, tokens, IDs)
func Anonymize(s string) string {
	s = emailRegex.ReplaceAllString(s, "[REDACTED_EMAIL]")
	s = tokenRegex.ReplaceAllString(s, "[REDACTED_TOKEN]")
	s = userIDRegex.ReplaceAllString(s, "user_id=[USER_ID]")
	return s
}

// --- Convenient methods ---
func (l *Logger) Info(module, msg string) {
	l.out.Info(Anonymize(msg), zap.String("module", module))
}

func (l *Logger) Debug(module, msg string) {
	l.out.Debug(Anonymize(msg), zap.String("module", module))
}

func (l *Logger) Error(module, msg string, err error) {
	fields := []zap.Field{zap.String("module", module)}
	if err != nil {
		fields = append(fields, zap.String("error", Anonymize(err.Error())))
	}
	l.out.Error(Anonymize(msg), fields...)
}

// Sync flushes buffered entries.
func (l *Logger) Sync() {
	_ = l.out.Sync()
}
