package logger

import (
	"go.uber.org/zap"

	"github.com/dwarvesf/mint-relayer/internal/types/environments"
)

type Logger struct {
	wrappedLogger *zap.Logger
	baseFields    map[string]string
}

func New(env environments.Environment) *Logger {
	zapLogger, err := configFor(env).Build()
	if err != nil {
		panic(err)
	}

	return &Logger{
		wrappedLogger: zapLogger,
	}
}

// With returns a child logger that attaches fields to every entry.
func (l *Logger) With(fields map[string]string) *Logger {
	merged := make(map[string]string, len(l.baseFields)+len(fields))
	for k, v := range l.baseFields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}

	return &Logger{
		wrappedLogger: l.wrappedLogger,
		baseFields:    merged,
	}
}

func (l *Logger) Debug(msg string, inputFields ...map[string]string) {
	l.wrappedLogger.Debug(msg, l.fields(inputFields)...)
}

func (l *Logger) Info(msg string, inputFields ...map[string]string) {
	l.wrappedLogger.Info(msg, l.fields(inputFields)...)
}

func (l *Logger) Warn(msg string, inputFields ...map[string]string) {
	l.wrappedLogger.Warn(msg, l.fields(inputFields)...)
}

func (l *Logger) Error(msg string, inputFields ...map[string]string) {
	l.wrappedLogger.Error(msg, l.fields(inputFields)...)
}

func (l *Logger) Fatal(msg string, inputFields ...map[string]string) {
	l.wrappedLogger.Fatal(msg, l.fields(inputFields)...)
}

func (l *Logger) Sync() error {
	return l.wrappedLogger.Sync()
}

func (l *Logger) fields(inputFields []map[string]string) []zap.Field {
	fields := transformStrMapToFields(l.baseFields)
	if len(inputFields) > 0 {
		fields = append(fields, transformStrMapToFields(inputFields[0])...)
	}
	return fields
}

func transformStrMapToFields(strMap map[string]string) []zap.Field {
	fields := []zap.Field{}
	for k, v := range strMap {
		fields = append(fields, zap.String(k, v))
	}

	return fields
}
