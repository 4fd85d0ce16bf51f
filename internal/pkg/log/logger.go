package log

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// zapLogger is the default implementation of the Logger interface.
// Fields and the component name are accumulated in the wrapper,
// so repeated WithComponent calls don't duplicate the "component" field.
type zapLogger struct {
	core      zapcore.Core
	fields    []zap.Field
	component string
}

func loggerFromZapCore(core zapcore.Core) *zapLogger {
	return &zapLogger{core: core}
}

func (l *zapLogger) Debug(ctx context.Context, message string) {
	l.logMessage(DebugLevel, message)
}

func (l *zapLogger) Info(ctx context.Context, message string) {
	l.logMessage(InfoLevel, message)
}

func (l *zapLogger) Warn(ctx context.Context, message string) {
	l.logMessage(WarnLevel, message)
}

func (l *zapLogger) Error(ctx context.Context, message string) {
	l.logMessage(ErrorLevel, message)
}

func (l *zapLogger) Debugf(ctx context.Context, template string, args ...any) {
	l.logMessage(DebugLevel, fmt.Sprintf(template, args...))
}

func (l *zapLogger) Infof(ctx context.Context, template string, args ...any) {
	l.logMessage(InfoLevel, fmt.Sprintf(template, args...))
}

func (l *zapLogger) Warnf(ctx context.Context, template string, args ...any) {
	l.logMessage(WarnLevel, fmt.Sprintf(template, args...))
}

func (l *zapLogger) Errorf(ctx context.Context, template string, args ...any) {
	l.logMessage(ErrorLevel, fmt.Sprintf(template, args...))
}

func (l *zapLogger) Sync() error {
	return l.core.Sync()
}

func (l *zapLogger) With(attrs ...attribute.KeyValue) Logger {
	clone := *l
	clone.fields = make([]zap.Field, 0, len(l.fields)+len(attrs))
	clone.fields = append(clone.fields, l.fields...)
	for _, attr := range attrs {
		clone.fields = append(clone.fields, zap.Any(string(attr.Key), attr.Value.AsInterface()))
	}
	return &clone
}

func (l *zapLogger) WithComponent(component string) Logger {
	clone := *l
	if l.component != "" {
		component = l.component + "." + component
	}
	clone.component = component
	return &clone
}

func (l *zapLogger) logMessage(level zapcore.Level, message string) {
	entry := zapcore.Entry{Level: level, Time: time.Now(), Message: message}
	if checked := l.core.Check(entry, nil); checked != nil {
		fields := l.fields
		if l.component != "" {
			fields = append(fields[:len(fields):len(fields)], zap.String("component", l.component))
		}
		checked.Write(fields...)
	}
}
