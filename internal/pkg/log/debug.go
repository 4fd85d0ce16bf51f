package log

import (
	"bytes"
	"sync"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// debugLogger captures all messages as JSON lines, without timestamps,
// so a test can assert them.
type debugLogger struct {
	*zapLogger
	buffer *safeBuffer
}

type safeBuffer struct {
	lock   sync.Mutex
	buffer bytes.Buffer
}

// NewDebugLogger logs all messages to an in-memory buffer, for tests.
func NewDebugLogger() DebugLogger {
	buffer := &safeBuffer{}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = zapcore.OmitKey
	encoderConfig.MessageKey = "message"

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(buffer), DebugLevel)
	return &debugLogger{zapLogger: loggerFromZapCore(core), buffer: buffer}
}

func (l *debugLogger) Truncate() {
	l.buffer.lock.Lock()
	defer l.buffer.lock.Unlock()
	l.buffer.buffer.Reset()
}

func (l *debugLogger) AllMessages() string {
	l.buffer.lock.Lock()
	defer l.buffer.lock.Unlock()
	return l.buffer.buffer.String()
}

func (l *debugLogger) CompareJSONMessages(expected string) error {
	return CompareJSONMessages(expected, l.AllMessages())
}

func (l *debugLogger) AssertJSONMessages(t assert.TestingT, expected string, msgAndArgs ...any) bool {
	return AssertJSONMessages(t, expected, l.AllMessages(), msgAndArgs...)
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.buffer.Write(p)
}
