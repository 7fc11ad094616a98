package hsm

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the structured logger the kernel writes dispatch and fault
// events to. It wraps go.uber.org/zap, grounded on the retrieved corpus's
// pkg/logger/zap_logger.go: a small console-encoded core over a supplied
// io.Writer with a runtime-adjustable level.
type Logger struct {
	l     *zap.Logger
	level *zap.AtomicLevel
}

// NewLogger builds a Logger writing encoded entries to out at the given
// level. A nil out defaults to os.Stderr.
func NewLogger(out io.Writer, level zapcore.Level) *Logger {
	if out == nil {
		out = os.Stderr
	}
	atomicLevel := zap.NewAtomicLevelAt(level)
	core := zapcore.NewCore(encoder(), zapcore.AddSync(out), atomicLevel)
	return &Logger{l: zap.New(core), level: &atomicLevel}
}

// NewNopLogger builds a Logger that discards everything. It is the default
// when no Logger is supplied in Config, so the dispatcher always has one to
// call without nil checks on every line.
func NewNopLogger() *Logger {
	return &Logger{l: zap.NewNop()}
}

func encoder() zapcore.Encoder {
	return zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  zapcore.OmitKey,
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
	})
}

// SetLevel adjusts the logger's level at runtime.
func (lg *Logger) SetLevel(level zapcore.Level) {
	if lg == nil || lg.level == nil {
		return
	}
	lg.level.SetLevel(level)
}

func (lg *Logger) debug(msg string, fields ...zap.Field) {
	if lg == nil {
		return
	}
	lg.l.Debug(msg, fields...)
}

func (lg *Logger) info(msg string, fields ...zap.Field) {
	if lg == nil {
		return
	}
	lg.l.Info(msg, fields...)
}

func (lg *Logger) error(msg string, fields ...zap.Field) {
	if lg == nil {
		return
	}
	lg.l.Error(msg, fields...)
}
