// Package logging provides the message bus the conversion pipeline reports
// through. Three severities with printf payloads: informational progress,
// warnings, and errors.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Bus carries pipeline messages. Long running operations emit
// percent-complete progress as informational messages.
type Bus struct {
	sugar *zap.SugaredLogger
}

// New creates a bus writing human-readable output to stderr.
func New() *Bus {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		MessageKey:     "msg",
		EncodeTime:     zapcore.RFC3339TimeEncoder,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(os.Stderr),
		zapcore.InfoLevel,
	)
	return &Bus{sugar: zap.New(core).Sugar()}
}

// Nop returns a bus that discards everything. Used by tests.
func Nop() *Bus {
	return &Bus{sugar: zap.NewNop().Sugar()}
}

// Messagef emits an informational message.
func (b *Bus) Messagef(template string, args ...any) {
	b.sugar.Infof(template, args...)
}

// Warnf emits a non-fatal warning.
func (b *Bus) Warnf(template string, args ...any) {
	b.sugar.Warnf(template, args...)
}

// Errorf emits an error message. The caller still surfaces the error value
// through its return path; the bus only reports.
func (b *Bus) Errorf(template string, args ...any) {
	b.sugar.Errorf(template, args...)
}

// Progress reports step i of n for the named operation as a percentage.
func (b *Bus) Progress(operation string, i, n int) {
	if n <= 0 {
		return
	}
	b.sugar.Infof("%s\n%d%%", operation, (100*i)/n)
}
