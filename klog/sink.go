package klog

import (
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// UserLevel tags lines relayed from user space. It sits below every
// regular level and is always enabled.
const UserLevel = zapcore.Level(-2)

// Sink is the kernel console: one line per record, written under a lock
// so concurrent records never interleave. Each line reads
//
//	secs:millis LEVEL source: message
//
// where the timestamp is measured from the sink's boot time.
type Sink struct {
	boot   time.Time
	level  zap.AtomicLevel
	logger *zap.Logger
}

// NewSink creates a sink writing to w. Records below level are dropped,
// except user records.
func NewSink(w io.Writer, level zapcore.Level) *Sink {
	s := &Sink{
		boot:  time.Now(),
		level: zap.NewAtomicLevelAt(level),
	}

	encCfg := zapcore.EncoderConfig{
		TimeKey:          "t",
		LevelKey:         "l",
		NameKey:          "n",
		MessageKey:       "m",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeTime:       s.encodeUptime,
		EncodeLevel:      encodeLevel,
		EncodeName:       encodeSource,
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: " ",
	}
	enabler := zap.LevelEnablerFunc(func(l zapcore.Level) bool {
		return l == UserLevel || s.level.Enabled(l)
	})
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(zapcore.AddSync(w)),
		enabler,
	)
	s.logger = zap.New(core, zap.ErrorOutput(zapcore.AddSync(io.Discard)))
	return s
}

func (s *Sink) encodeUptime(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	ms := t.Sub(s.boot).Milliseconds()
	if ms < 0 {
		ms = 0
	}
	enc.AppendString(fmt.Sprintf("%3d:%03d", ms/1000, ms%1000))
}

func encodeLevel(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	if l == UserLevel {
		enc.AppendString("USER  ")
		return
	}
	enc.AppendString(fmt.Sprintf("%-6s", l.CapitalString()))
}

func encodeSource(name string, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(name + ":")
}

// SetLevel changes the minimum level of kernel records.
func (s *Sink) SetLevel(l zapcore.Level) {
	s.level.SetLevel(l)
}

// Level returns the minimum level of kernel records.
func (s *Sink) Level() zapcore.Level {
	return s.level.Level()
}

// Log writes a kernel record attributed to source.
func (s *Sink) Log(level zapcore.Level, source, msg string) {
	if ce := s.logger.Named(source).Check(level, msg); ce != nil {
		ce.Write()
	}
}

// User writes a record relayed from the user thread named thread.
func (s *Sink) User(thread, msg string) {
	if ce := s.logger.Named(thread).Check(UserLevel, msg); ce != nil {
		ce.Write()
	}
}

// Sync flushes the underlying writer when it supports it.
func (s *Sink) Sync() error {
	return s.logger.Sync()
}
