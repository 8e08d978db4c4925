// Package logging builds the zap logger every subsystem in the shell
// core takes as a dependency, adapted from the teacher's
// utils.InitializeLogger: level from an env var, console encoding in
// development, JSON in production, with lumberjack rotation on top of
// whatever file the caller points it at.
package logging

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures New. LogFile defaults to "wrensh.log" in the
// current directory when empty.
type Options struct {
	Level   string // debug/info/warn/error/dpanic/panic/fatal
	Env     string // "prod" selects JSON-only output
	LogFile string
}

func levelFromString(s string) zapcore.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zap.DebugLevel
	case "warn":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	case "dpanic":
		return zap.DPanicLevel
	case "panic":
		return zap.PanicLevel
	case "fatal":
		return zap.FatalLevel
	default:
		return zap.InfoLevel
	}
}

// New builds a *zap.Logger per Options. It never returns an error: a
// bad log file path degrades to stdout-only logging rather than
// aborting startup, since logging failures must not prevent the shell
// from running.
func New(opts Options) *zap.Logger {
	level := levelFromString(opts.Level)

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	prod := strings.ToLower(opts.Env) == "prod"
	var encoder zapcore.Encoder
	if prod {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	logFile := opts.LogFile
	if logFile == "" {
		logFile = "wrensh.log"
	}
	rotator := &lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}

	var writeSyncer zapcore.WriteSyncer
	if prod {
		writeSyncer = zapcore.AddSync(rotator)
	} else {
		writeSyncer = zapcore.NewMultiWriteSyncer(zapcore.AddSync(os.Stdout), zapcore.AddSync(rotator))
	}

	core := zapcore.NewCore(encoder, writeSyncer, level)
	return zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
}

// NewNop returns a logger that discards everything, for callers that
// don't need structured logging overhead.
func NewNop() *zap.Logger { return zap.NewNop() }
