package logs

import (
	"context"
	"github.com/rs/zerolog"
	"io"
	"strings"
)

// Logger logger interface
type Logger interface {
	Debug(ctx context.Context, msg string, args ...interface{})
	Info(ctx context.Context, msg string, args ...interface{})
	Warn(ctx context.Context, msg string, args ...interface{})
	Error(ctx context.Context, msg string, args ...interface{})
}

// LogLevel log level
type LogLevel int

const (
	//Debug enable debug or above log output
	Debug LogLevel = 0
	//Info enable info or above log output
	Info LogLevel = 1
	//Warn enable warn or above log output
	Warn LogLevel = 2
	//Error enable error or above log output
	Error LogLevel = 3
)

func (ll LogLevel) String() string {
	if ll == Debug {
		return "DEBUG"
	} else if ll == Info {
		return "INFO"
	} else if ll == Warn {
		return "WARN"
	} else if ll == Error {
		return "ERROR"
	}
	return ""
}

//ParseLevel parse a log level name, default Info
func ParseLevel(name string) LogLevel {
	switch strings.ToUpper(name) {
	case "DEBUG":
		return Debug
	case "WARN":
		return Warn
	case "ERROR":
		return Error
	default:
		return Info
	}
}

func (ll LogLevel) zerologLevel() zerolog.Level {
	switch ll {
	case Debug:
		return zerolog.DebugLevel
	case Warn:
		return zerolog.WarnLevel
	case Error:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

type defaultLogger struct {
	zl zerolog.Logger
}

//NewLogger init a zerolog backed Logger instance
func NewLogger(writer io.Writer, logLevel LogLevel) *defaultLogger {
	out := zerolog.ConsoleWriter{Out: writer, TimeFormat: "2006-01-02 15:04:05.000"}
	zl := zerolog.New(out).
		Level(logLevel.zerologLevel()).
		With().
		Timestamp().
		CallerWithSkipFrameCount(zerolog.CallerSkipFrameCount + 1).
		Logger()
	return &defaultLogger{zl: zl}
}

func (l *defaultLogger) Debug(ctx context.Context, msg string, args ...interface{}) {
	l.zl.Debug().Msgf(msg, args...)
}

func (l *defaultLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	l.zl.Info().Msgf(msg, args...)
}

func (l *defaultLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	l.zl.Warn().Msgf(msg, args...)
}

func (l *defaultLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	l.zl.Error().Msgf(msg, args...)
}
