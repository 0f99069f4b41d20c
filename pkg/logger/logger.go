package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog.Logger
type Logger struct {
	zerolog.Logger
}

// New creates a new logger instance.
// Development output is human readable and includes debug events.
func New(serviceName string, environment string) *Logger {
	var output io.Writer = os.Stdout
	level := zerolog.InfoLevel

	if environment == "development" {
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		level = zerolog.DebugLevel
	}

	return NewWithWriter(serviceName, output).WithLevel(level)
}

// NewWithWriter creates a JSON logger writing to w
func NewWithWriter(serviceName string, w io.Writer) *Logger {
	logger := zerolog.New(w).
		With().
		Timestamp().
		Str("service", serviceName).
		Logger()

	return &Logger{Logger: logger}
}

// Nop returns a logger that discards everything, used by tests
func Nop() *Logger {
	return &Logger{Logger: zerolog.Nop()}
}

// WithLevel returns a copy of the logger with the minimum level set
func (l *Logger) WithLevel(level zerolog.Level) *Logger {
	return &Logger{Logger: l.Logger.Level(level)}
}

// WithRequestID returns a logger with the request ID attached
func (l *Logger) WithRequestID(requestID string) *Logger {
	return &Logger{
		Logger: l.Logger.With().Str("request_id", requestID).Logger(),
	}
}

// WithUser returns a logger with the authenticated operator attached
func (l *Logger) WithUser(username string) *Logger {
	return &Logger{
		Logger: l.Logger.With().Str("user", username).Logger(),
	}
}

// WithComponent returns a logger with the component name attached
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		Logger: l.Logger.With().Str("component", component).Logger(),
	}
}

// WithCollection returns a logger scoped to a store collection
func (l *Logger) WithCollection(collection string) *Logger {
	return &Logger{
		Logger: l.Logger.With().Str("collection", collection).Logger(),
	}
}

// WithError returns a logger with the error attached
func (l *Logger) WithError(err error) *Logger {
	return &Logger{
		Logger: l.Logger.With().Err(err).Logger(),
	}
}
