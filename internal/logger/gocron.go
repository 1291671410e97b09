package logger

import (
	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
)

// gocronLogger implements gocron.Logger on top of zerolog.
type gocronLogger struct {
	log zerolog.Logger
}

// NewGocronLogger returns a gocron.Logger that forwards to log.
//
//nolint:ireturn // Interface return is required by gocron's API contract
func NewGocronLogger(log zerolog.Logger) gocron.Logger {
	return &gocronLogger{log: log.With().Str("component", "gocron").Logger()}
}

func (l *gocronLogger) Debug(msg string, args ...any) {
	l.log.Debug().Fields(pairs(args)).Msg(msg)
}

func (l *gocronLogger) Error(msg string, args ...any) {
	l.log.Error().Fields(pairs(args)).Msg(msg)
}

func (l *gocronLogger) Info(msg string, args ...any) {
	l.log.Info().Fields(pairs(args)).Msg(msg)
}

func (l *gocronLogger) Warn(msg string, args ...any) {
	l.log.Warn().Fields(pairs(args)).Msg(msg)
}

// pairs turns gocron's alternating key/value args into a field map.
// A trailing key without a value is kept under "extra".
func pairs(args []any) map[string]any {
	fields := make(map[string]any, len(args)/2+1)
	for i := 0; i < len(args); i += 2 {
		if i+1 >= len(args) {
			fields["extra"] = args[i]
			break
		}
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		if err, isErr := args[i+1].(error); isErr {
			fields[key] = err.Error()
			continue
		}
		fields[key] = args[i+1]
	}
	return fields
}
