package logger

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const serviceName = "kpi-service"

// New builds the service logger. Development gets a console writer, every
// other environment gets JSON on stdout.
func New(environment, level string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	var base zerolog.Logger
	if environment == "development" {
		base = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	} else {
		base = zerolog.New(os.Stdout)
	}

	return base.Level(parseLevel(level)).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("env", environment).
		Logger()
}

func parseLevel(level string) zerolog.Level {
	parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		return zerolog.InfoLevel
	}
	return parsed
}

// SafeValue makes a caller-supplied value safe to put in a log line: control
// characters become '?' and the result is capped at 64 runes.
func SafeValue(raw string) string {
	const limit = 64
	var b strings.Builder
	n := 0
	for _, r := range raw {
		if n == limit {
			b.WriteString("...")
			break
		}
		if r < 0x20 || r == 0x7f || (r >= 0x80 && r < 0xa0) || r == '\u2028' || r == '\u2029' {
			r = '?'
		}
		b.WriteRune(r)
		n++
	}
	return b.String()
}
