// Package encoding provides small wrapper types so configuration values
// that don't have a natural TOML/flag representation (log levels,
// durations) can still round-trip through text. Grounded on
// libs/config/encoding/encoding.go.
package encoding

import (
	"time"

	"github.com/abitmore/revpop-core/logging"
)

// Duration wraps time.Duration for TOML/flag marshaling.
type Duration struct {
	time.Duration
}

func (d *Duration) Get() time.Duration { return d.Duration }

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d *Duration) UnmarshalFlag(s string) error { return d.UnmarshalText([]byte(s)) }

func (d Duration) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// LogLevel wraps logging.Level for TOML/flag marshaling.
type LogLevel struct {
	Level logging.Level
}

func (l *LogLevel) Get() logging.Level { return l.Level }

func (l *LogLevel) UnmarshalText(text []byte) error {
	var err error
	l.Level, err = logging.ParseLevel(string(text))
	return err
}

func (l *LogLevel) UnmarshalFlag(s string) error { return l.UnmarshalText([]byte(s)) }

func (l LogLevel) MarshalText() ([]byte, error) { return []byte(l.Level.String()), nil }
