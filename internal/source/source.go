// Package source adapts step sensors to a single read interface.
package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/sadopc/stride/internal/config"
)

// ErrUnavailable is returned by Open when the device has no step sensor.
var ErrUnavailable = errors.New("step source unavailable")

// Kind says how a source's readings are anchored.
type Kind int

const (
	// Cumulative readings count from an arbitrary origin such as boot.
	Cumulative Kind = iota
	// SinceMidnight readings already count from local midnight.
	SinceMidnight
)

func (k Kind) String() string {
	if k == SinceMidnight {
		return "since_midnight"
	}
	return "cumulative"
}

// Source produces raw step readings.
type Source interface {
	Kind() Kind
	Open(ctx context.Context) error
	Read(ctx context.Context) (int64, error)
	Close() error
}

// New returns the source selected by cfg.
func New(cfg config.SourceConfig) (Source, error) {
	switch cfg.Kind {
	case config.SourceSimulated, "":
		return NewSimulated(cfg.Seed, cfg.Cadence), nil
	case config.SourceCounterFile:
		return &CounterFile{Path: cfg.Path, Anchor: Cumulative}, nil
	case config.SourceSinceMidnight:
		return &CounterFile{Path: cfg.Path, Anchor: SinceMidnight}, nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", cfg.Kind)
	}
}
