package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// CounterFile reads a decimal step count from a file, the way kernel
// drivers expose pedometer counters under sysfs.
type CounterFile struct {
	Path   string
	Anchor Kind
}

func (c *CounterFile) Kind() Kind { return c.Anchor }

func (c *CounterFile) Open(ctx context.Context) error {
	if _, err := os.Stat(c.Path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s: %w", c.Path, ErrUnavailable)
		}
		return fmt.Errorf("open counter: %w", err)
	}
	_, err := c.Read(ctx)
	return err
}

func (c *CounterFile) Read(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	data, err := os.ReadFile(c.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, fmt.Errorf("%s: %w", c.Path, ErrUnavailable)
		}
		return 0, fmt.Errorf("read counter: %w", err)
	}
	n, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse counter %s: %w", c.Path, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("counter %s is negative: %d", c.Path, n)
	}
	return n, nil
}

func (c *CounterFile) Close() error { return nil }
