package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sadopc/stride/internal/api"
	"github.com/sadopc/stride/internal/config"
	"github.com/sadopc/stride/internal/source"
	"github.com/sadopc/stride/internal/store"
)

// loadConfig reads the config file named by --config (or the default path)
// and applies the persistent flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if v, _ := cmd.Flags().GetString("db"); v != "" {
		cfg.DBPath = v
	}
	if v, _ := cmd.Flags().GetString("addr"); v != "" {
		cfg.ControlAddress = v
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		if _, err := config.ParseLevel(v); err != nil {
			return nil, err
		}
		cfg.LogLevel = v
	}
	return cfg, nil
}

func openStore(cfg *config.Config) (*store.Store, error) {
	path := cfg.DBPath
	if path == "" {
		p, err := store.DefaultDBPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	s, err := store.New(path)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", filepath.Base(path), err)
	}
	return s, nil
}

// formatUserError turns common failures into a one-line hint.
func formatUserError(err error) string {
	var apiErr *api.Error
	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return "daemon is not running (start it with `stride run`)"
	case errors.As(err, &apiErr):
		return apiErr.Message
	case errors.Is(err, source.ErrUnavailable):
		return "step source unavailable: " + err.Error()
	case errors.Is(err, os.ErrPermission):
		return "permission denied: " + err.Error()
	}
	return err.Error()
}
