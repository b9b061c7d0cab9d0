package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"captioner/internal/config"
	"captioner/internal/logging"
	"captioner/internal/queue"
)

// commandContext carries state shared by subcommands. The config is loaded
// lazily, once, after flags have been parsed.
type commandContext struct {
	configFlag *string
	loadConfig func() (*config.Config, error)
}

func newCommandContext(configFlag *string) *commandContext {
	c := &commandContext{configFlag: configFlag}
	c.loadConfig = sync.OnceValues(func() (*config.Config, error) {
		cfg, _, _, err := config.Load(c.configPath())
		if err != nil {
			return nil, err
		}
		if err := cfg.EnsureDirectories(); err != nil {
			return nil, err
		}
		return cfg, nil
	})
	return c
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	return c.loadConfig()
}

func (c *commandContext) logger(cfg *config.Config) (*slog.Logger, error) {
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return logger, nil
}

// withStore opens the progress store for the duration of fn.
func (c *commandContext) withStore(fn func(*queue.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return fmt.Errorf("open progress store: %w", err)
	}
	defer store.Close()
	return fn(store)
}

// shouldSkipConfig reports whether cmd or any ancestor opts out of the
// config load done in the root pre-run hook.
func shouldSkipConfig(cmd *cobra.Command) bool {
	for ; cmd != nil; cmd = cmd.Parent() {
		if cmd.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
