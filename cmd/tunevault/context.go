package main

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"tunevault/internal/api"
	"tunevault/internal/config"
	"tunevault/internal/downloader"
	"tunevault/internal/library"
	"tunevault/internal/logging"
	"tunevault/internal/queue"
)

// skipConfigAnnotation marks commands (and their children) that must run
// without a loadable config file.
const skipConfigAnnotation = "skipConfigLoad"

// commandContext carries the persistent flags and the lazily loaded config
// shared by every subcommand of one invocation.
type commandContext struct {
	configArg string
	jsonOut   bool

	load       sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func (c *commandContext) requestedConfigPath() string {
	return strings.TrimSpace(c.configArg)
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.load.Do(func() {
		cfg, resolved, _, err := config.Load(c.requestedConfigPath())
		if err == nil {
			err = cfg.EnsureDirectories()
		}
		if err != nil {
			c.configErr = err
			return
		}
		c.config, c.configPath = cfg, resolved
	})
	return c.config, c.configErr
}

// configValue is for commands that run after PersistentPreRunE already
// surfaced any load error.
func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

func (c *commandContext) JSONMode() bool { return c.jsonOut }

// withStore hands fn the job store plus a queue service backed by the
// library catalog in the same database. No task registry is attached since
// task progress only exists inside the daemon.
func (c *commandContext) withStore(cmd *cobra.Command, fn func(store *queue.Store, svc *api.QueueService) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return fmt.Errorf("open queue store: %w", err)
	}
	defer store.Close()

	catalog, err := library.Open(cmd.Context(), store.DB())
	if err != nil {
		return fmt.Errorf("open library catalog: %w", err)
	}
	svc := api.NewQueueService(store, catalog, nil, nil).
		WithPlaylistExpander(downloader.NewYtDlp(cfg, logging.NewNop()))
	return fn(store, svc)
}

// withLibrary hands fn the library service over the catalog tables.
func (c *commandContext) withLibrary(cmd *cobra.Command, fn func(svc *api.LibraryService) error) error {
	return c.withStore(cmd, func(store *queue.Store, _ *api.QueueService) error {
		catalog, err := library.Open(cmd.Context(), store.DB())
		if err != nil {
			return fmt.Errorf("open library catalog: %w", err)
		}
		return fn(api.NewLibraryService(catalog))
	})
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for ; cmd != nil; cmd = cmd.Parent() {
		if cmd.Annotations[skipConfigAnnotation] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
