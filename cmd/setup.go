package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/trackmatch/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup writes a default config file when none exists and prepares the cache backend.
//
// For the sqlite driver this creates the database and applies every migration.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	path := r.configPath
	if path == "" {
		path = "config.toml"
	}

	if _, err := os.Stat(path); err != nil {
		r.logger.Info("config file not found, creating from template", "path", path)
		if err := shared.CreateConfigFile(path); err != nil {
			return err
		}
		config, err := shared.LoadConfig(path)
		if err != nil {
			return err
		}
		r.config = config
		r.writePlain("✓ Config written to %s\n", path)
	} else {
		r.writePlain("✓ Using existing config %s\n", path)
	}

	r.logger.Info("initializing cache backend", "driver", r.config.Cache.Driver, "path", r.config.Cache.Path)
	if _, err := r.openStore(ctx); err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}

	r.writePlain("✓ Cache ready (%s)\n", r.config.Cache.Driver)
	r.writePlainln("Next steps:")
	r.writePlain("1. Set catalog.url and catalog.token in %s\n", path)
	r.writePlain("2. Run 'trackmatch search \"your song\"' to test the connection\n")
	return nil
}

func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create a config file and initialize the cache backend",
		Action: r.Setup,
	}
}
