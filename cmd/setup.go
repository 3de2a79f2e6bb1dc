package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/tunesync/internal/shared"
	"github.com/urfave/cli/v3"
)

// loadOrCreateConfig loads the config at path, writing the embedded template there first when it does not exist.
func (r *Runner) loadOrCreateConfig(path string) *shared.Config {
	var config *shared.Config
	if _, err := os.Stat(path); err == nil {
		if config, err = shared.LoadConfig(path); err != nil {
			r.logger.Warn("failed to load config, using defaults", "error", err)
			config = shared.DefaultConfig()
		}
		return config
	}

	r.logger.Info("config file not found, creating from template", "path", path)
	if err := shared.CreateConfigFile(path); err != nil {
		r.logger.Warn("failed to create config file, using defaults", "error", err)
		return shared.DefaultConfig()
	}
	r.logger.Info("config file created", "path", path)

	config, err := shared.LoadConfig(path)
	if err != nil {
		r.logger.Warn("failed to load created config, using defaults", "error", err)
		config = shared.DefaultConfig()
	}
	return config
}

// SetupDatabase initializes the snapshot cache and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	config := r.loadOrCreateConfig(cmd.String("config"))

	r.logger.Info("initializing database", "path", config.Database.Path)

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)

	r.logger.Info("running database migrations")
	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	statuses, err := shared.Migrations(db)
	if err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}
	for _, s := range statuses {
		mark := " "
		if s.Applied {
			mark = "✓"
		}
		r.writePlain("%s %04d %s\n", mark, s.Version, s.Name)
	}

	r.logger.Infof("setup complete for database: %v", config.Database.Path)
	return nil
}

// SetupConfig writes the embedded template to --config.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("config")
	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}
	r.writePlain("✓ Config written to %s\n", path)
	return nil
}

// SetupIdentity stores the signed-in user in the config file.
//
// The identity comes from a cURL command copied out of the browser, or from --user and --token. Explicit flags win
// over whatever the cURL command revealed.
func (r *Runner) SetupIdentity(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("config")
	curlCmd := cmd.String("curl")
	curlFile := cmd.String("curl-file")
	user := cmd.String("user")
	token := cmd.String("token")

	if curlCmd != "" && curlFile != "" {
		return fmt.Errorf("%w: cannot specify both --curl and --curl-file", shared.ErrInvalidArgument)
	}

	config := r.loadOrCreateConfig(path)

	var identity *shared.CurlIdentity
	var err error
	switch {
	case curlFile != "":
		if identity, err = shared.ParseCurlFile(curlFile); err != nil {
			return fmt.Errorf("failed to parse cURL file: %w", err)
		}
		r.logger.Info("parsed cURL from file", "file", curlFile)
	case curlCmd != "":
		if identity, err = shared.ParseCurlCommand([]byte(curlCmd)); err != nil {
			return fmt.Errorf("failed to parse cURL command: %w", err)
		}
		r.logger.Info("parsed cURL command")
	case token == "":
		return fmt.Errorf("%w: one of --curl, --curl-file or --token must be provided", shared.ErrMissingArgument)
	}

	if identity != nil {
		identity.Apply(config)
		r.logger.Debug("identity headers", "count", len(identity.Headers))
	}
	if user != "" {
		config.Identity.UserID = user
	}
	if token != "" {
		config.Identity.Token = token
	}
	if config.Identity.UserID == "" {
		return fmt.Errorf("%w: no user id found, pass --user", shared.ErrMissingArgument)
	}

	if err := shared.SaveConfig(path, config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	r.config = config
	r.logger.Info("identity saved", "user", config.Identity.UserID, "path", path)

	r.writePlain("✓ Signed in as %s\n", config.Identity.UserID)
	r.writePlain("Server: %s\n", config.Server.BaseURL)
	r.writePlainln("Next steps:")
	r.writePlain("1. Run 'tunesync setup database' to create the snapshot cache\n")
	r.writePlain("2. Run 'tunesync watch' to see live events\n")
	return nil
}
