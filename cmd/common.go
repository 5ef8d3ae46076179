package cmd

import (
	"OrgVerify/config"
	"OrgVerify/logging"

	"github.com/urfave/cli/v2"
)

// loadConfig reads, validates and applies the logging section.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	logging.Setup(cfg.Log)
	return cfg, nil
}
