package cmd

import (
	"OrgVerify/models"
	"OrgVerify/server"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

// MigrateCommand creates or updates the schema and exits.
func MigrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply database migrations",
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			db, err := server.OpenDatabase(cfg.Database)
			if err != nil {
				return err
			}
			if err := models.AutoMigrateAll(db); err != nil {
				return err
			}
			log.Info().Str("driver", cfg.Database.Driver).Msg("migrations applied")
			return nil
		},
	}
}
