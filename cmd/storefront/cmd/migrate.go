package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/bugisthegod/techmart-storefront/pkg/config"
	"github.com/bugisthegod/techmart-storefront/pkg/db"
	"github.com/bugisthegod/techmart-storefront/pkg/logger"
	"github.com/bugisthegod/techmart-storefront/pkg/migrate"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the storage schema for the sqlite and postgres drivers",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		_ = godotenv.Load(envFile)
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logg := logger.FromConfig("migrate", cfg.App)

		driver := strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
		dsn := cfg.DB.DSN
		switch driver {
		case config.StorageSQLite:
			dsn = cfg.Storage.Path
		case config.StoragePostgres:
		default:
			return fmt.Errorf("driver %q has no schema to migrate", cfg.Storage.Driver)
		}
		ctx = logg.WithField(ctx, "storage_driver", driver)

		client, err := db.New(ctx, driver, dsn, cfg.DB, logg)
		if err != nil {
			return err
		}
		defer client.Close()
		sqlDB, err := client.SQL()
		if err != nil {
			return err
		}
		if err := migrate.Up(ctx, sqlDB, client.Dialect()); err != nil {
			return err
		}
		version, err := migrate.Version(sqlDB, client.Dialect())
		if err != nil {
			return err
		}
		logg.Info(logg.WithField(ctx, "version", version), "migrate.applied")
		return printJSON(cmd.OutOrStdout(), map[string]int64{"version": version})
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
