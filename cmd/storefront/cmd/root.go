package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/bugisthegod/techmart-storefront/internal/storefront"
	"github.com/bugisthegod/techmart-storefront/pkg/config"
	"github.com/bugisthegod/techmart-storefront/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:   "storefront",
	Short: "techmart storefront client",
	Long: `A command line storefront for the techmart backend.
It keeps the signed in session and cart in local storage between runs.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the environment is read")
}

// open loads configuration and returns a started storefront.
func open(ctx context.Context, cmd *cobra.Command) (*storefront.Storefront, error) {
	logg := logger.New(logger.Options{ServiceName: "storefront"})
	if err := godotenv.Load(envFile); err != nil {
		logg.Debug(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logg = logger.FromConfig("storefront", cfg.App)

	sf, err := storefront.New(ctx, storefront.Params{
		Config: cfg,
		Logger: logg,
		OnSessionExpired: func(_ context.Context, msg string) {
			fmt.Fprintln(cmd.ErrOrStderr(), msg)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("starting storefront: %w", err)
	}
	sf.Start(ctx)
	return sf, nil
}

// run opens the storefront, runs fn and closes it again.
func run(cmd *cobra.Command, fn func(ctx context.Context, sf *storefront.Storefront) (any, error)) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	sf, err := open(ctx, cmd)
	if err != nil {
		return err
	}
	defer sf.Close()

	out, err := fn(ctx, sf)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), out)
}

func printJSON(w io.Writer, v any) error {
	if v == nil {
		return nil
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outcome fails the command when an operation reports failure.
func outcome(success bool, message string, data any) (any, error) {
	if !success {
		return nil, errors.New(message)
	}
	if data == nil {
		return map[string]string{"message": message}, nil
	}
	return data, nil
}
