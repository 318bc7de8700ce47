package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/openlot/parkd/app"
	"github.com/openlot/parkd/config"
	"github.com/openlot/parkd/infra/logger"
)

var cfgPath string

// version is overridden at build time through -ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "parkd",
	Short: "Parking space allocation service",
	Long: `parkd assigns parking spaces to arriving vehicles, tracks lot
occupancy from sensor feeds and publishes every decision over MQTT.
Run without a subcommand it starts the allocation service.`,
	Version:      version,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "configuration file")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

func run(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("service close: %v", err)
		}
	}()
	return svc.Run(ctx)
}
