package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dvloznov/payables-dashboard/internal/config"
	"github.com/dvloznov/payables-dashboard/internal/logger"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	envFile string

	cfg *config.Config
	log zerolog.Logger

	rootCmd = &cobra.Command{
		Use:   "dashboard",
		Short: "Corporate card invoice closing dashboard",
		Long: `dashboard loads the accounts-payable postings of the corporate card invoice
from the SQL query service, lets users filter them by account, branch and
accrual period, and exports the result as an Excel workbook.`,
		PersistentPreRunE: initConfig,
		SilenceUsage:      true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./payables.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "console", "log format (console, json)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(checkCmd())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initConfig(cmd *cobra.Command, _ []string) error {
	if err := config.LoadEnvFile(envFile); err != nil {
		return err
	}

	v, err := config.New(cfgFile)
	if err != nil {
		return err
	}
	if err := bindFlags(v, cmd); err != nil {
		return err
	}

	c, err := config.Load(v)
	if err != nil {
		return err
	}

	l, err := logger.NewWithConfig(c.Logging.Level, c.Logging.Format)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}

	cfg, log = c, l
	return nil
}

// bindFlags maps command-line flags onto config keys; set flags win over
// the environment and the config file.
func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	bindings := map[string]string{
		"log-level":  "logging.level",
		"log-format": "logging.format",
		"port":       "server.port",
	}
	for flag, key := range bindings {
		f := cmd.Flags().Lookup(flag)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", flag, err)
		}
	}
	return nil
}
