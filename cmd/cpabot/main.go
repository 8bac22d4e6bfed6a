package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/m3rciful/cpabot/core/buildinfo"
)

const (
	configEnvVar      = "CONFIG_PATH"
	defaultConfigPath = "config.yaml"
)

var configFile string

func resolveConfigPath() string {
	if configFile != "" {
		return configFile
	}
	if p := os.Getenv(configEnvVar); p != "" {
		return p
	}
	return defaultConfigPath
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "cpabot",
		Short:         "Telegram bot that serves CPA learning material",
		Version:       buildinfo.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (defaults to $CONFIG_PATH or config.yaml)")
	root.AddCommand(newServeCmd(), newMigrateCmd(), newImportCmd(), newStatsCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
