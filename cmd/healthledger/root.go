package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"healthledger/core/config"
	"healthledger/core/logger"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "healthledger",
		Short: "healthledger - access-controlled healthcare ledger node",
		Long:  "Run a healthledger node, talk to a running one, or verify an archived chain offline.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v := viper.GetViper()
			if cfgFile != "" {
				v.SetConfigFile(cfgFile)
			} else {
				v.SetConfigFile("config.yaml")
			}
			if err := v.ReadInConfig(); err != nil && cfgFile != "" {
				// An explicit --config must exist; the default file is optional.
				return fmt.Errorf("read config: %w", err)
			}
			config.BindEnv(v)
			if err := config.Load(v); err != nil {
				return err
			}

			cfg := config.Get()
			if err := logger.InitLogger(cfg.Logging.Level, cfg.Logging.Development); err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logger.Sync()
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(demoCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(mineCmd)
	rootCmd.AddCommand(blocksCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(versionCmd)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
