package main

import (
	"context"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/vytor/bunpo/internal/config"
	"github.com/vytor/bunpo/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:           "bunpoctl",
	Short:         "Maintenance commands for the bunpo grammar collection",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.SetDefault(logger.New(
			logger.WithLevel(logger.ParseLevel(viper.GetString("log_level"))),
			logger.WithOutput(cmd.ErrOrStderr()),
		))
	},
}

func init() {
	viper.SetEnvPrefix("BUNPO")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	rootCmd.PersistentFlags().String("log-level", "WARN", "log level (DEBUG, INFO, WARN, ERROR)")
	bindFlagToViper("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func bindFlagToViper(key string, flag *pflag.Flag) {
	if flag == nil {
		return
	}
	cobra.CheckErr(viper.BindPFlag(key, flag))
}

// loadConfig reads the server configuration and validates it.
func loadConfig() (config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		logger.Error("%v", err)
		rootCmd.PrintErrln("Error:", err)
		os.Exit(1)
	}
}
