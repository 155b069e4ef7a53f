package cmd

import (
	"context"
	"fmt"
	"strings"

	"utility-ledger/cmd/ledger/config"
	"utility-ledger/pkg/errors"
	"utility-ledger/pkg/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile   string
	verbose   bool
	logLevel  string
	logFormat string
	version   = "dev"
	commit    = "unknown"
	date      = "unknown"

	// configErr holds a config file failure until a command can report it
	configErr error
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Utility account ledger reconciliation tool",
	Long: `Ledger turns the bill and payment history scraped from a utility
portal into billing cycles: each bill with the payments made against it,
newest first.

Snapshots can be read from a JSON or CSV export, or straight from the
scraper's SQLite database.

Examples:
  ledger reconcile --input snapshot.json
  ledger reconcile --db data/scraper.db --output-format json --include-stats
  ledger reconcile --input ledger.csv --output-format xlsx --output-file cycles.xlsx
  ledger changes --db data/scraper.db
  ledger version`,
	Version:           getVersionString(),
	SilenceErrors:     true,
	SilenceUsage:      true,
	PersistentPreRunE: prepareCommand,
}

// Execute runs the CLI and returns the process exit code
func Execute(ctx context.Context) int {
	err := rootCmd.ExecuteContext(ctx)
	return NewCLIErrorHandler(rootCmd.ErrOrStderr()).HandleError(err)
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format: text, json")
}

// initConfig reads in config file and ENV variables.
func initConfig() {
	configErr = nil

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			configErr = errors.ConfigurationError(errors.CodeInvalidConfig, "config", cfgFile, err).
				WithSuggestion("check the config file path and syntax")
		}
	}

	viper.SetEnvPrefix("LEDGER")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// prepareCommand binds the running command's flags to viper and installs
// the configured logger. Binding per command lets subcommands share flag
// names such as --db.
func prepareCommand(cmd *cobra.Command, args []string) error {
	if configErr != nil {
		return configErr
	}

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return errors.InternalError(errors.CodeUnexpectedError, "flag_binding", err)
	}

	logConfig, err := config.CreateLoggerConfig(
		viper.GetString("log-level"),
		viper.GetString("log-format"),
		viper.GetBool("verbose"),
		cmd.ErrOrStderr(),
	)
	if err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "log-level", viper.GetString("log-level"), err)
	}

	log, err := logger.NewLogger(logConfig)
	if err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "logger", logConfig, err)
	}
	logger.SetGlobalLogger(log)

	if cfgFile != "" {
		log.WithField("config_file", viper.ConfigFileUsed()).Debug("Using config file")
	}
	return nil
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = getVersionString()
}

func getVersionString() string {
	if version == "dev" {
		return fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
	}
	return version
}

// versionCmd prints the build information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "ledger %s\n", getVersionString())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
