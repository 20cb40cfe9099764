// Package cmd wires the ledger CLI commands.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"accounting-ledger-service/cmd/ledger/config"
	"accounting-ledger-service/pkg/logger"

	"accounting-ledger-service/internal/storage/gormstore"
)

var (
	cfgFile string
	verbose bool
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Double-entry ledger posting and bank reconciliation tool",
	Long: `Ledger posts business transactions through journal templates into a
double-entry general ledger and reconciles ledger accounts against
imported bank statements.

Examples:
  ledger migrate
  ledger post --template tpl-sales --amount 50000 --date 2024-01-10 --description "Penjualan tunai"
  ledger void TRX-2024-00042 --reason DUPLICATE
  ledger import statement.csv --account acc-bank --bank BCA
  ledger reconcile create <statement-id>
  ledger reconcile auto <reconciliation-id>`,
	Version: getVersionString(),
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().String("db-driver", "", "database driver (sqlite or postgres)")
	rootCmd.PersistentFlags().String("db-dsn", "", "database DSN (file path for sqlite)")

	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("database.driver", rootCmd.PersistentFlags().Lookup("db-driver"))
	viper.BindPFlag("database.dsn", rootCmd.PersistentFlags().Lookup("db-dsn"))
}

// initConfig reads in config file and ENV variables.
func initConfig() {
	config.SetDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading config file: %s\n", err)
			os.Exit(1)
		}
		if viper.GetBool("verbose") {
			fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
		}
	}

	viper.SetEnvPrefix("LEDGER")
	viper.AutomaticEnv()
}

// setup loads the configuration, configures logging, and opens the store.
// Every data-touching subcommand starts here.
func setup() (*config.Config, *gormstore.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	loggerConfig := cfg.LoggerConfig()
	if verbose {
		loggerConfig.Level = logger.DebugLevel
	}
	log, err := logger.NewLogger(loggerConfig)
	if err != nil {
		return nil, nil, err
	}
	logger.SetGlobalLogger(log)

	store, err := gormstore.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, nil, err
	}
	return cfg, store, nil
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
