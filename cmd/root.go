package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/issuetracker/internal/issues"
	"github.com/joescharf/issuetracker/internal/logging"
	"github.com/joescharf/issuetracker/internal/output"
	"github.com/joescharf/issuetracker/internal/store"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui        *output.UI
	logger    = zerolog.Nop()
	dataStore store.Store

	verbose bool
	dryRun  bool
)

var rootCmd = &cobra.Command{
	Use:   "issuetracker",
	Short: "Issue Tracker - per-project issue records over HTTP, MCP and the CLI",
	Long: `issuetracker stores issues grouped by project name and serves them
through a JSON API, an MCP stdio server and this command line.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		closeStore()
	},
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		closeStore()
		reportError(err)
		os.Exit(1)
	}
}

// reportError prints a command failure. Flag parsing errors arrive before
// initDeps has built the UI.
func reportError(err error) {
	if ui == nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return
	}
	ui.Error("%v", err)
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without making changes")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/issuetracker/config.yaml)")
}

func initConfig() {
	configDir, err := configDirFunc()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
		os.Exit(1)
	}

	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("ISSUETRACKER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults(configDir)

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

// setDefaults registers the default value of every config key.
func setDefaults(configDir string) {
	viper.SetDefault("state_dir", configDir)
	viper.SetDefault("store.driver", store.DriverSQLite)
	viper.SetDefault("store.sqlite_path", filepath.Join(configDir, "issues.db"))
	viper.SetDefault("store.postgres_dsn", "")
	viper.SetDefault("store.mongo_uri", "mongodb://localhost:27017")
	viper.SetDefault("store.mongo_database", "issuetracker")
	viper.SetDefault("port", 3000)
	viper.SetDefault("api.strict_status", false)
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", logging.FormatConsole)
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
	ui.DryRun = dryRun

	level := viper.GetString("log.level")
	if verbose {
		level = "debug"
	}
	logger = logging.New(level, viper.GetString("log.format"), os.Stderr)

	// Initialize store lazily, only when commands actually need it.
	// This allows config/version commands to run without a database.
}

func storeConfig() store.Config {
	return store.Config{
		Driver:        viper.GetString("store.driver"),
		SQLitePath:    viper.GetString("store.sqlite_path"),
		PostgresDSN:   viper.GetString("store.postgres_dsn"),
		MongoURI:      viper.GetString("store.mongo_uri"),
		MongoDatabase: viper.GetString("store.mongo_database"),
	}
}

// getStore returns the shared store, opening and migrating it on first call.
func getStore() (store.Store, error) {
	if dataStore != nil {
		return dataStore, nil
	}

	cfg := storeConfig()
	if err := validateStoreConfig(cfg); err != nil {
		return nil, err
	}
	s, err := store.Open(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Driver, err)
	}

	dataStore = s
	if ui != nil {
		ui.VerboseLog("Opened %s store %s", cfg.Driver, storeTarget(cfg))
	}
	return dataStore, nil
}

// storeTarget names what a store config points at without exposing
// credentials, so the Postgres DSN is never printed.
func storeTarget(cfg store.Config) string {
	switch cfg.Driver {
	case store.DriverSQLite:
		return cfg.SQLitePath
	case store.DriverMongo:
		return "database " + cfg.MongoDatabase
	default:
		return ""
	}
}

// getService returns an issue service over the shared store.
func getService() (*issues.Service, error) {
	s, err := getStore()
	if err != nil {
		return nil, err
	}
	return issues.NewService(s, logger), nil
}

func closeStore() {
	if dataStore == nil {
		return
	}
	if err := dataStore.Close(); err != nil {
		logger.Warn().Err(err).Msg("close store")
	}
	dataStore = nil
}
