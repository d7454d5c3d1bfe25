package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jgoulah/dailyusage/internal/config"
	"github.com/jgoulah/dailyusage/internal/database"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	cfgFile  string
	envFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "dailyusage",
	Short: "Summarize meter and device readings into daily first/last values",
	Long: `DailyUsage reads the smart meter table (tuya_zaehler) and the power consumption table
and stores the first and last value of each tracked source per calendar date in DailyUsage.

Database credentials are read from DB_HOST, DB_NAME, DB_USER, DB_PASSWORD and DB_PORT,
optionally loaded from a .env file.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "environment file with DB_* settings")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
}

// getConfigPath returns the config file path
func getConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultConfigPath()
}

// loadConfig loads the configuration file
func loadConfig() (*config.Config, error) {
	return config.Load(getConfigPath())
}

// saveConfig saves the configuration file
func saveConfig(cfg *config.Config) error {
	return config.Save(getConfigPath(), cfg)
}

// openDB opens the database described by the environment
func openDB() (*database.DB, config.DBConfig, error) {
	dbCfg, err := config.LoadEnv(envFile)
	if err != nil {
		return nil, dbCfg, fmt.Errorf("loading database settings: %w", err)
	}

	if dbCfg.Driver == config.DriverSQLite {
		// Ensure directory exists
		dir := filepath.Dir(dbCfg.Path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, dbCfg, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := database.New(dbCfg.Driver, dbCfg.DSN())
	if err != nil {
		return nil, dbCfg, err
	}
	return db, dbCfg, nil
}

// newLogger builds the run logger; debug level switches to the console encoder
func newLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(strings.ToLower(logLevel))
	if err != nil {
		return nil, fmt.Errorf("invalid --log-level %q: %w", logLevel, err)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	if level == zapcore.DebugLevel {
		cfg.Encoding = "console"
		cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	return cfg.Build()
}
