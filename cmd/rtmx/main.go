// Package main implements the rtmx CLI, a thin collaborator over the
// core: it loads configuration, invokes the store/graph/validation/
// coverage/health/sync surfaces, and prints their results.
//
// Command index:
//   - main.go         - entry point, rootCmd, global flags
//   - cmd_validate.go - validate, fix-reciprocity
//   - cmd_graph.go    - graph stats/cycles/order/critical-path
//   - cmd_health.go   - health suite
//   - cmd_coverage.go - coverage proposal and apply
//   - cmd_sync.go     - offline store bootstrap and queue inspection
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rtmx-ai/rtmx/internal/codec"
	"github.com/rtmx-ai/rtmx/internal/config"
	"github.com/rtmx-ai/rtmx/internal/logging"
	"github.com/rtmx-ai/rtmx/internal/rtm"
)

var (
	configPath   string
	databasePath string
	debugMode    bool
)

var rootCmd = &cobra.Command{
	Use:   "rtmx",
	Short: "Requirements traceability matrix tooling",
	Long: `rtmx maintains a requirements traceability matrix: a schema-validated
tabular store of engineering requirements with typed relations, lifecycle
status, dependency analytics, test coverage transitions, and a replicated
document form for offline collaboration.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logDir := filepath.Join(filepath.Dir(resolveDatabasePath(cfg)), ".rtmx-logs")
		return logging.Initialize(logging.Options{Dir: logDir, Debug: debugMode || cfg.Debug, Level: "debug"})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to .rtmx.yaml (default: search upward)")
	rootCmd.PersistentFlags().StringVarP(&databasePath, "database", "d", "", "path to the RTM database (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable debug logging")
}

func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}

// resolveDatabasePath picks the database location: the --database flag,
// else the config value resolved against the config file's directory,
// else upward discovery of the conventional path.
func resolveDatabasePath(cfg *config.Config) string {
	if databasePath != "" {
		return databasePath
	}
	path := cfg.Database
	if cfg.Path() != "" && !filepath.IsAbs(path) {
		path = filepath.Join(filepath.Dir(cfg.Path()), path)
	}
	if _, err := os.Stat(path); err == nil {
		return path
	}
	if found, err := codec.Find("."); err == nil {
		return found
	}
	return path
}

func loadDatabase() (*rtm.Database, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return codec.LoadDatabase(resolveDatabasePath(cfg))
}

func main() {
	defer logging.Sync()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
