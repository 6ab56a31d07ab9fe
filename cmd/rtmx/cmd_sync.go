package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rtmx-ai/rtmx/internal/crdt/offline"
)

var (
	syncStorePath string
	syncReplica   string
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Offline replication state",
}

var syncBootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Build or restore the offline document and save a snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := offline.Open(offlineStorePath(cfg.Path()))
		if err != nil {
			return err
		}
		defer store.Close()

		doc, err := store.SyncFromCSV(resolveDatabasePath(cfg), replicaID())
		if err != nil {
			return err
		}
		if err := store.SaveState(doc); err != nil {
			return err
		}
		fmt.Printf("document ready: %d requirements, replica %s\n",
			len(doc.ListRequirements()), doc.ReplicaID())
		return nil
	},
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show snapshot and pending-queue state",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := offline.Open(offlineStorePath(cfg.Path()))
		if err != nil {
			return err
		}
		defer store.Close()

		_, hasSnapshot, err := store.LoadState()
		if err != nil {
			return err
		}
		pending, err := store.PendingUpdates()
		if err != nil {
			return err
		}
		fmt.Printf("store:    %s\n", store.Path())
		fmt.Printf("snapshot: %v\n", hasSnapshot)
		fmt.Printf("pending:  %d updates\n", len(pending))
		fmt.Printf("conflict: %s\n", cfg.Sync.ConflictResolution)
		return nil
	},
}

func offlineStorePath(configPath string) string {
	if syncStorePath != "" {
		return syncStorePath
	}
	root := "."
	if configPath != "" {
		root = filepath.Dir(configPath)
	}
	return filepath.Join(root, ".rtmx", "offline.db")
}

func replicaID() string {
	if syncReplica != "" {
		return syncReplica
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "local"
	}
	return host
}

func init() {
	syncCmd.PersistentFlags().StringVar(&syncStorePath, "store", "", "offline store path (default: .rtmx/offline.db)")
	syncCmd.PersistentFlags().StringVar(&syncReplica, "replica", "", "replica id (default: hostname)")
	syncCmd.AddCommand(syncBootstrapCmd, syncStatusCmd)
	rootCmd.AddCommand(syncCmd)
}
