package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rtmx-ai/rtmx/internal/health"
)

var healthStrict bool

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Run the RTM health suite",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		report := health.Run(resolveDatabasePath(cfg), health.Options{Strict: healthStrict})
		for _, check := range report.Checks {
			marker := map[health.Result]string{
				health.ResultPass: "ok",
				health.ResultWarn: "warn",
				health.ResultFail: "FAIL",
				health.ResultSkip: "skip",
			}[check.Result]
			fmt.Printf("%-5s %-14s %s\n", marker, check.Name, check.Message)
		}
		fmt.Printf("status: %s\n", report.Status)
		if report.Status == health.StatusUnhealthy {
			return fmt.Errorf("health suite failed")
		}
		return nil
	},
}

func init() {
	healthCmd.Flags().BoolVar(&healthStrict, "strict", false, "treat degraded as unhealthy")
	rootCmd.AddCommand(healthCmd)
}
