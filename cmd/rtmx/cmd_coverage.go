package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rtmx-ai/rtmx/internal/codec"
	"github.com/rtmx-ai/rtmx/internal/coverage"
)

var (
	coverageResults string
	coverageApply   bool
)

// resultEntry is one record of the collaborator-produced results file:
// a test id mapped to its outcome and the requirements it verifies.
type resultEntry struct {
	Outcome      string   `json:"outcome"`
	Requirements []string `json:"requirements"`
}

var coverageCmd = &cobra.Command{
	Use:   "coverage",
	Short: "Propose (and optionally apply) status transitions from test results",
	RunE: func(cmd *cobra.Command, args []string) error {
		if coverageResults == "" {
			return fmt.Errorf("--results is required")
		}
		data, err := os.ReadFile(coverageResults)
		if err != nil {
			return fmt.Errorf("failed to read results: %w", err)
		}
		var entries map[string]resultEntry
		if err := json.Unmarshal(data, &entries); err != nil {
			return fmt.Errorf("failed to parse results: %w", err)
		}

		db, err := loadDatabase()
		if err != nil {
			return err
		}

		collector := coverage.NewCollector()
		outcomes := make(map[string]coverage.Outcome, len(entries))
		tests := make(map[string][]string, len(entries))
		for testID, entry := range entries {
			outcomes[testID] = coverage.Outcome(entry.Outcome)
			tests[testID] = entry.Requirements
		}
		collector.RecordMapping(outcomes, tests)

		transitions := collector.Propose(db)
		if len(transitions) == 0 {
			fmt.Println("no transitions proposed")
			return nil
		}
		for _, tr := range transitions {
			fmt.Printf("%-20s %s -> %s\n", tr.ReqID, tr.From, tr.To)
		}
		if !coverageApply {
			fmt.Println("(dry run; pass --apply to commit)")
			return nil
		}

		applied := coverage.Apply(db, transitions)
		if err := codec.SaveDatabase(db, ""); err != nil {
			return err
		}
		fmt.Printf("applied %d transitions\n", applied)
		return nil
	},
}

func init() {
	coverageCmd.Flags().StringVar(&coverageResults, "results", "", "JSON file: {test_id: {outcome, requirements}}")
	coverageCmd.Flags().BoolVar(&coverageApply, "apply", false, "commit the proposed transitions")
	rootCmd.AddCommand(coverageCmd)
}
