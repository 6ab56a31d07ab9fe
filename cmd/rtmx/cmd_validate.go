package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rtmx-ai/rtmx/internal/codec"
	"github.com/rtmx-ai/rtmx/internal/validation"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate schema, reciprocity, and cycles",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := loadDatabase()
		if err != nil {
			return err
		}

		report := validation.ValidateAll(db)
		for _, e := range report.Errors {
			fmt.Printf("ERROR  %s\n", e)
		}
		for _, w := range report.Warnings {
			fmt.Printf("WARN   %s\n", w)
		}
		for _, v := range report.Reciprocity {
			fmt.Printf("RECIP  %s -> %s: %s\n", v.ReqID, v.Other, v.Issue)
		}
		if report.Clean() {
			fmt.Printf("OK     %d requirements, no findings\n", db.Len())
			return nil
		}
		return fmt.Errorf("%d errors, %d warnings, %d reciprocity violations",
			len(report.Errors), len(report.Warnings), len(report.Reciprocity))
	},
}

var fixReciprocityCmd = &cobra.Command{
	Use:   "fix-reciprocity",
	Short: "Re-establish the dependency/blocks duality and save",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := loadDatabase()
		if err != nil {
			return err
		}

		fixed := validation.FixReciprocity(db)
		if fixed == 0 {
			fmt.Println("nothing to fix")
			return nil
		}
		if err := codec.SaveDatabase(db, ""); err != nil {
			return err
		}
		fmt.Printf("fixed %d relations\n", fixed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(fixReciprocityCmd)
}
