/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/valpere/sheetmentor/internal/batch"
	"github.com/valpere/sheetmentor/internal/orchestrator"
	"github.com/valpere/sheetmentor/internal/refiner"
)

var (
	refineSpreadsheet string
	refineSource      string
	refineTarget      string
	refinePrompt      string
	refineAPIKey      string
	refineJSON        bool
)

var refineCmd = &cobra.Command{
	Use:   "refine",
	Short: "Refine interview answers in a spreadsheet",
	Long: `Read a two-column source range (original answer, refined answer), rewrite
every row whose refined cell is blank, and write the results to the target
range.

Example:
  sheetmentor refine --spreadsheet <id|url> --source 'Sheet1!D2:E40' --target 'Sheet1!E2:E40'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireFlag("source", refineSource); err != nil {
			return err
		}
		if err := requireFlag("target", refineTarget); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		id, err := resolveSpreadsheet(a, refineSpreadsheet)
		if err != nil {
			return err
		}

		progress("Refining %s in %s...\n", refineSource, id)
		res := a.orch.RefineAnswers(ctx, orchestrator.RefineRequest{
			Options: refiner.Options{
				SpreadsheetID: id,
				SourceRange:   refineSource,
				TargetRange:   refineTarget,
				CustomPrompt:  refinePrompt,
			},
			APIKey: refineAPIKey,
		})
		return printResult(res, refineJSON)
	},
}

// resolveSpreadsheet falls back to the spreadsheet saved in settings.
func resolveSpreadsheet(a *app, flagValue string) (string, error) {
	if id := spreadsheetID(flagValue); id != "" {
		return id, nil
	}
	id, err := a.settings.SpreadsheetID()
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", fmt.Errorf("--spreadsheet is required (no spreadsheet saved in settings)")
	}
	return id, nil
}

// printResult writes res to stdout and fails the command when the batch
// failed as a whole.
func printResult(res batch.Result, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	} else {
		fmt.Printf("Processed: %d\n", res.ProcessedCount)
		fmt.Printf("Succeeded: %d\n", res.SuccessCount)
		fmt.Printf("Errors:    %d\n", res.ErrorCount)
		for _, e := range res.Errors {
			fmt.Printf("  - %s\n", e)
		}
	}
	if !res.Success {
		return fmt.Errorf("batch failed")
	}
	return nil
}

func init() {
	rootCmd.AddCommand(refineCmd)

	refineCmd.Flags().StringVarP(&refineSpreadsheet, "spreadsheet", "s", "", "Spreadsheet ID or URL (default: saved spreadsheet)")
	refineCmd.Flags().StringVar(&refineSource, "source", "", "Source range with original and refined columns (required)")
	refineCmd.Flags().StringVar(&refineTarget, "target", "", "Target range for refined answers (required)")
	refineCmd.Flags().StringVarP(&refinePrompt, "prompt", "p", "", "Custom refinement instruction")
	refineCmd.Flags().StringVar(&refineAPIKey, "api-key", "", "Generator API key (default: saved key)")
	refineCmd.Flags().BoolVar(&refineJSON, "json", false, "Print the batch result as JSON")
}
