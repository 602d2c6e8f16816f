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

	"github.com/spf13/cobra"

	"github.com/valpere/sheetmentor/internal/sheets"
)

var (
	detectTitle    string
	detectMetadata bool
)

var detectCmd = &cobra.Command{
	Use:   "detect <url>",
	Short: "Extract the spreadsheet ID from a Google Sheets URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !sheets.IsSheetsURL(args[0]) {
			return fmt.Errorf("not a Google Sheets URL: %s", args[0])
		}
		info := sheets.Detect(args[0], detectTitle)

		out := map[string]any{"sheet": info}
		if detectMetadata && info.SpreadsheetID != "" {
			ctx := context.Background()
			a, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			md, err := a.sheets.Metadata(ctx, info.SpreadsheetID)
			if err != nil {
				return fmt.Errorf("failed to read spreadsheet metadata: %w", err)
			}
			out["metadata"] = md
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	rootCmd.AddCommand(detectCmd)

	detectCmd.Flags().StringVar(&detectTitle, "title", "", "Browser tab title, used for the sheet name")
	detectCmd.Flags().BoolVar(&detectMetadata, "metadata", false, "Also fetch spreadsheet metadata from the Sheets API")
}
