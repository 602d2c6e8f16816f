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
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/valpere/sheetmentor/internal/feedback"
	"github.com/valpere/sheetmentor/internal/orchestrator"
)

var (
	feedbackSpreadsheet string
	feedbackQuestions   string
	feedbackAnswers     string
	feedbackTarget      string
	feedbackPrompt      string
	feedbackAPIKey      string
	feedbackJSON        bool
)

var feedbackCmd = &cobra.Command{
	Use:   "feedback",
	Short: "Generate feedback for interview question/answer pairs",
	Long: `Read aligned question and answer ranges, generate feedback for every row
and write one feedback cell per row to the target range.

Example:
  sheetmentor feedback --spreadsheet <id|url> --questions 'Sheet1!C2:C40' \
    --answers 'Sheet1!E2:E40' --target 'Sheet1!F2:F40'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		for name, value := range map[string]string{
			"questions": feedbackQuestions,
			"answers":   feedbackAnswers,
			"target":    feedbackTarget,
		} {
			if err := requireFlag(name, value); err != nil {
				return err
			}
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		id, err := resolveSpreadsheet(a, feedbackSpreadsheet)
		if err != nil {
			return err
		}

		res := a.orch.GenerateFeedback(ctx, orchestrator.FeedbackRequest{
			Options: feedback.Options{
				SpreadsheetID: id,
				SourceRange: feedback.SourceRange{
					QuestionRange: feedbackQuestions,
					AnswerRange:   feedbackAnswers,
				},
				TargetRange:  feedbackTarget,
				CustomPrompt: feedbackPrompt,
				OnProgress: func(current, total, sheetRow int) {
					progress("[%d/%d] row %d\n", current, total, sheetRow)
				},
			},
			APIKey: feedbackAPIKey,
		})
		return printResult(res, feedbackJSON)
	},
}

func init() {
	rootCmd.AddCommand(feedbackCmd)

	feedbackCmd.Flags().StringVarP(&feedbackSpreadsheet, "spreadsheet", "s", "", "Spreadsheet ID or URL (default: saved spreadsheet)")
	feedbackCmd.Flags().StringVarP(&feedbackQuestions, "questions", "q", "", "Question range (required)")
	feedbackCmd.Flags().StringVarP(&feedbackAnswers, "answers", "a", "", "Answer range (required)")
	feedbackCmd.Flags().StringVar(&feedbackTarget, "target", "", "Target range for feedback (required)")
	feedbackCmd.Flags().StringVarP(&feedbackPrompt, "prompt", "p", "", "Custom feedback requirements")
	feedbackCmd.Flags().StringVar(&feedbackAPIKey, "api-key", "", "Generator API key (default: saved key)")
	feedbackCmd.Flags().BoolVar(&feedbackJSON, "json", false, "Print the batch result as JSON")
}
