// Package feedback generates interviewer feedback for question/answer rows
// and writes it back to the spreadsheet.
package feedback

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/valpere/sheetmentor/internal/apperr"
	"github.com/valpere/sheetmentor/internal/batch"
	"github.com/valpere/sheetmentor/internal/generator"
	"github.com/valpere/sheetmentor/internal/markdown"
	"github.com/valpere/sheetmentor/internal/prompt"
	"github.com/valpere/sheetmentor/internal/sheets"
)

// ProgressFunc is called before each row with the 1-based position, the row
// total and the sheet row number of the question.
type ProgressFunc func(current, total, sheetRow int)

type SourceRange struct {
	QuestionRange string `json:"questionRange"`
	AnswerRange   string `json:"answerRange"`
}

type Options struct {
	SpreadsheetID string       `json:"spreadsheetId"`
	SourceRange   SourceRange  `json:"sourceRange"`
	TargetRange   string       `json:"targetRange"`
	CustomPrompt  string       `json:"customPrompt,omitempty"`
	OnProgress    ProgressFunc `json:"-"`
}

type Request struct {
	Question     string
	Answer       string
	CustomPrompt string
}

type Feedback struct {
	Text           string        `json:"feedback"`
	TokensUsed     int           `json:"tokensUsed"`
	ProcessingTime time.Duration `json:"processingTime"`
}

// ErrMissingInput is returned by GenerateBasic for a blank question or answer.
var ErrMissingInput = apperr.Validation("Question and answer are required")

type Config struct {
	// Language of the default prompt: "ko", "en" or "auto".
	Language string
	// Detector resolves "auto" from the answer text.
	Detector prompt.LanguageDetector
	// MaxInputChars truncates question and answer; 0 disables.
	MaxInputChars int
	// ReportFormat "text" flattens markdown in the generated feedback.
	ReportFormat string
	// MaxReportLength caps the generated feedback in runes, ellipsis included; 0 disables.
	MaxReportLength int
}

type Generator struct {
	gen    generator.Generator
	sheets sheets.Service
	cfg    Config
	log    zerolog.Logger
}

func New(gen generator.Generator, svc sheets.Service, cfg Config, log zerolog.Logger) *Generator {
	return &Generator{
		gen:    gen,
		sheets: svc,
		cfg:    cfg,
		log:    log.With().Str("component", "feedback").Logger(),
	}
}

// GenerateBasic produces feedback for a single question/answer pair.
func (g *Generator) GenerateBasic(ctx context.Context, req Request) (*Feedback, error) {
	start := time.Now()

	question := strings.TrimSpace(req.Question)
	answer := strings.TrimSpace(req.Answer)
	if question == "" || answer == "" {
		return nil, ErrMissingInput
	}

	lang := prompt.Resolve(g.cfg.Language, g.cfg.Detector, answer)
	p := prompt.Feedback(
		prompt.Truncate(question, g.cfg.MaxInputChars),
		prompt.Truncate(answer, g.cfg.MaxInputChars),
		req.CustomPrompt,
		lang,
	)

	res, err := g.gen.Generate(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("Feedback generation failed: %w", err)
	}

	text := markdown.Format(res.Text, g.cfg.ReportFormat)
	return &Feedback{
		Text:           prompt.Clamp(text, g.cfg.MaxReportLength),
		TokensUsed:     res.TokensUsed,
		ProcessingTime: time.Since(start),
	}, nil
}

// ProcessBatch generates feedback for every question row and writes one
// cell per row to the target range. Rows that fail are written as "".
func (g *Generator) ProcessBatch(ctx context.Context, opts Options) (res batch.Result) {
	start := time.Now()
	defer func() {
		if v := recover(); v != nil {
			g.log.Error().Interface("panic", v).Msg("feedback batch panicked")
			res = batch.Unexpected("Batch feedback generation failed", v)
		}
	}()

	questions, qErr := g.sheets.ReadRange(ctx, opts.SpreadsheetID, opts.SourceRange.QuestionRange)
	answers, aErr := g.sheets.ReadRange(ctx, opts.SpreadsheetID, opts.SourceRange.AnswerRange)
	if qErr != nil || aErr != nil {
		var msgs []string
		for _, err := range []error{qErr, aErr} {
			if err != nil {
				msgs = append(msgs, fmt.Sprintf("Failed to read spreadsheet data: %s", err.Error()))
			}
		}
		g.log.Warn().Strs("errors", msgs).Msg("failed to read source ranges")
		return batch.Failure(1, msgs...)
	}

	if len(questions.Values) == 0 || len(answers.Values) == 0 {
		return batch.Failure(1, "No data found in the specified range")
	}

	total := len(questions.Values)
	startRow := batch.StartRow(opts.SourceRange.QuestionRange)
	feedbacks := make([]string, 0, total)
	var (
		errs         []string
		successCount int
	)

	for i := 0; i < total; i++ {
		question := cellText(questions.Values, i)
		answer := cellText(answers.Values, i)

		if opts.OnProgress != nil {
			opts.OnProgress(i+1, total, startRow+i)
		}

		if question == "" || answer == "" {
			feedbacks = append(feedbacks, "")
			errs = append(errs, batch.RowError(i+2, "Missing question or answer"))
			continue
		}

		fb, err := g.GenerateBasic(ctx, Request{Question: question, Answer: answer, CustomPrompt: opts.CustomPrompt})
		if err != nil {
			g.log.Debug().Int("row", i+2).Err(err).Msg("row failed")
			feedbacks = append(feedbacks, "")
			errs = append(errs, batch.RowError(i+2, err.Error()))
			continue
		}

		g.log.Debug().Int("row", i+2).Int("tokens", fb.TokensUsed).Msg("feedback generated")
		feedbacks = append(feedbacks, fb.Text)
		successCount++
	}

	res = batch.Result{
		Success:        true,
		ProcessedCount: total,
		SuccessCount:   successCount,
	}

	if len(feedbacks) > 0 {
		values := make([][]string, len(feedbacks))
		for i, f := range feedbacks {
			values[i] = []string{f}
		}
		if _, err := g.sheets.UpdateRange(ctx, opts.SpreadsheetID, opts.TargetRange, values); err != nil {
			g.log.Warn().Err(err).Str("range", opts.TargetRange).Msg("failed to write feedback")
			errs = append(errs, fmt.Sprintf("Failed to write to spreadsheet: %s", err.Error()))
			res.Success = false
		}
	}

	res.Finish(errs)

	g.log.Info().
		Int("processed", res.ProcessedCount).
		Int("succeeded", res.SuccessCount).
		Int("errors", res.ErrorCount).
		Dur("elapsed", time.Since(start)).
		Msg("feedback batch finished")
	return res
}

// cellText joins the cells of row i with "," and trims the result. A
// missing row reads as "".
func cellText(values [][]string, i int) string {
	if i >= len(values) {
		return ""
	}
	return strings.TrimSpace(strings.Join(values[i], ","))
}
