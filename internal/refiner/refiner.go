// Package refiner rewrites a mentor's typed interview notes into clean
// answers, row by row, and writes them back to the spreadsheet.
package refiner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/valpere/sheetmentor/internal/batch"
	"github.com/valpere/sheetmentor/internal/generator"
	"github.com/valpere/sheetmentor/internal/placeholder"
	"github.com/valpere/sheetmentor/internal/prompt"
	"github.com/valpere/sheetmentor/internal/sheets"
)

// Options describes one batch. SourceRange has two columns: the original
// answer and any existing refined answer. TargetRange has one column.
type Options struct {
	SpreadsheetID string `json:"spreadsheetId"`
	SourceRange   string `json:"sourceRange"`
	TargetRange   string `json:"targetRange"`
	CustomPrompt  string `json:"customPrompt,omitempty"`
}

// Answer is one source row. Index is zero-based relative to the start of
// the source range.
type Answer struct {
	Index           int    `json:"rowIndex"`
	Original        string `json:"originalAnswer"`
	Refined         string `json:"refinedAnswer"`
	NeedsRefinement bool   `json:"needsRefinement"`
}

// Refined is a successfully rewritten row.
type Refined struct {
	Index int    `json:"rowIndex"`
	Text  string `json:"refinedAnswer"`
}

type Config struct {
	// Language selects the default instruction: "ko", "en" or "auto".
	Language string
	// Detector resolves "auto" per row; nil falls back to Korean.
	Detector prompt.LanguageDetector
	// MaxInputChars truncates each original answer; 0 disables.
	MaxInputChars int
}

type Refiner struct {
	gen    generator.Generator
	sheets sheets.Service
	cfg    Config
	log    zerolog.Logger
}

func New(gen generator.Generator, svc sheets.Service, cfg Config, log zerolog.Logger) *Refiner {
	return &Refiner{
		gen:    gen,
		sheets: svc,
		cfg:    cfg,
		log:    log.With().Str("component", "refiner").Logger(),
	}
}

// DefaultInstruction returns the built-in instruction for the configured
// language. "auto" yields the Korean instruction.
func (r *Refiner) DefaultInstruction() string {
	return prompt.DefaultRefineInstruction(prompt.Resolve(r.cfg.Language, nil, ""))
}

// ExtractAnswers reads the source range. Missing cells read as "".
func (r *Refiner) ExtractAnswers(ctx context.Context, spreadsheetID, rng string) ([]Answer, error) {
	data, err := r.sheets.ReadRange(ctx, spreadsheetID, rng)
	if err != nil {
		return nil, err
	}

	answers := make([]Answer, 0, len(data.Values))
	for i, row := range data.Values {
		a := Answer{Index: i}
		if len(row) > 0 {
			a.Original = row[0]
		}
		if len(row) > 1 {
			a.Refined = row[1]
		}
		a.NeedsRefinement = strings.TrimSpace(a.Refined) == ""
		answers = append(answers, a)
	}
	return answers, nil
}

// RefineText rewrites one answer. A blank instruction selects the default.
// Code spans and links in text are shielded from the rewrite.
func (r *Refiner) RefineText(ctx context.Context, text, instruction string) (string, error) {
	lang := prompt.Resolve(r.cfg.Language, r.cfg.Detector, text)
	if strings.TrimSpace(instruction) == "" {
		instruction = prompt.DefaultRefineInstruction(lang)
	}

	protected, spans := placeholder.Protect(prompt.Truncate(text, r.cfg.MaxInputChars))
	if spans.Len() > 0 {
		instruction += "\n\n" + placeholder.Hint(lang)
	}

	res, err := r.gen.Generate(ctx, prompt.Refine(instruction, protected, lang))
	if err != nil {
		return "", fmt.Errorf("AI processing failed: %w", err)
	}
	if res == nil || strings.TrimSpace(res.Text) == "" {
		return "", fmt.Errorf("AI processing failed: empty response")
	}
	if missing := spans.Missing(res.Text); len(missing) > 0 {
		r.log.Warn().Ints("markers", missing).Msg("model dropped protected spans")
	}
	return spans.Restore(res.Text), nil
}

// WriteRefined writes refined rows to targetRange in one call. The written
// array is dense from index 0 to the largest refined index; slots without a
// refined row are written as "". It returns the number of refined rows.
func (r *Refiner) WriteRefined(ctx context.Context, spreadsheetID, targetRange string, refined []Refined) (int, error) {
	if len(refined) == 0 {
		return 0, nil
	}

	maxIndex := 0
	for _, item := range refined {
		if item.Index > maxIndex {
			maxIndex = item.Index
		}
	}

	values := make([][]string, maxIndex+1)
	for i := range values {
		values[i] = []string{""}
	}
	for _, item := range refined {
		values[item.Index] = []string{item.Text}
	}

	if _, err := r.sheets.UpdateRange(ctx, spreadsheetID, targetRange, values); err != nil {
		return 0, err
	}
	return len(refined), nil
}

// ProcessBatch refines every row whose existing refined cell is blank.
// Row failures are collected and do not stop the batch.
func (r *Refiner) ProcessBatch(ctx context.Context, opts Options) (res batch.Result) {
	start := time.Now()
	defer func() {
		if v := recover(); v != nil {
			r.log.Error().Interface("panic", v).Msg("refinement batch panicked")
			res = batch.Unexpected("Unexpected error", v)
		}
	}()

	answers, err := r.ExtractAnswers(ctx, opts.SpreadsheetID, opts.SourceRange)
	if err != nil {
		r.log.Warn().Err(err).Str("range", opts.SourceRange).Msg("failed to read source range")
		return batch.Failure(0, err.Error())
	}

	var pending []Answer
	for _, a := range answers {
		if a.NeedsRefinement {
			pending = append(pending, a)
		}
	}
	if len(pending) == 0 {
		r.log.Info().Int("rows", len(answers)).Msg("nothing to refine")
		return batch.Empty()
	}

	var (
		refined []Refined
		errs    []string
	)
	for _, a := range pending {
		text, err := r.RefineText(ctx, a.Original, opts.CustomPrompt)
		if err != nil {
			r.log.Debug().Int("row", a.Index).Err(err).Msg("row failed")
			errs = append(errs, batch.RowError(a.Index, err.Error()))
			continue
		}
		r.log.Debug().Int("row", a.Index).Msg("row refined")
		refined = append(refined, Refined{Index: a.Index, Text: text})
	}

	if len(refined) > 0 {
		if _, err := r.WriteRefined(ctx, opts.SpreadsheetID, opts.TargetRange, refined); err != nil {
			r.log.Warn().Err(err).Str("range", opts.TargetRange).Msg("failed to write refined answers")
			errs = append(errs, fmt.Sprintf("Write failed: %s", err.Error()))
		}
	}

	res = batch.Result{
		Success:        true,
		ProcessedCount: len(pending),
		SuccessCount:   len(refined),
	}
	res.Finish(errs)

	r.log.Info().
		Int("processed", res.ProcessedCount).
		Int("succeeded", res.SuccessCount).
		Int("errors", res.ErrorCount).
		Dur("elapsed", time.Since(start)).
		Msg("refinement batch finished")
	return res
}
