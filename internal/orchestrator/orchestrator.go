// Package orchestrator wires credentials, a text generator and the
// spreadsheet client into the refinement and feedback pipelines.
package orchestrator

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/valpere/sheetmentor/internal"
	"github.com/valpere/sheetmentor/internal/batch"
	"github.com/valpere/sheetmentor/internal/feedback"
	"github.com/valpere/sheetmentor/internal/generator"
	"github.com/valpere/sheetmentor/internal/prompt"
	"github.com/valpere/sheetmentor/internal/refiner"
	"github.com/valpere/sheetmentor/internal/settings"
	"github.com/valpere/sheetmentor/internal/sheets"
)

// ErrNoAPIKey is reported when no credential can be resolved.
const ErrNoAPIKey = "Gemini API key not configured"

// GeneratorFactory builds a generator for one batch.
type GeneratorFactory func(cfg generator.Config) (generator.Generator, error)

// SettingsReader is the subset of the settings store the orchestrator reads.
type SettingsReader interface {
	APIKey() (string, error)
	UserPreferences() (settings.UserPreferences, error)
	ExtensionSettings() (settings.ExtensionSettings, error)
}

// HistoryWriter records finished batches.
type HistoryWriter interface {
	SaveRun(ctx context.Context, run internal.BatchRun) error
}

type Deps struct {
	Sheets       sheets.Service
	Settings     SettingsReader // optional
	History      HistoryWriter  // optional
	NewGenerator GeneratorFactory
	Detector     prompt.LanguageDetector // optional
	Logger       zerolog.Logger
}

type Config struct {
	// Generator is the template for every batch. Its APIKey is the last
	// fallback after the request and the settings store.
	Generator     generator.Config
	Language      string
	MaxInputChars int
}

type RefineRequest struct {
	refiner.Options
	APIKey string `json:"apiKey,omitempty"`
}

type FeedbackRequest struct {
	feedback.Options
	APIKey string `json:"apiKey,omitempty"`
}

type Orchestrator struct {
	deps Deps
	cfg  Config
	log  zerolog.Logger
	now  func() time.Time
}

func New(deps Deps, cfg Config) *Orchestrator {
	if deps.NewGenerator == nil {
		deps.NewGenerator = generator.New
	}
	return &Orchestrator{
		deps: deps,
		cfg:  cfg,
		log:  deps.Logger.With().Str("component", "orchestrator").Logger(),
		now:  time.Now,
	}
}

// RefineAnswers runs the refinement pipeline for req.
func (o *Orchestrator) RefineAnswers(ctx context.Context, req RefineRequest) (res batch.Result) {
	run := o.startRun(internal.RunKindRefine, req.SpreadsheetID, req.SourceRange, req.TargetRange)
	defer func() {
		if v := recover(); v != nil {
			o.log.Error().Interface("panic", v).Msg("refinement panicked")
			res = batch.Unexpected("Unexpected error", v)
		}
		o.finishRun(ctx, run, res)
	}()

	gen, errRes := o.buildGenerator(req.APIKey)
	if errRes != nil {
		return *errRes
	}
	run.Provider, run.Model = gen.Name(), gen.Model()

	r := refiner.New(gen, o.deps.Sheets, refiner.Config{
		Language:      o.language(),
		Detector:      o.deps.Detector,
		MaxInputChars: o.cfg.MaxInputChars,
	}, o.deps.Logger)
	return r.ProcessBatch(ctx, req.Options)
}

// GenerateFeedback runs the feedback pipeline for req.
func (o *Orchestrator) GenerateFeedback(ctx context.Context, req FeedbackRequest) (res batch.Result) {
	run := o.startRun(internal.RunKindFeedback, req.SpreadsheetID,
		req.SourceRange.QuestionRange+";"+req.SourceRange.AnswerRange, req.TargetRange)
	defer func() {
		if v := recover(); v != nil {
			o.log.Error().Interface("panic", v).Msg("feedback panicked")
			res = batch.Unexpected("Batch feedback generation failed", v)
		}
		o.finishRun(ctx, run, res)
	}()

	gen, errRes := o.buildGenerator(req.APIKey)
	if errRes != nil {
		return *errRes
	}
	run.Provider, run.Model = gen.Name(), gen.Model()

	report := o.reportSettings()
	g := feedback.New(gen, o.deps.Sheets, feedback.Config{
		Language:        o.language(),
		Detector:        o.deps.Detector,
		MaxInputChars:   o.cfg.MaxInputChars,
		ReportFormat:    report.ReportFormat,
		MaxReportLength: report.MaxReportLength,
	}, o.deps.Logger)
	return g.ProcessBatch(ctx, req.Options)
}

// ResolveAPIKey returns the first non-blank key from explicit, the settings
// store and the configured generator key.
func (o *Orchestrator) ResolveAPIKey(explicit string) string {
	if k := strings.TrimSpace(explicit); k != "" {
		return k
	}
	if o.deps.Settings != nil {
		k, err := o.deps.Settings.APIKey()
		if err != nil {
			o.log.Warn().Err(err).Msg("failed to read api key from settings")
		} else if k = strings.TrimSpace(k); k != "" {
			return k
		}
	}
	return strings.TrimSpace(o.cfg.Generator.APIKey)
}

func (o *Orchestrator) buildGenerator(explicitKey string) (generator.Generator, *batch.Result) {
	cfg := o.cfg.Generator
	cfg.APIKey = o.ResolveAPIKey(explicitKey)

	needsKey := !strings.EqualFold(cfg.Provider, generator.ProviderOllama)
	if needsKey && cfg.APIKey == "" {
		res := batch.Failure(1, ErrNoAPIKey)
		return nil, &res
	}

	gen, err := o.deps.NewGenerator(cfg)
	if err != nil {
		res := batch.Failure(1, err.Error())
		return nil, &res
	}
	return gen, nil
}

func (o *Orchestrator) language() string {
	if o.deps.Settings != nil {
		prefs, err := o.deps.Settings.UserPreferences()
		if err == nil && prefs.Language != "" {
			return prefs.Language
		}
		if err != nil {
			o.log.Warn().Err(err).Msg("failed to read preferences")
		}
	}
	if o.cfg.Language != "" {
		return o.cfg.Language
	}
	return prompt.DefaultLanguage
}

// reportSettings returns the stored report options. Without a settings
// store feedback is written as generated.
func (o *Orchestrator) reportSettings() settings.ExtensionSettings {
	if o.deps.Settings == nil {
		return settings.ExtensionSettings{}
	}
	es, err := o.deps.Settings.ExtensionSettings()
	if err != nil {
		o.log.Warn().Err(err).Msg("failed to read extension settings")
		return settings.DefaultExtensionSettings()
	}
	return es
}

func (o *Orchestrator) startRun(kind, spreadsheetID, source, target string) *internal.BatchRun {
	return &internal.BatchRun{
		ID:            uuid.NewString(),
		Kind:          kind,
		SpreadsheetID: spreadsheetID,
		SourceRange:   source,
		TargetRange:   target,
		StartedAt:     o.now(),
	}
}

// finishRun stores the run. Failures are logged and never change res.
func (o *Orchestrator) finishRun(ctx context.Context, run *internal.BatchRun, res batch.Result) {
	run.Duration = o.now().Sub(run.StartedAt)
	run.Success = res.Success
	run.ProcessedCount = res.ProcessedCount
	run.SuccessCount = res.SuccessCount
	run.ErrorCount = res.ErrorCount
	run.Errors = res.Errors

	o.log.Info().
		Str("run", run.ID).
		Str("kind", run.Kind).
		Bool("success", res.Success).
		Int("processed", res.ProcessedCount).
		Int("errors", res.ErrorCount).
		Msg("batch finished")

	if o.deps.History == nil {
		return
	}
	if err := o.deps.History.SaveRun(context.WithoutCancel(ctx), *run); err != nil {
		o.log.Warn().Err(err).Str("run", run.ID).Msg("failed to record run")
	}
}
