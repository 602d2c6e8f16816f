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
	"fmt"
	"os"
	"strings"

	"github.com/valpere/sheetmentor/internal/auth"
	"github.com/valpere/sheetmentor/internal/detector"
	"github.com/valpere/sheetmentor/internal/orchestrator"
	"github.com/valpere/sheetmentor/internal/settings"
	"github.com/valpere/sheetmentor/internal/sheets"
	"github.com/valpere/sheetmentor/internal/store"
)

// app holds the long-lived dependencies of one command invocation.
type app struct {
	settings *settings.Store
	history  *store.Store
	sheets   sheets.Service
	orch     *orchestrator.Orchestrator
}

func (a *app) Close() {
	if a.history != nil {
		a.history.Close()
	}
	if a.settings != nil {
		a.settings.Close()
	}
}

func openSettings() (*settings.Store, error) {
	st, err := settings.Open(cfg.Storage.SettingsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open settings: %w", err)
	}
	return st, nil
}

func openHistory() (*store.Store, error) {
	db, err := store.New(cfg.Storage.HistoryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// buildApp wires settings, history, the Sheets client and the orchestrator.
// A history database that cannot be opened disables recording.
func buildApp(ctx context.Context) (*app, error) {
	st, err := openSettings()
	if err != nil {
		return nil, err
	}
	a := &app{settings: st}

	if cfg.Storage.HistoryPath != "" {
		hist, err := openHistory()
		if err != nil {
			log.Warn().Err(err).Msg("run history disabled")
		} else {
			a.history = hist
		}
	}

	ts, err := auth.TokenSource(ctx, cfg.Google)
	if err != nil {
		a.Close()
		return nil, err
	}
	svc, err := sheets.New(ctx, ts)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create sheets client: %w", err)
	}
	a.sheets = svc

	deps := orchestrator.Deps{
		Sheets:   svc,
		Settings: st,
		Logger:   log,
	}
	if a.history != nil {
		deps.History = a.history
	}
	if wantsDetector(st) {
		deps.Detector = detector.New()
	}

	a.orch = orchestrator.New(deps, orchestrator.Config{
		Generator:     cfg.Generator,
		Language:      cfg.Prompt.Language,
		MaxInputChars: cfg.Prompt.MaxInputChars,
	})
	return a, nil
}

// wantsDetector reports whether prompts may be built in the detected language.
func wantsDetector(st *settings.Store) bool {
	if strings.EqualFold(cfg.Prompt.Language, "auto") {
		return true
	}
	prefs, err := st.UserPreferences()
	return err == nil && strings.EqualFold(prefs.Language, "auto")
}

// spreadsheetID accepts either a bare id or a spreadsheet URL.
func spreadsheetID(s string) string {
	if id, ok := sheets.ExtractSpreadsheetID(s); ok {
		return id
	}
	return strings.TrimSpace(s)
}

func requireFlag(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("--%s is required", name)
	}
	return nil
}

func progress(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format, args...)
}
