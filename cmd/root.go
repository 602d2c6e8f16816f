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
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/valpere/sheetmentor/internal/config"
	"github.com/valpere/sheetmentor/internal/logger"
)

var version = "0.1.0"

var (
	cfgFile string
	v       = viper.New()
	cfg     *config.Config
	log     zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "sheetmentor",
	Short: "Interview answer refinement and feedback for Google Sheets",
	Long: `A CLI and local HTTP service that reads interview question/answer pairs
from a Google spreadsheet, refines the mentor's notes or generates feedback
with a text-generation API, and writes the results back into the sheet.

Use "sheetmentor serve" to run the service the browser extension talks to,
or "sheetmentor refine" / "sheetmentor feedback" to run a batch directly.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(v, cfgFile)
		if err != nil {
			return err
		}
		cfg = loaded
		log = logger.New(logger.Options{
			Level:  cfg.Logging.Level,
			Format: cfg.Logging.Format,
		})
		log.Debug().Str("config", v.ConfigFileUsed()).Msg("configuration loaded")
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "Config file (default $HOME/.config/sheetmentor/config.yaml)")
	pf.String("log-level", "info", "Log level (debug, info, warn, error)")
	pf.String("log-format", "console", "Log format (console, json)")
	pf.String("provider", "gemini", "Text generation provider (gemini, openrouter, ollama)")
	pf.String("model", "", "Model name (provider default if empty)")
	pf.String("credentials", "", "Path to Google credentials JSON")
	pf.String("settings-db", "", "Settings database path")
	pf.String("history-db", "", "Run history database path")

	bindFlag("logging.level", "log-level")
	bindFlag("logging.format", "log-format")
	bindFlag("generator.provider", "provider")
	bindFlag("generator.model", "model")
	bindFlag("google.credentials", "credentials")
	bindFlag("storage.settings_path", "settings-db")
	bindFlag("storage.history_path", "history-db")
}

// bindFlag binds a persistent flag to a config key. Flags only override the
// config when set explicitly.
func bindFlag(key, flag string) {
	if err := v.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}
