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
	"syscall"

	"github.com/spf13/cobra"

	"github.com/valpere/sheetmentor/internal/message"
	"github.com/valpere/sheetmentor/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP service used by the browser extension",
	Long: `Serve the message endpoint (POST /v1/messages), the settings store and
the run history over HTTP. Only origins listed in server.allowed_origins may
call it from a browser.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		deps := server.Deps{
			Messages: message.NewRouter(a.orch, log),
			Settings: a.settings,
			Logger:   log,
		}
		if a.history != nil {
			deps.History = a.history
		}

		srv := server.New(server.Config{
			Addr:            cfg.Server.Addr,
			AllowedOrigins:  cfg.Server.AllowedOrigins,
			ShutdownTimeout: cfg.Server.ShutdownTimeout,
		}, deps)
		return srv.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "127.0.0.1:8787", "Listen address")
	serveCmd.Flags().StringSlice("allowed-origins", nil, "CORS origins allowed to call the service")
	if err := v.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr")); err != nil {
		panic(err)
	}
	if err := v.BindPFlag("server.allowed_origins", serveCmd.Flags().Lookup("allowed-origins")); err != nil {
		panic(err)
	}
}
