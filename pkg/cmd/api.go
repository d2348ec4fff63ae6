/*
Copyright 2024 The Attic Authors.

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
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/attic-rs/trusted-publisher/pkg/config"
	"github.com/attic-rs/trusted-publisher/pkg/exchange"
	"github.com/attic-rs/trusted-publisher/pkg/httpapi"
)

// newAPICommand returns the long-lived HTTP service command.
func newAPICommand() *cobra.Command {
	o := &httpapi.Options{}

	cmd := &cobra.Command{
		Use:   "api",
		Short: "Run the trusted publisher token exchange as an HTTP service.",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := zap.NewProduction()
			if err != nil {
				return fmt.Errorf("building logger: %w", err)
			}

			defer func() {
				_ = logger.Sync()
			}()

			cfg, err := config.Load(o.ConfigPath)
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}

			srv := &httpapi.Server{
				Options:      *o,
				Logger:       logger,
				Config:       cfg,
				Orchestrator: exchange.NewOrchestrator(&exchange.KeyResolver{}),
			}

			ctx := cmd.Context()

			if _, err := srv.SetupOpenTelemetry(ctx); err != nil {
				return fmt.Errorf("setting up tracing: %w", err)
			}

			httpServer := srv.GetServer()

			logger.Info("listening", zap.String("address", o.ListenAddress))

			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}

			return nil
		},
	}

	o.AddFlags(cmd.Flags())

	return cmd
}
