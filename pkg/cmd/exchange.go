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
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/attic-rs/trusted-publisher/pkg/config"
	"github.com/attic-rs/trusted-publisher/pkg/exchange"
)

// exchangeOptions holds the flags for the exchange command.
type exchangeOptions struct {
	configPath string
}

func (o *exchangeOptions) addFlags(f *pflag.FlagSet) {
	f.StringVar(&o.configPath, "config", "", "Path to the trusted publisher policy file.")
}

// newExchangeCommand returns the one-shot "exchange a single token" command,
// the shape a CI job invokes directly as a publishing step.
func newExchangeCommand() *cobra.Command {
	o := &exchangeOptions{}

	cmd := &cobra.Command{
		Use:   "exchange <token>",
		Short: "Exchange an identity token for a locally signed authorization token.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(o.configPath)
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}

			orchestrator := exchange.NewOrchestrator(&exchange.KeyResolver{})

			outbound, err := orchestrator.Exchange(cmd.Context(), args[0], cfg)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), outbound)

			return nil
		},
	}

	o.addFlags(cmd.Flags())

	if err := cmd.MarkFlagRequired("config"); err != nil {
		panic(err)
	}

	return cmd
}
