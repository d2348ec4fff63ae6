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
	"github.com/spf13/cobra"

	"github.com/attic-rs/trusted-publisher/pkg/constants"
)

const rootLongDesc = `
Trusted publisher token exchange.

This tool verifies an externally issued OIDC identity token against a set
of operator-authored policies and, when a policy matches, issues a
short-lived locally-signed token carrying the permissions that policy
grants. It is typically invoked from CI as a publishing step, or run as
a long-lived HTTP service fronting that same exchange.`

// newRootCommand returns the root command and all its subordinates.
func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   constants.Application,
		Short: "Trusted publisher token exchange.",
		Long:  rootLongDesc,
	}

	commands := []*cobra.Command{
		newVersionCommand(),
		newExchangeCommand(),
		newAPICommand(),
		newLoginCommand(),
	}

	cmd.AddCommand(commands...)

	return cmd
}

// Generate creates a hierarchy of cobra commands for the application.
func Generate() *cobra.Command {
	return newRootCommand()
}
