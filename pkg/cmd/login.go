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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/attic-rs/trusted-publisher/pkg/clientauth"
)

// login acquires an identity token (directly supplied, or via the Actions
// OIDC request protocol when absent) and exchanges it against a running
// trusted-publisher service, returning the issued authorization token.
func login(client *http.Client, url string, token string) (string, error) {
	if token == "" {
		idToken := &clientauth.IDToken{HTTPClient: client, Audience: url}

		acquired, err := idToken.Acquire(context.Background())
		if err != nil {
			return "", fmt.Errorf("acquiring identity token: %w", err)
		}

		token = acquired
	}

	endpoint := url + "/_trusted-publisher/token"

	body, err := json.Marshal(map[string]string{"token": token})
	if err != nil {
		return "", fmt.Errorf("encoding exchange request: %w", err)
	}

	resp, err := client.Post(endpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("sending token exchange request to %s: %w", endpoint, err)
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token exchange request to %s returned status %d", endpoint, resp.StatusCode)
	}

	var out struct {
		Token string `json:"token"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("reading token exchange response from %s: %w", endpoint, err)
	}

	return out.Token, nil
}

// newLoginCommand returns the client-side command that exchanges a token
// against a remote trusted-publisher service, the form most callers use
// outside of a CI environment variable-driven exchange.
func newLoginCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "login <url> [<token>]",
		Short: "Exchange an identity token against a remote trusted-publisher service.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var token string
			if len(args) == 2 {
				token = args[1]
			}

			issued, err := login(http.DefaultClient, args[0], token)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), issued)

			return nil
		},
	}
}
