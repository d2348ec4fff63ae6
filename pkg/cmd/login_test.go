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

package cmd_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attic-rs/trusted-publisher/pkg/cmd"
)

func TestLoginCommandWithExplicitToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/_trusted-publisher/token", r.URL.Path)

		var req struct {
			Token string `json:"token"`
		}

		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "supplied-token", req.Token)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"token": "issued-token"})
	}))
	defer server.Close()

	c := cmd.Generate()

	var out bytes.Buffer
	c.SetOut(&out)
	c.SetArgs([]string{"login", server.URL, "supplied-token"})

	require.NoError(t, c.Execute())
	assert.Equal(t, "issued-token\n", out.String())
}

func TestLoginCommandSurfacesExchangeFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "token exchange failed"})
	}))
	defer server.Close()

	c := cmd.Generate()
	c.SetArgs([]string{"login", server.URL, "supplied-token"})
	c.SilenceErrors = true
	c.SilenceUsage = true

	require.Error(t, c.Execute())
}
