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

package clientauth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attic-rs/trusted-publisher/pkg/clientauth"
)

func mapEnviron(values map[string]string) clientauth.Environ {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func TestAcquirePrefersDirectToken(t *testing.T) {
	idToken := &clientauth.IDToken{
		Environ: mapEnviron(map[string]string{
			"ATTIC_TRUSTED_PUBLISHER_ID_TOKEN": "direct-token-value",
		}),
	}

	token, err := idToken.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "direct-token-value", token)
}

func TestAcquireFallsBackToActionsRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer request-token", r.Header.Get("Authorization"))
		assert.Equal(t, "https://cache.example", r.URL.Query().Get("audience"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"value":"actions-issued-token"}`))
	}))
	defer server.Close()

	idToken := &clientauth.IDToken{
		Audience: "https://cache.example",
		Environ: mapEnviron(map[string]string{
			"ACTIONS_ID_TOKEN_REQUEST_URL":   server.URL,
			"ACTIONS_ID_TOKEN_REQUEST_TOKEN": "request-token",
		}),
	}

	token, err := idToken.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "actions-issued-token", token)
}

func TestAcquireNoSourceIsError(t *testing.T) {
	idToken := &clientauth.IDToken{Environ: mapEnviron(nil)}

	_, err := idToken.Acquire(context.Background())
	require.ErrorIs(t, err, clientauth.ErrNoIDTokenSource)
}

func TestAcquireActionsRequestFailureSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	idToken := &clientauth.IDToken{
		Environ: mapEnviron(map[string]string{
			"ACTIONS_ID_TOKEN_REQUEST_URL":   server.URL,
			"ACTIONS_ID_TOKEN_REQUEST_TOKEN": "request-token",
		}),
	}

	_, err := idToken.Acquire(context.Background())
	require.ErrorIs(t, err, clientauth.ErrIDTokenRequestFailed)
}
