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

package exchange_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v3/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attic-rs/trusted-publisher/pkg/exchange"
)

func TestOrchestratorExchangeEndToEnd(t *testing.T) {
	fixture := newIssuerFixture(t)

	claims := baseClaims(fixture.server.URL, "https://cache.example", time.Hour)
	claims["repository"] = "acme/app"

	token := fixture.issueToken(t, claims, "")

	duration := 15 * time.Minute
	config := &exchange.Configuration{
		Audience: "https://cache.example",
		Policies: map[string][]exchange.Policy{
			fixture.server.URL: {{
				Issuer:   fixture.server.URL,
				Duration: &duration,
				RequiredClaims: map[string]json.RawMessage{
					"repository": json.RawMessage(`"acme/app"`),
				},
				Permissions: map[string]exchange.Permissions{
					"prod-cache": {Pull: true, Push: true},
				},
			}},
		},
		JWT: exchange.JWTConfig{
			Signing: exchange.JWTSigningConfig{
				Algorithm:  exchange.SigningHS256,
				HMACSecret: []byte("orchestrator-test-secret-key-material"),
			},
		},
	}

	orchestrator := exchange.NewOrchestrator(&exchange.KeyResolver{})

	outbound, err := orchestrator.Exchange(context.Background(), token, config)
	require.NoError(t, err)

	parsed, err := jwt.ParseSigned(outbound)
	require.NoError(t, err)

	var out map[string]json.RawMessage

	require.NoError(t, parsed.Claims(config.JWT.Signing.HMACSecret, &out))

	var atticClaim struct {
		Caches map[string]exchange.Permissions `json:"caches"`
	}

	require.NoError(t, json.Unmarshal(out["https://jwt.attic.rs/v1"], &atticClaim))
	assert.Equal(t, exchange.Permissions{Pull: true, Push: true}, atticClaim.Caches["prod-cache"])
}

func TestOrchestratorPropagatesVerifyFailure(t *testing.T) {
	fixture := newIssuerFixture(t)

	claims := baseClaims(fixture.server.URL, "https://wrong-audience.example", time.Hour)
	token := fixture.issueToken(t, claims, "")

	config := &exchange.Configuration{
		Audience: "https://cache.example",
		Policies: map[string][]exchange.Policy{
			fixture.server.URL: {{
				Issuer:         fixture.server.URL,
				RequiredClaims: map[string]json.RawMessage{"x": json.RawMessage(`1`)},
			}},
		},
	}

	orchestrator := exchange.NewOrchestrator(&exchange.KeyResolver{})

	_, err := orchestrator.Exchange(context.Background(), token, config)
	require.Error(t, err)
	assert.True(t, exchange.IsKind(err, exchange.KindTokenInvalid))
}
