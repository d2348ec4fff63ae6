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
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jose "github.com/go-jose/go-jose/v3"
	"github.com/go-jose/go-jose/v3/jwt"
	"github.com/stretchr/testify/require"
)

// issuerFixture stands in for a CI platform's OIDC identity provider: it
// serves a discovery document and a JWK set, and can mint signed tokens
// with its own key.
type issuerFixture struct {
	server     *httptest.Server
	privateKey *rsa.PrivateKey
	kid        string
}

func newIssuerFixture(t *testing.T) *issuerFixture {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	fixture := &issuerFixture{privateKey: key, kid: "test-key-1"}

	mux := http.NewServeMux()

	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"jwks_uri": fixture.server.URL + "/jwks",
		})
	})

	mux.HandleFunc("/jwks", func(w http.ResponseWriter, r *http.Request) {
		jwks := jose.JSONWebKeySet{
			Keys: []jose.JSONWebKey{
				{
					Key:       key.Public(),
					KeyID:     fixture.kid,
					Algorithm: "RS256",
					Use:       "sig",
				},
			},
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(jwks)
	})

	fixture.server = httptest.NewServer(mux)

	t.Cleanup(fixture.server.Close)

	return fixture
}

// issueToken signs claims (a map so callers can set arbitrary claim names)
// as a compact JWS using the fixture's private key and kid, overriding the
// header algorithm when forceAlg is non-empty (used to build downgrade
// attempts in tests).
func (f *issuerFixture) issueToken(t *testing.T, claims map[string]any, forceAlg jose.SignatureAlgorithm) string {
	t.Helper()

	alg := jose.RS256

	var key any = f.privateKey

	if forceAlg != "" {
		alg = forceAlg
	}

	if alg == jose.HS256 || alg == jose.HS384 || alg == jose.HS512 {
		// Simulate the classic RS256/HS256 key-confusion attack: sign with
		// an HMAC keyed on bytes derived from the RSA public key, which an
		// attacker could obtain from the JWKS endpoint itself.
		key = f.privateKey.PublicKey.N.Bytes()
	}

	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: alg, Key: key}, (&jose.SignerOptions{}).WithHeader("kid", f.kid))
	require.NoError(t, err)

	payload, err := json.Marshal(claims)
	require.NoError(t, err)

	signed, err := signer.Sign(payload)
	require.NoError(t, err)

	serialized, err := signed.CompactSerialize()
	require.NoError(t, err)

	return serialized
}

func baseClaims(issuer, audience string, expiresIn time.Duration) map[string]any {
	now := time.Now()

	return map[string]any{
		"iss": issuer,
		"aud": audience,
		"iat": jwt.NewNumericDate(now),
		"exp": jwt.NewNumericDate(now.Add(expiresIn)),
	}
}
