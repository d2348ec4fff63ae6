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

package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	jose "github.com/go-jose/go-jose/v3"
)

// acceptedAlgorithms is the closed set of JWK-declared algorithms the
// verifier will honor. Anything else, including an empty algorithm, fails
// with a TokenInvalid error.
var acceptedAlgorithms = map[string]jose.SignatureAlgorithm{
	"HS256": jose.HS256,
	"HS384": jose.HS384,
	"HS512": jose.HS512,
	"RS256": jose.RS256,
	"RS384": jose.RS384,
	"RS512": jose.RS512,
	"PS256": jose.PS256,
	"PS384": jose.PS384,
	"PS512": jose.PS512,
	"ES256": jose.ES256,
	"ES384": jose.ES384,
	"EdDSA": jose.EdDSA,
}

// openIDConfiguration is the subset of the discovery document we need.
type openIDConfiguration struct {
	JWKSURI string `json:"jwks_uri"`
}

// KeyResolver discovers an OIDC issuer's signing keys and locates one by
// key id. The issuer string it is given must already have been admitted by
// a policy-table lookup in the caller (see Verifier) — KeyResolver itself
// performs no trust decisions, it just fetches.
type KeyResolver struct {
	// HTTPClient is used for both discovery requests. Defaults to
	// http.DefaultClient when nil.
	HTTPClient *http.Client
}

func (r *KeyResolver) client() *http.Client {
	if r.HTTPClient != nil {
		return r.HTTPClient
	}

	return http.DefaultClient
}

func (r *KeyResolver) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return TokenInvalid("failed to build discovery request").WithCause(err)
	}

	resp, err := r.client().Do(req)
	if err != nil {
		return TokenInvalid("key discovery request failed").WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return TokenInvalid(fmt.Sprintf("key discovery returned status %d", resp.StatusCode)).
			WithCause(fmt.Errorf("body: %s", body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return TokenInvalid("failed to decode key discovery response").WithCause(err)
	}

	return nil
}

// LoadJWKS performs the two sequential discovery GETs: the OpenID
// configuration document, then the JWK set it references. The discovery
// URL is built by simple string concatenation, so issuers configured by
// the operator must not carry a trailing slash.
func (r *KeyResolver) LoadJWKS(ctx context.Context, issuer string) (*jose.JSONWebKeySet, error) {
	var discovery openIDConfiguration

	if err := r.getJSON(ctx, issuer+"/.well-known/openid-configuration", &discovery); err != nil {
		return nil, err
	}

	if discovery.JWKSURI == "" {
		return nil, TokenInvalid("discovery document missing jwks_uri")
	}

	var jwks jose.JSONWebKeySet

	if err := r.getJSON(ctx, discovery.JWKSURI, &jwks); err != nil {
		return nil, err
	}

	return &jwks, nil
}

// ResolveKey loads the issuer's JWK set and returns the key matching kid.
func (r *KeyResolver) ResolveKey(ctx context.Context, issuer, kid string) (*jose.JSONWebKey, error) {
	jwks, err := r.LoadJWKS(ctx, issuer)
	if err != nil {
		return nil, err
	}

	for i := range jwks.Keys {
		if jwks.Keys[i].KeyID == kid {
			return &jwks.Keys[i], nil
		}
	}

	return nil, TokenInvalid("no JWK matching kid").WithCause(fmt.Errorf("unknown key id %q", kid))
}

// algorithmForKey maps a JWK's declared algorithm to the verification
// algorithm. Keys with no declared algorithm, or one outside the accepted
// set, are rejected — this is what prevents the inbound token header's alg
// from ever choosing the verification algorithm.
func algorithmForKey(key *jose.JSONWebKey) (jose.SignatureAlgorithm, error) {
	alg, ok := acceptedAlgorithms[key.Algorithm]
	if !ok {
		return "", TokenInvalid("unsupported or missing JWK algorithm").WithCause(fmt.Errorf("alg=%q", key.Algorithm))
	}

	return alg, nil
}
