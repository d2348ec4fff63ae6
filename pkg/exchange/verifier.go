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
	"time"

	jose "github.com/go-jose/go-jose/v3"
	"github.com/go-jose/go-jose/v3/jwt"
)

// Verifier validates an inbound OIDC identity token against a
// Configuration and returns the verified claims together with the single
// policy that matched them.
type Verifier struct {
	KeyResolver *KeyResolver
}

// decodeUnverified parses header and payload without checking the
// signature. Both iss and kid are required; their absence is a malformed
// token, which this package reports as TokenInvalid since the closed error
// taxonomy has no separate kind for it.
func decodeUnverified(tokenString string) (*jwt.JSONWebToken, UnverifiedClaims, error) {
	token, err := jwt.ParseSigned(tokenString)
	if err != nil {
		return nil, UnverifiedClaims{}, TokenInvalid("malformed token").WithCause(err)
	}

	if len(token.Headers) != 1 {
		return nil, UnverifiedClaims{}, TokenInvalid("malformed token: expected exactly one JOSE header")
	}

	var raw map[string]json.RawMessage

	if err := token.UnsafeClaimsWithoutVerification(&raw); err != nil {
		return nil, UnverifiedClaims{}, TokenInvalid("malformed token: unable to decode payload").WithCause(err)
	}

	var iss string

	if v, ok := raw["iss"]; ok {
		_ = json.Unmarshal(v, &iss)
	}

	kid := token.Headers[0].KeyID

	if iss == "" || kid == "" {
		return nil, UnverifiedClaims{}, TokenInvalid("malformed token: missing iss or kid")
	}

	return token, UnverifiedClaims{Issuer: iss, KeyID: kid}, nil
}

// claimsFromRaw splits a decoded payload into the typed iss/sub/exp fields
// (required by exp) and the free-form remainder.
func claimsFromRaw(raw map[string]json.RawMessage) (*Claims, error) {
	expRaw, ok := raw["exp"]
	if !ok {
		return nil, TokenInvalid("token missing exp claim")
	}

	var expNum jwt.NumericDate
	if err := json.Unmarshal(expRaw, &expNum); err != nil {
		return nil, TokenInvalid("token exp claim is not a valid timestamp").WithCause(err)
	}

	claims := &Claims{
		Expiry: uint64(expNum),
		Extra:  make(map[string]json.RawMessage, len(raw)),
	}

	if v, ok := raw["iss"]; ok {
		var iss string
		if err := json.Unmarshal(v, &iss); err == nil {
			claims.Issuer = &iss
		}
	}

	if v, ok := raw["sub"]; ok {
		var sub string
		if err := json.Unmarshal(v, &sub); err == nil {
			claims.Subject = &sub
		}
	}

	for k, v := range raw {
		if k == "iss" || k == "sub" || k == "exp" {
			continue
		}

		claims.Extra[k] = v
	}

	return claims, nil
}

// validateTemporalAndAudience enforces the mandatory aud/exp/nbf checks.
func validateTemporalAndAudience(raw map[string]json.RawMessage, expiry uint64, requiredAudience string, now time.Time) error {
	audRaw, ok := raw["aud"]
	if !ok {
		return TokenInvalid("token missing aud claim")
	}

	var aud jwt.Audience
	if err := json.Unmarshal(audRaw, &aud); err != nil {
		return TokenInvalid("token aud claim malformed").WithCause(err)
	}

	if !aud.Contains(requiredAudience) {
		return TokenInvalid("token audience does not contain configured audience")
	}

	if int64(expiry) <= now.Unix() {
		return TokenInvalid("token has expired")
	}

	if nbfRaw, ok := raw["nbf"]; ok {
		var nbf jwt.NumericDate
		if err := json.Unmarshal(nbfRaw, &nbf); err != nil {
			return TokenInvalid("token nbf claim malformed").WithCause(err)
		}

		if int64(nbf) > now.Unix() {
			return TokenInvalid("token not yet valid (nbf in the future)")
		}
	}

	return nil
}

// Verify is the Verifier's public contract: unverified decode, policy-set
// lookup, key resolution, signature/claim validation, then policy
// matching, strictly in that order.
func (v *Verifier) Verify(ctx context.Context, tokenString string, config *Configuration) (*Claims, *Policy, error) {
	token, unverified, err := decodeUnverified(tokenString)
	if err != nil {
		return nil, nil, err
	}

	candidates, ok := config.PoliciesForIssuer(unverified.Issuer)
	if !ok {
		return nil, nil, InvalidClaim("iss")
	}

	key, err := v.KeyResolver.ResolveKey(ctx, unverified.Issuer, unverified.KeyID)
	if err != nil {
		return nil, nil, err
	}

	algorithm, err := algorithmForKey(key)
	if err != nil {
		return nil, nil, err
	}

	// The JWK's declared algorithm, not the token header, decides how we
	// verify. Reject any mismatch before ever calling into the crypto
	// verifier — this is what stops "alg: none" and algorithm-confusion
	// downgrade attempts.
	if jose.SignatureAlgorithm(token.Headers[0].Algorithm) != algorithm {
		return nil, nil, TokenInvalid("token header algorithm does not match resolved key algorithm")
	}

	var raw map[string]json.RawMessage

	if err := token.Claims(key.Key, &raw); err != nil {
		return nil, nil, TokenInvalid("signature verification failed").WithCause(err)
	}

	claims, err := claimsFromRaw(raw)
	if err != nil {
		return nil, nil, err
	}

	if err := validateTemporalAndAudience(raw, claims.Expiry, config.Audience, time.Now()); err != nil {
		return nil, nil, err
	}

	policy, err := MatchCandidates(candidates, claims)
	if err != nil {
		return nil, nil, err
	}

	return claims, policy, nil
}
