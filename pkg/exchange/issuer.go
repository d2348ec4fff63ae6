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
	"encoding/json"
	"fmt"

	jose "github.com/go-jose/go-jose/v3"
	"github.com/go-jose/go-jose/v3/jwt"
)

// atticClaimKey is the literal JSON key the outbound permission grid is
// carried under.
const atticClaimKey = "https://jwt.attic.rs/v1"

// atticClaims is the custom claim body projected from a matched policy.
type atticClaims struct {
	Caches map[string]Permissions `json:"caches"`
}

// outboundClaims is the full outbound token body. Fields use pointers or
// omitempty so sub/iss/aud are absent from the JSON rather than
// present-with-null when the configuration or inbound claims don't supply
// them.
type outboundClaims struct {
	Attic atticClaims `json:"https://jwt.attic.rs/v1"`

	Subject   string       `json:"sub,omitempty"`
	Issuer    string       `json:"iss,omitempty"`
	Audience  jwt.Audience `json:"aud,omitempty"`
	IssuedAt  int64        `json:"iat"`
	ExpiresAt *int64       `json:"exp,omitempty"`
}

// Clock abstracts time.Now so issue-time expiry composition is testable
// and deterministic.
type Clock func() int64

// Issuer constructs and signs the outbound authorization token.
type Issuer struct {
	// Now returns the current Unix second. Defaults to time.Now when nil.
	Now Clock
}

func (i *Issuer) now() int64 {
	if i.Now != nil {
		return i.Now()
	}

	return defaultNow()
}

// minExpiry returns the minimum of two optional expiries: absent when
// neither is set, the set one when only one is set, and the smaller value
// when both are set.
func minExpiry(a, b *int64) *int64 {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case *a < *b:
		return a
	default:
		return b
	}
}

// effectiveExpiry implements spec §4.4's expiry composition.
func effectiveExpiry(iat int64, policy *Policy, inboundExp uint64) *int64 {
	var policyExp *int64

	if policy.Duration != nil {
		exp := iat + int64(policy.Duration.Seconds())
		policyExp = &exp
	}

	inbound := int64(inboundExp)

	if policy.AllowExtendingTokenLifespan {
		return policyExp
	}

	return minExpiry(policyExp, &inbound)
}

// projectPermissions copies each cache's Permissions verbatim; the
// copy exists so the outbound claim body never aliases policy state the
// configuration owns.
func projectPermissions(policy *Policy) map[string]Permissions {
	caches := make(map[string]Permissions, len(policy.Permissions))

	for name, perms := range policy.Permissions {
		caches[name] = perms
	}

	return caches
}

// Issue constructs and signs the outbound authorization token for claims
// matched against policy, per config's signing material.
func (i *Issuer) Issue(claims *Claims, policy *Policy, config *Configuration) (string, error) {
	iat := i.now()

	exp := effectiveExpiry(iat, policy, claims.Expiry)

	body := outboundClaims{
		Attic:    atticClaims{Caches: projectPermissions(policy)},
		IssuedAt: iat,
	}

	if claims.Subject != nil {
		body.Subject = *claims.Subject
	}

	if config.JWT.TokenBoundIssuer != "" {
		body.Issuer = config.JWT.TokenBoundIssuer
	}

	if len(config.JWT.TokenBoundAudiences) > 0 {
		body.Audience = jwt.Audience(config.JWT.TokenBoundAudiences)
	}

	body.ExpiresAt = exp

	signer, err := buildSigner(config.JWT.Signing)
	if err != nil {
		return "", Configuration("failed to build outbound signer").WithCause(err)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", TokenInvalid("failed to marshal outbound claims").WithCause(err)
	}

	signed, err := signer.Sign(payload)
	if err != nil {
		return "", TokenInvalid("failed to sign outbound token").WithCause(err)
	}

	serialized, err := signed.CompactSerialize()
	if err != nil {
		return "", TokenInvalid("failed to serialize outbound token").WithCause(err)
	}

	return serialized, nil
}

// buildSigner derives the one signer implied by the configuration's tagged
// signing variant; the outbound algorithm is never chosen independently of
// that tag.
func buildSigner(signing JWTSigningConfig) (jose.Signer, error) {
	var signingKey jose.SigningKey

	switch signing.Algorithm {
	case SigningHS256:
		if len(signing.HMACSecret) == 0 {
			return nil, fmt.Errorf("HS256 signing configured with no secret")
		}

		signingKey = jose.SigningKey{Algorithm: jose.HS256, Key: signing.HMACSecret}
	case SigningRS256:
		if signing.RSAKey == nil {
			return nil, fmt.Errorf("RS256 signing configured with no key")
		}

		signingKey = jose.SigningKey{Algorithm: jose.RS256, Key: signing.RSAKey}
	default:
		return nil, fmt.Errorf("unknown signing algorithm tag %d", signing.Algorithm)
	}

	return jose.NewSigner(signingKey, (&jose.SignerOptions{}).WithType("JWT"))
}
