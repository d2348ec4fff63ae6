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
	"time"
)

// Policy is an operator-authored rule that grants permissions when a
// verified token matches it.
type Policy struct {
	// Issuer is the exact string expected in the token's iss claim. It also
	// keys the policy into Configuration.Policies.
	Issuer string

	// RequiredClaims maps claim name to expected JSON value. Must be
	// non-empty: PolicyMatcher treats an empty map as a misconfiguration,
	// never a match.
	RequiredClaims map[string]json.RawMessage

	// Permissions maps cache name to the grant for that cache.
	Permissions map[string]Permissions

	// Duration is the proposed token lifetime, when set. Nil means the
	// policy proposes no expiry of its own.
	Duration *time.Duration

	// AllowExtendingTokenLifespan controls how the outbound expiry is
	// combined with the inbound token's exp (see Issuer.Issue).
	AllowExtendingTokenLifespan bool
}

// JWTSigningAlgorithm tags which outbound signing variant is configured.
type JWTSigningAlgorithm int

const (
	// SigningHS256 signs outbound tokens with an HMAC secret.
	SigningHS256 JWTSigningAlgorithm = iota
	// SigningRS256 signs outbound tokens with an RSA private key.
	SigningRS256
)

// JWTSigningConfig is a tagged union: either an HS256 HMAC secret or an
// RS256 RSA private key, never both, never neither. Verification and
// signing algorithms must never be chosen independently of this tag.
type JWTSigningConfig struct {
	Algorithm JWTSigningAlgorithm

	// HMACSecret is set when Algorithm is SigningHS256.
	HMACSecret []byte

	// RSAKey is set when Algorithm is SigningRS256; a *rsa.PrivateKey in
	// practice, typed as any to avoid importing crypto/rsa here for every
	// consumer of this package.
	RSAKey any
}

// JWTConfig holds the outbound token's signing and claim configuration.
type JWTConfig struct {
	Signing JWTSigningConfig

	// TokenBoundIssuer, when set, is placed as iss in the outbound token.
	TokenBoundIssuer string

	// TokenBoundAudiences, when non-empty, is placed as aud in the
	// outbound token.
	TokenBoundAudiences []string
}

// Configuration is process-wide immutable state, constructed once at
// startup and shared without synchronization across all in-flight
// exchanges.
type Configuration struct {
	// Audience is the required value for inbound aud validation.
	Audience string

	// Policies maps issuer string to its ordered list of candidate
	// policies. Built once at load time so request handling never does a
	// linear scan over all policies.
	Policies map[string][]Policy

	JWT JWTConfig
}

// PoliciesForIssuer returns the ordered candidate list for iss, and whether
// the issuer is known at all.
func (c *Configuration) PoliciesForIssuer(iss string) ([]Policy, bool) {
	policies, ok := c.Policies[iss]
	return policies, ok
}
