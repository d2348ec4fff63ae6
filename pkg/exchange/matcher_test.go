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
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attic-rs/trusted-publisher/pkg/exchange"
)

func claimsWithIssuerAndExtra(issuer string, extra map[string]json.RawMessage) *exchange.Claims {
	return &exchange.Claims{
		Issuer: &issuer,
		Expiry: 9999999999,
		Extra:  extra,
	}
}

func TestCheckClaimsEmptyRequiredClaims(t *testing.T) {
	policy := &exchange.Policy{Issuer: "https://issuer.example"}
	claims := claimsWithIssuerAndExtra("https://issuer.example", nil)

	err := exchange.CheckClaims(policy, claims)
	require.Error(t, err)
	assert.True(t, exchange.IsKind(err, exchange.KindEmptyPolicyClaims))
}

func TestCheckClaimsMatches(t *testing.T) {
	policy := &exchange.Policy{
		Issuer: "https://issuer.example",
		RequiredClaims: map[string]json.RawMessage{
			"repository": json.RawMessage(`"acme/app"`),
		},
	}

	claims := claimsWithIssuerAndExtra("https://issuer.example", map[string]json.RawMessage{
		"repository": json.RawMessage(`"acme/app"`),
	})

	assert.NoError(t, exchange.CheckClaims(policy, claims))
}

func TestCheckClaimsStructuralNumericEquality(t *testing.T) {
	policy := &exchange.Policy{
		Issuer: "https://issuer.example",
		RequiredClaims: map[string]json.RawMessage{
			"run_attempt": json.RawMessage(`1`),
		},
	}

	claims := claimsWithIssuerAndExtra("https://issuer.example", map[string]json.RawMessage{
		"run_attempt": json.RawMessage(`1.0`),
	})

	assert.NoError(t, exchange.CheckClaims(policy, claims))
}

func TestCheckClaimsMismatch(t *testing.T) {
	policy := &exchange.Policy{
		Issuer: "https://issuer.example",
		RequiredClaims: map[string]json.RawMessage{
			"environment": json.RawMessage(`"staging"`),
		},
	}

	claims := claimsWithIssuerAndExtra("https://issuer.example", map[string]json.RawMessage{
		"environment": json.RawMessage(`"prod"`),
	})

	err := exchange.CheckClaims(policy, claims)
	require.Error(t, err)

	var exchErr *exchange.Error
	require.ErrorAs(t, err, &exchErr)
	assert.Equal(t, exchange.KindInvalidClaim, exchErr.Kind)
	assert.Equal(t, "environment", exchErr.Claim)
}

func TestCheckClaimsMissingClaim(t *testing.T) {
	policy := &exchange.Policy{
		Issuer: "https://issuer.example",
		RequiredClaims: map[string]json.RawMessage{
			"environment": json.RawMessage(`"prod"`),
		},
	}

	claims := claimsWithIssuerAndExtra("https://issuer.example", nil)

	err := exchange.CheckClaims(policy, claims)
	require.Error(t, err)
	assert.True(t, exchange.IsKind(err, exchange.KindInvalidClaim))
}

func TestMatchCandidatesOrderedMatch(t *testing.T) {
	staging := exchange.Policy{
		Issuer: "https://issuer.example",
		RequiredClaims: map[string]json.RawMessage{
			"environment": json.RawMessage(`"staging"`),
		},
		Permissions: map[string]exchange.Permissions{"staging-cache": {Pull: true}},
	}

	prod := exchange.Policy{
		Issuer: "https://issuer.example",
		RequiredClaims: map[string]json.RawMessage{
			"environment": json.RawMessage(`"prod"`),
		},
		Permissions: map[string]exchange.Permissions{"prod-cache": {Pull: true, Push: true}},
	}

	claims := claimsWithIssuerAndExtra("https://issuer.example", map[string]json.RawMessage{
		"environment": json.RawMessage(`"prod"`),
	})

	matched, err := exchange.MatchCandidates([]exchange.Policy{staging, prod}, claims)
	require.NoError(t, err)
	assert.Contains(t, matched.Permissions, "prod-cache")
}

func TestMatchCandidatesNoneMatch(t *testing.T) {
	staging := exchange.Policy{
		Issuer: "https://issuer.example",
		RequiredClaims: map[string]json.RawMessage{
			"environment": json.RawMessage(`"staging"`),
		},
	}

	prod := exchange.Policy{
		Issuer: "https://issuer.example",
		RequiredClaims: map[string]json.RawMessage{
			"environment": json.RawMessage(`"prod"`),
		},
	}

	claims := claimsWithIssuerAndExtra("https://issuer.example", map[string]json.RawMessage{
		"environment": json.RawMessage(`"dev"`),
	})

	_, err := exchange.MatchCandidates([]exchange.Policy{staging, prod}, claims)
	require.Error(t, err)

	var exchErr *exchange.Error
	require.ErrorAs(t, err, &exchErr)
	assert.Equal(t, exchange.KindNoValidPolicy, exchErr.Kind)
	assert.Len(t, exchErr.Reasons, 2)
}
