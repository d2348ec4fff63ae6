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
)

// CheckClaims reports whether policy matches claims, following the rules in
// spec §4.3:
//  1. An empty RequiredClaims never matches.
//  2. claims.Issuer must equal policy.Issuer — this is an internal
//     invariant enforced by the caller only ever checking a policy against
//     claims selected for that same issuer; a mismatch here is a
//     programmer error, not a request-shaped failure.
//  3. Every required claim must be present and structurally equal (by JSON
//     value, not text) to its expected value.
func CheckClaims(policy *Policy, claims *Claims) error {
	if len(policy.RequiredClaims) == 0 {
		return EmptyPolicyClaims()
	}

	if claims.Issuer == nil || *claims.Issuer != policy.Issuer {
		panic("exchange: policy issuer mismatch with candidate claims; this indicates a programming error in policy selection")
	}

	for key, expected := range policy.RequiredClaims {
		actual, ok := claims.Get(key)
		if !ok {
			return InvalidClaim(key)
		}

		if !jsonEqual(actual, expected) {
			return InvalidClaim(key)
		}
	}

	return nil
}

// jsonEqual compares two raw JSON values by decoded structural equality:
// strings, numbers, booleans, arrays, and objects compared recursively,
// with numeric comparison by value rather than by source text.
func jsonEqual(a, b json.RawMessage) bool {
	var av, bv any

	if err := json.Unmarshal(a, &av); err != nil {
		return false
	}

	if err := json.Unmarshal(b, &bv); err != nil {
		return false
	}

	return deepJSONEqual(av, bv)
}

func deepJSONEqual(a, b any) bool {
	switch av := a.(type) {
	case float64:
		bv, ok := b.(float64)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case nil:
		return b == nil
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}

		for i := range av {
			if !deepJSONEqual(av[i], bv[i]) {
				return false
			}
		}

		return true
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}

		for k, v := range av {
			bvv, ok := bv[k]
			if !ok || !deepJSONEqual(v, bvv) {
				return false
			}
		}

		return true
	default:
		return false
	}
}

// MatchCandidates tries candidates in order and returns the first match.
// If none match, it returns NoValidPolicy carrying every per-policy
// mismatch reason, in the same order.
func MatchCandidates(candidates []Policy, claims *Claims) (*Policy, error) {
	reasons := make([]error, 0, len(candidates))

	for i := range candidates {
		if err := CheckClaims(&candidates[i], claims); err != nil {
			reasons = append(reasons, err)
			continue
		}

		return &candidates[i], nil
	}

	return nil, NoValidPolicy(reasons)
}
