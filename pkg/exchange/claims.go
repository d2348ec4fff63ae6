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

// Claims is a verified claim set: iss/sub/exp are pulled out as typed
// fields, everything else lives in Extra. Claims produced by the Verifier
// are trusted; UnverifiedClaims are not.
type Claims struct {
	// Issuer is the inbound iss claim. Always present on a verified Claims
	// because the Verifier requires a policy-table hit keyed by iss.
	Issuer *string

	// Subject is the inbound sub claim, carried over to the outbound token
	// when present.
	Subject *string

	// Expiry is the inbound exp claim, seconds since epoch. Always present:
	// verification fails a token that lacks it.
	Expiry uint64

	// Extra holds every other claim name to its raw JSON value.
	Extra map[string]json.RawMessage
}

// Get unifies the typed fields with the free-form claim map, since a policy
// may name any claim, including iss/sub/exp, as a required claim.
func (c *Claims) Get(name string) (json.RawMessage, bool) {
	switch name {
	case "iss":
		if c.Issuer == nil {
			return nil, false
		}

		return json.RawMessage(mustQuote(*c.Issuer)), true
	case "sub":
		if c.Subject == nil {
			return nil, false
		}

		return json.RawMessage(mustQuote(*c.Subject)), true
	case "exp":
		raw, err := json.Marshal(c.Expiry)
		if err != nil {
			return nil, false
		}

		return raw, true
	default:
		raw, ok := c.Extra[name]
		return raw, ok
	}
}

func mustQuote(s string) []byte {
	b, err := json.Marshal(s)
	if err != nil {
		// json.Marshal on a string only fails for invalid UTF-8, which Go
		// strings decoded from JSON never contain.
		panic(err)
	}

	return b
}

// UnverifiedClaims is the minimal projection produced by decoding a token
// without checking its signature: only iss and the header's kid. It is
// used solely to select candidate policies and the key to fetch, and must
// never be treated as authorization.
type UnverifiedClaims struct {
	// Issuer is the unverified iss claim from the payload.
	Issuer string

	// KeyID is the kid header value.
	KeyID string
}

// Permissions is a record of independent boolean cache capabilities. The
// zero value grants nothing.
type Permissions struct {
	Pull                    bool
	Push                    bool
	Delete                  bool
	CreateCache             bool
	ConfigureCache          bool
	ConfigureCacheRetention bool
	DestroyCache            bool
}

// MarshalJSON encodes each true field under its short wire key as the
// integer 1, and omits every false field entirely. This is not the default
// encoding/json struct-tag behavior (which would encode false as `false`
// rather than omitting it, or true as `true` rather than `1`), so we build
// the object by hand.
func (p Permissions) MarshalJSON() ([]byte, error) {
	out := make(map[string]int, 7)

	add := func(key string, set bool) {
		if set {
			out[key] = 1
		}
	}

	add("r", p.Pull)
	add("w", p.Push)
	add("d", p.Delete)
	add("cc", p.CreateCache)
	add("cr", p.ConfigureCache)
	add("cq", p.ConfigureCacheRetention)
	add("cd", p.DestroyCache)

	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON, used when loading permissions
// grants back out of configuration or test fixtures.
func (p *Permissions) UnmarshalJSON(data []byte) error {
	var in map[string]int

	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	*p = Permissions{
		Pull:                    in["r"] == 1,
		Push:                    in["w"] == 1,
		Delete:                  in["d"] == 1,
		CreateCache:             in["cc"] == 1,
		ConfigureCache:          in["cr"] == 1,
		ConfigureCacheRetention: in["cq"] == 1,
		DestroyCache:            in["cd"] == 1,
	}

	return nil
}
