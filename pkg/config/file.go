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

package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
	str2duration "github.com/xhit/go-str2duration/v2"

	"github.com/attic-rs/trusted-publisher/pkg/exchange"
)

// filePermissions is the TOML shape of a single cache's permission grant.
// Field names mirror exchange.Permissions; it exists as a separate type so
// the wire/file representation can evolve independently of the in-memory
// one.
type filePermissions struct {
	Pull                    bool `toml:"pull"`
	Push                    bool `toml:"push"`
	Delete                  bool `toml:"delete"`
	CreateCache             bool `toml:"create-cache"`
	ConfigureCache          bool `toml:"configure-cache"`
	ConfigureCacheRetention bool `toml:"configure-cache-retention"`
	DestroyCache            bool `toml:"destroy-cache"`
}

func (p filePermissions) toExchange() exchange.Permissions {
	return exchange.Permissions{
		Pull:                    p.Pull,
		Push:                    p.Push,
		Delete:                  p.Delete,
		CreateCache:             p.CreateCache,
		ConfigureCache:          p.ConfigureCache,
		ConfigureCacheRetention: p.ConfigureCacheRetention,
		DestroyCache:            p.DestroyCache,
	}
}

// filePolicy is the TOML shape of a single [[policy]] table.
type filePolicy struct {
	Issuer                      string                     `toml:"issuer"`
	Duration                    string                     `toml:"duration"`
	AllowExtendingTokenLifespan bool                       `toml:"allow-extending-token-lifespan"`
	RequiredClaims              map[string]any             `toml:"required-claims"`
	Permissions                 map[string]filePermissions `toml:"permissions"`
}

func (p filePolicy) toExchange() (exchange.Policy, error) {
	policy := exchange.Policy{
		Issuer:                      p.Issuer,
		AllowExtendingTokenLifespan: p.AllowExtendingTokenLifespan,
	}

	if p.Duration != "" {
		// str2duration has no "min" unit, so rewrite "min"/"mins" to "m".
		normalized := strings.NewReplacer("mins", "m", "min", "m").Replace(p.Duration)

		duration, err := str2duration.ParseDuration(normalized)
		if err != nil {
			return exchange.Policy{}, fmt.Errorf("policy %q: invalid duration %q: %w", p.Issuer, p.Duration, err)
		}

		policy.Duration = &duration
	}

	if len(p.RequiredClaims) > 0 {
		policy.RequiredClaims = make(map[string]json.RawMessage, len(p.RequiredClaims))

		for claim, value := range p.RequiredClaims {
			raw, err := json.Marshal(value)
			if err != nil {
				return exchange.Policy{}, fmt.Errorf("policy %q: claim %q: %w", p.Issuer, claim, err)
			}

			policy.RequiredClaims[claim] = raw
		}
	}

	if len(p.Permissions) > 0 {
		policy.Permissions = make(map[string]exchange.Permissions, len(p.Permissions))

		for cache, perms := range p.Permissions {
			policy.Permissions[cache] = perms.toExchange()
		}
	}

	return policy, nil
}

// fileJWT is the TOML shape of the [jwt] table. Only token-bound iss/aud
// are configurable from the file: signing material is deliberately kept
// out of the policy file and loaded from the environment instead (see
// LoadSigningConfig), so the file can be committed to version control
// without leaking key material.
type fileJWT struct {
	TokenBoundIssuer    string   `toml:"token-bound-issuer"`
	TokenBoundAudiences []string `toml:"token-bound-audiences"`
}

// fileConfiguration is the root TOML document.
type fileConfiguration struct {
	Audience string       `toml:"audience"`
	JWT      fileJWT      `toml:"jwt"`
	Policy   []filePolicy `toml:"policy"`
}

// Load reads and parses the policy file at path, then loads signing
// material from the environment, returning an exchange.Configuration ready
// to hand to an exchange.Orchestrator.
//
// Unknown fields in the TOML document are rejected: a typo'd key in a
// policy table should fail startup loudly rather than silently grant
// nothing.
func Load(path string) (*exchange.Configuration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading configuration file: %w", err)
	}

	decoder := toml.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()

	var file fileConfiguration

	if err := decoder.Decode(&file); err != nil {
		return nil, fmt.Errorf("parsing configuration file: %w", err)
	}

	configuration := &exchange.Configuration{
		Audience: file.Audience,
		Policies: map[string][]exchange.Policy{},
		JWT: exchange.JWTConfig{
			TokenBoundIssuer:    file.JWT.TokenBoundIssuer,
			TokenBoundAudiences: file.JWT.TokenBoundAudiences,
		},
	}

	for _, fp := range file.Policy {
		if fp.Issuer == "" {
			return nil, fmt.Errorf("policy entry is missing an issuer")
		}

		policy, err := fp.toExchange()
		if err != nil {
			return nil, err
		}

		configuration.Policies[fp.Issuer] = append(configuration.Policies[fp.Issuer], policy)
	}

	signing, err := LoadSigningConfig()
	if err != nil {
		return nil, err
	}

	configuration.JWT.Signing = *signing

	return configuration, nil
}
