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
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/attic-rs/trusted-publisher/pkg/exchange"
)

// Environment variable names for outbound signing material. At least one
// must be set, and RS256 wins when both are; the value is base64 of either
// a raw HMAC secret (HS256) or a PEM-encoded PKCS#1/PKCS#8 RSA private key
// (RS256).
const (
	envHS256SecretBase64 = "ATTIC_SERVER_TOKEN_HS256_SECRET_BASE64"
	envRS256SecretBase64 = "ATTIC_SERVER_TOKEN_RS256_SECRET_BASE64"
)

// readNonEmptyVar looks up name and treats an empty value the same as
// absent, so `FOO=""` doesn't count as "set".
func readNonEmptyVar(name string) (string, bool) {
	value, ok := os.LookupEnv(name)
	if !ok || value == "" {
		return "", false
	}

	return value, true
}

// LoadSigningConfig reads the HS256/RS256 outbound signing environment
// variables and returns the corresponding JWTSigningConfig. Keeping this
// out of the TOML file means the file itself never carries key material
// and can be committed alongside policy changes. RS256 is preferred when
// both are set.
func LoadSigningConfig() (*exchange.JWTSigningConfig, error) {
	rs256, hasRS256 := readNonEmptyVar(envRS256SecretBase64)
	hs256, hasHS256 := readNonEmptyVar(envHS256SecretBase64)

	switch {
	case hasRS256:
		return loadRS256(rs256)
	case hasHS256:
		return loadHS256(hs256)
	default:
		return nil, fmt.Errorf("no outbound signing material configured: set %s or %s", envHS256SecretBase64, envRS256SecretBase64)
	}
}

func loadHS256(encoded string) (*exchange.JWTSigningConfig, error) {
	secret, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", envHS256SecretBase64, err)
	}

	if len(secret) == 0 {
		return nil, fmt.Errorf("%s decoded to an empty secret", envHS256SecretBase64)
	}

	return &exchange.JWTSigningConfig{
		Algorithm:  exchange.SigningHS256,
		HMACSecret: secret,
	}, nil
}

func loadRS256(encoded string) (*exchange.JWTSigningConfig, error) {
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", envRS256SecretBase64, err)
	}

	block, _ := pem.Decode(decoded)
	if block == nil {
		return nil, fmt.Errorf("%s did not contain a PEM block", envRS256SecretBase64)
	}

	key, err := parseRSAPrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing RS256 private key from %s: %w", envRS256SecretBase64, err)
	}

	return &exchange.JWTSigningConfig{
		Algorithm: exchange.SigningRS256,
		RSAKey:    key,
	}, nil
}

// parseRSAPrivateKey accepts either PKCS#1 or PKCS#8 encoding, since
// operators' key material may come from either.
func parseRSAPrivateKey(der []byte) (any, error) {
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}

	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, err
	}

	return key, nil
}
