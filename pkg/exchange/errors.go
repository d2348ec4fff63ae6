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
	"errors"
	"fmt"
	"strings"
)

// ErrExchange is the sentinel all exchange errors wrap, so callers can use
// errors.Is/As without caring about the specific Kind.
var ErrExchange = errors.New("token exchange error")

// Kind is the closed sum of error kinds from spec §7. Keep it exhaustive:
// new failure modes get a new Kind rather than reusing Other with a message.
type Kind int

const (
	// KindInvalidClaim covers a required claim missing or mismatched,
	// including an inbound iss absent from the policy table.
	KindInvalidClaim Kind = iota

	// KindEmptyPolicyClaims marks a matched policy with no required_claims.
	KindEmptyPolicyClaims

	// KindNoValidPolicy means every candidate policy for the issuer failed
	// to match; Reasons carries the per-policy mismatch detail.
	KindNoValidPolicy

	// KindTokenInvalid covers signature, audience, expiry, not-before, key
	// discovery, and algorithm failures.
	KindTokenInvalid

	// KindConfiguration is a fatal startup condition.
	KindConfiguration
)

func (k Kind) String() string {
	switch k {
	case KindInvalidClaim:
		return "invalid_claim"
	case KindEmptyPolicyClaims:
		return "empty_policy_claims"
	case KindNoValidPolicy:
		return "no_valid_policy"
	case KindTokenInvalid:
		return "token_invalid"
	case KindConfiguration:
		return "configuration"
	default:
		return "unknown"
	}
}

// Error is the structured error type returned by every exchange operation.
// It never embeds the triggering claim's value, only its name, so the HTTP
// transport can log freely without leaking claim contents by accident.
type Error struct {
	Kind Kind

	// Claim is set for KindInvalidClaim and names the offending claim.
	Claim string

	// Reasons carries the per-policy mismatch errors for KindNoValidPolicy.
	Reasons []error

	// msg is a human-readable description.
	msg string

	// cause is the wrapped leaf error, if any (transport, decode, crypto).
	cause error
}

func (e *Error) Error() string {
	var b strings.Builder

	b.WriteString(e.Kind.String())

	if e.msg != "" {
		b.WriteString(": ")
		b.WriteString(e.msg)
	}

	if e.Claim != "" {
		fmt.Fprintf(&b, " (claim=%s)", e.Claim)
	}

	if e.cause != nil {
		fmt.Fprintf(&b, ": %s", e.cause)
	}

	if len(e.Reasons) > 0 {
		reasons := make([]string, len(e.Reasons))
		for i, r := range e.Reasons {
			reasons[i] = r.Error()
		}

		fmt.Fprintf(&b, " [%s]", strings.Join(reasons, "; "))
	}

	return b.String()
}

func (e *Error) Unwrap() error {
	return ErrExchange
}

// Cause returns the wrapped leaf error, if any.
func (e *Error) Cause() error {
	return e.cause
}

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, msg: msg}
}

// WithCause attaches a leaf cause, preserved for diagnostics only.
func (e *Error) WithCause(err error) *Error {
	e.cause = err
	return e
}

// InvalidClaim reports a missing or mismatched required claim, or an
// inbound issuer absent from the policy table.
func InvalidClaim(claim string) *Error {
	e := newError(KindInvalidClaim, "required claim missing or mismatched")
	e.Claim = claim

	return e
}

// EmptyPolicyClaims reports a policy configured with no required_claims.
func EmptyPolicyClaims() *Error {
	return newError(KindEmptyPolicyClaims, "policy has no required_claims")
}

// NoValidPolicy reports that every candidate policy failed to match.
func NoValidPolicy(reasons []error) *Error {
	e := newError(KindNoValidPolicy, "no candidate policy matched")
	e.Reasons = reasons

	return e
}

// TokenInvalid reports a signature, audience, expiry, not-before, key
// discovery, or algorithm failure.
func TokenInvalid(msg string) *Error {
	return newError(KindTokenInvalid, msg)
}

// Configuration reports a fatal startup condition.
func Configuration(msg string) *Error {
	return newError(KindConfiguration, msg)
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}

	return e.Kind == kind
}
