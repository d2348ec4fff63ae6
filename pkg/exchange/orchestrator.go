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

import "context"

// Orchestrator is the thin sequencer exposed to the HTTP transport:
// Verifier then Issuer, no retries, no caching. Any error from either
// phase propagates unchanged.
type Orchestrator struct {
	Verifier *Verifier
	Issuer   *Issuer
}

// NewOrchestrator wires a default Orchestrator from a KeyResolver.
func NewOrchestrator(resolver *KeyResolver) *Orchestrator {
	return &Orchestrator{
		Verifier: &Verifier{KeyResolver: resolver},
		Issuer:   &Issuer{},
	}
}

// Exchange verifies tokenString against config and, on success, issues the
// corresponding outbound authorization token.
func (o *Orchestrator) Exchange(ctx context.Context, tokenString string, config *Configuration) (string, error) {
	claims, policy, err := o.Verifier.Verify(ctx, tokenString, config)
	if err != nil {
		return "", err
	}

	return o.Issuer.Issue(claims, policy, config)
}
