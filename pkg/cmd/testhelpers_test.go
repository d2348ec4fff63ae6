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

package cmd_test

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
)

func rsaTestKey(t *testing.T) (*rsa.PrivateKey, error) {
	t.Helper()

	return rsa.GenerateKey(rand.Reader, 2048)
}
