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

package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/attic-rs/trusted-publisher/pkg/exchange"
)

// errorResponse is the wire shape returned to clients on failure.
type errorResponse struct {
	Error string `json:"error"`
}

// writeError logs the underlying cause (never sent to the client) and
// writes the public-facing error body. Every exchange.Error kind maps to
// 401: token exchange is the only operation this endpoint performs, and an
// untrusted caller should learn nothing that distinguishes "your claims
// didn't match a policy" from "your token was malformed" or "that issuer
// isn't trusted". A misconfigured signing key is the one exception: that's
// an operator fault, not a caller fault, so it becomes a 500.
func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	status := http.StatusUnauthorized
	message := "token exchange failed"

	var exchangeErr *exchange.Error

	if errors.As(err, &exchangeErr) && exchangeErr.Kind == exchange.KindConfiguration {
		status = http.StatusInternalServerError
		message = "internal server error"
	}

	logger.Info("exchange request failed", zap.Error(err))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	body, marshalErr := json.Marshal(errorResponse{Error: message})
	if marshalErr != nil {
		logger.Error("failed to marshal error response", zap.Error(marshalErr))
		return
	}

	if _, writeErr := w.Write(body); writeErr != nil {
		logger.Error("failed to write error response", zap.Error(writeErr))
	}
}
