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
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/attic-rs/trusted-publisher/pkg/exchange"
)

// exchangeRequest is the wire shape of the token exchange request body.
type exchangeRequest struct {
	Token string `json:"token"`
}

// exchangeResponse is the wire shape of a successful exchange.
type exchangeResponse struct {
	Token string `json:"token"`
}

// handler serves the trusted-publisher HTTP surface.
type handler struct {
	orchestrator *exchange.Orchestrator
	config       *exchange.Configuration
	logger       *zap.Logger
	metrics      *metrics
}

// handleExchange implements POST /_trusted-publisher/token.
func (h *handler) handleExchange(w http.ResponseWriter, r *http.Request) {
	logger := loggerFromContext(r.Context(), h.logger)

	var req exchangeRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.metrics.exchangesTotal.WithLabelValues(outcomeFailure).Inc()
		writeError(w, logger, exchange.TokenInvalid("malformed request body").WithCause(err))

		return
	}

	if req.Token == "" {
		h.metrics.exchangesTotal.WithLabelValues(outcomeFailure).Inc()
		writeError(w, logger, exchange.TokenInvalid("missing token"))

		return
	}

	start := time.Now()

	outbound, err := h.orchestrator.Exchange(r.Context(), req.Token, h.config)

	h.metrics.duration.Observe(time.Since(start).Seconds())

	if err != nil {
		h.metrics.exchangesTotal.WithLabelValues(outcomeFailure).Inc()
		writeError(w, logger, err)

		return
	}

	h.metrics.exchangesTotal.WithLabelValues(outcomeSuccess).Inc()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(exchangeResponse{Token: outbound}); err != nil {
		logger.Error("failed to write exchange response", zap.Error(err))
	}
}

// handleHealthz is a liveness probe endpoint; it reports process health,
// never configuration or issuer reachability.
func (h *handler) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}
