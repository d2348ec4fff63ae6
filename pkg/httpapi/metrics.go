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

import "github.com/prometheus/client_golang/prometheus"

// metrics groups the counters and histograms exported on /metrics.
type metrics struct {
	exchangesTotal *prometheus.CounterVec
	duration       prometheus.Histogram
}

// newMetrics constructs and registers the exchange metrics against
// registry.
func newMetrics(registry prometheus.Registerer) *metrics {
	m := &metrics{
		exchangesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trusted_publisher_exchanges_total",
			Help: "Total number of token exchange attempts by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "trusted_publisher_exchange_duration_seconds",
			Help:    "Time taken to verify and issue a token.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	registry.MustRegister(m.exchangesTotal, m.duration)

	return m
}

const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
)
