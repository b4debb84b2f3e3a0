/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package metrics

import (
	"net/http"
	"strconv"
	"time"

	"tsu-payments-go/internal/verifier"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultNamespace = "tsu"

var _ verifier.Recorder = (*Metrics)(nil)

// Metrics owns a private registry so tests can build as many as they like.
type Metrics struct {
	registry      *prometheus.Registry
	requests      *prometheus.CounterVec
	durations     *prometheus.HistogramVec
	purchases     *prometheus.CounterVec
	verifications *prometheus.CounterVec
	providerCalls *prometheus.HistogramVec
	limiterKeys   prometheus.Gauge
}

func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = defaultNamespace
	}
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests processed.",
		}, []string{"route", "method", "status"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		purchases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "purchases_total",
			Help:      "Purchase attempts by payment method, final stage and outcome.",
		}, []string{"method", "stage", "outcome"}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verifications_total",
			Help:      "On-chain verification results by chain and reason.",
		}, []string{"chain", "result"}),
		providerCalls: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_call_duration_seconds",
			Help:      "Latency of chain provider calls.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"chain", "call", "outcome"}),
		limiterKeys: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rate_limiter_clients",
			Help:      "Clients currently tracked by the rate limiter.",
		}),
	}
	m.registry.MustRegister(
		m.requests,
		m.durations,
		m.purchases,
		m.verifications,
		m.providerCalls,
		m.limiterKeys,
		collectors.NewGoCollector(),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveRequest(route, method string, status int, duration time.Duration) {
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.durations.WithLabelValues(route, method).Observe(duration.Seconds())
}

// ObservePurchase counts a finished purchase. outcome is "credited" or "rejected".
func (m *Metrics) ObservePurchase(method, stage, outcome string) {
	m.purchases.WithLabelValues(method, stage, outcome).Inc()
}

func (m *Metrics) ObserveVerification(chain string, result *verifier.Result) {
	label := "verified"
	if result == nil {
		label = "unknown"
	} else if !result.Verified {
		label = result.Code
	}
	m.verifications.WithLabelValues(chain, label).Inc()
}

func (m *Metrics) ObserveProviderCall(chain, call string, duration time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.providerCalls.WithLabelValues(chain, call, outcome).Observe(duration.Seconds())
}

func (m *Metrics) SetLimiterClients(n int) {
	m.limiterKeys.Set(float64(n))
}
