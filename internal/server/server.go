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

package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"tsu-payments-go/internal/models"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const maxRequestBody = 1 << 20

// PurchaseAPI is the purchase flow exposed over HTTP
type PurchaseAPI interface {
	ProcessPurchase(ctx context.Context, userId string, req models.PurchaseRequest) (*models.PurchaseResult, error)
	GetUserBalance(ctx context.Context, userId string) (decimal.Decimal, error)
	GetTransactionHistory(ctx context.Context, userId string, limit, offset int) ([]models.Transaction, error)
	HealthCheck(ctx context.Context) error
}

// Config captures the dependencies required to construct the server.
// Recorder, MetricsHandler and TracerProvider are optional.
type Config struct {
	Server         models.ServerConfig
	Auth           models.AuthConfig
	RateLimit      models.RateLimitConfig
	Purchases      PurchaseAPI
	Recorder       RequestRecorder
	MetricsHandler http.Handler
	TracerProvider trace.TracerProvider
}

type Server struct {
	cfg        Config
	purchases  PurchaseAPI
	httpServer *http.Server
	router     http.Handler
}

func New(cfg Config) (*Server, error) {
	if cfg.Purchases == nil {
		return nil, fmt.Errorf("purchase service is required")
	}
	if cfg.Auth.HMACSecret == "" {
		return nil, fmt.Errorf("auth secret is required")
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}

	s := &Server{cfg: cfg, purchases: cfg.Purchases}
	s.router = s.buildRouter()
	s.httpServer = &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           s.router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}
	return s, nil
}

// Handler exposes the configured HTTP router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() http.Handler {
	obs := newObservability(s.cfg.TracerProvider, s.cfg.Recorder)
	auth := NewAuthenticator(s.cfg.Auth.HMACSecret, s.cfg.Auth.Issuer, s.cfg.Auth.ClockSkew)
	limiter := NewRateLimiter(
		NewLimiterStore(s.cfg.RateLimit.RequestsPerMinute, s.cfg.RateLimit.Burst, s.cfg.RateLimit.TTL),
		s.cfg.Recorder,
	)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)

	r.With(obs.Middleware("healthz")).Get("/healthz", s.handleHealth)
	if s.cfg.MetricsHandler != nil && s.cfg.Server.MetricsEnabled {
		r.Handle("/metrics", s.cfg.MetricsHandler)
	}

	r.Route("/api/tsu", func(api chi.Router) {
		api.With(obs.Middleware("purchase"), limiter.Middleware, auth.Middleware).Post("/purchase", s.handlePurchase)
		api.With(obs.Middleware("balance"), auth.Middleware).Get("/balance", s.handleBalance)
		api.With(obs.Middleware("transactions"), auth.Middleware).Get("/transactions", s.handleTransactions)
	})

	return r
}

// Run serves until ctx is cancelled, then drains in-flight requests
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("HTTP server listening", zap.String("addr", s.cfg.Server.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	zap.L().Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}
