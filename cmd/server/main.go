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

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"tsu-payments-go/internal/common"
	"tsu-payments-go/internal/server"
	"tsu-payments-go/internal/telemetry"

	"go.uber.org/zap"
)

func main() {
	cfg, payments, err := common.LoadConfig()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger(cfg.Logging)
	defer loggerCleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	zap.L().Info("Starting TSU purchase server")

	shutdownTracing, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		zap.L().Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			zap.L().Warn("Failed to flush traces", zap.Error(err))
		}
	}()

	services, err := common.InitializeServices(ctx, cfg, payments)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	srv, err := server.New(server.Config{
		Server:         cfg.Server,
		Auth:           cfg.Auth,
		RateLimit:      cfg.RateLimit,
		Purchases:      services.Purchases,
		Recorder:       services.Metrics,
		MetricsHandler: services.Metrics.Handler(),
	})
	if err != nil {
		zap.L().Fatal("Failed to build server", zap.Error(err))
	}

	zap.L().Info("Press Ctrl+C to stop")
	if err := srv.Run(ctx); err != nil {
		zap.L().Error("Server stopped with error", zap.Error(err))
		return
	}
	zap.L().Info("Server stopped gracefully")
}
