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

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"tsu-payments-go/internal/models"
	"tsu-payments-go/internal/telemetry"
)

const (
	LedgerBackendSQLite   = "sqlite"
	LedgerBackendFormance = "formance"
)

func Load() (*models.Config, error) {
	connMaxLifetime, err := getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	connMaxIdleTime, err := getEnvDuration("DB_CONN_MAX_IDLE_TIME", 30*time.Second)
	if err != nil {
		return nil, err
	}

	pingTimeout, err := getEnvDuration("DB_PING_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	readTimeout, err := getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, err
	}

	// Verification performs several sequential provider calls
	writeTimeout, err := getEnvDuration("SERVER_WRITE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, err
	}

	shutdownTimeout, err := getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	clockSkew, err := getEnvDuration("JWT_CLOCK_SKEW", 2*time.Minute)
	if err != nil {
		return nil, err
	}

	chainCallTimeout, err := getEnvDuration("CHAIN_CALL_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	rateLimitTTL, err := getEnvDuration("RATE_LIMIT_TTL", 10*time.Minute)
	if err != nil {
		return nil, err
	}

	sampleRatio, err := getEnvFloat("OTEL_TRACES_SAMPLE_RATIO", 1)
	if err != nil {
		return nil, err
	}

	requestsPerMinute, err := getEnvFloat("RATE_LIMIT_PER_MINUTE", 10)
	if err != nil {
		return nil, err
	}

	ledgerBackend := strings.ToLower(getEnvString("LEDGER_BACKEND", LedgerBackendSQLite))
	if ledgerBackend != LedgerBackendSQLite && ledgerBackend != LedgerBackendFormance {
		return nil, fmt.Errorf("invalid LEDGER_BACKEND %q: expected %s or %s", ledgerBackend, LedgerBackendSQLite, LedgerBackendFormance)
	}

	return &models.Config{
		Database: models.DatabaseConfig{
			Path:             getEnvString("DATABASE_PATH", "tsu.db"),
			MaxOpenConns:     getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:     getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime:  connMaxLifetime,
			ConnMaxIdleTime:  connMaxIdleTime,
			PingTimeout:      pingTimeout,
			CreateDummyUsers: getEnvBool("CREATE_DUMMY_USERS", false),
		},
		Server: models.ServerConfig{
			Addr:            getEnvString("SERVER_ADDR", ":8080"),
			ReadTimeout:     readTimeout,
			WriteTimeout:    writeTimeout,
			ShutdownTimeout: shutdownTimeout,
			MetricsEnabled:  getEnvBool("METRICS_ENABLED", true),
		},
		Auth: models.AuthConfig{
			HMACSecret: os.Getenv("JWT_SECRET"),
			Issuer:     os.Getenv("JWT_ISSUER"),
			ClockSkew:  clockSkew,
		},
		Ethereum: models.EthereumConfig{
			RPCURL:           os.Getenv("ETH_RPC_URL"),
			MinConfirmations: getEnvInt("ETH_MIN_CONFIRMATIONS", 3),
			CallTimeout:      chainCallTimeout,
		},
		Bitcoin: models.BitcoinConfig{
			APIBaseURL:       getEnvString("BTC_API_URL", "https://blockstream.info/api"),
			Enabled:          getEnvBool("BTC_ENABLED", true),
			MinConfirmations: getEnvInt("BTC_MIN_CONFIRMATIONS", 3),
			ToleranceSats:    int64(getEnvInt("BTC_TOLERANCE_SATS", 1000)),
			CallTimeout:      chainCallTimeout,
		},
		PayPal: models.PayPalConfig{
			ClientID: os.Getenv("PAYPAL_CLIENT_ID"),
			Secret:   os.Getenv("PAYPAL_CLIENT_SECRET"),
		},
		Formance: models.FormanceConfig{
			StackURL:     os.Getenv("FORMANCE_STACK_URL"),
			ClientID:     os.Getenv("FORMANCE_CLIENT_ID"),
			ClientSecret: os.Getenv("FORMANCE_CLIENT_SECRET"),
			LedgerName:   getEnvString("FORMANCE_LEDGER_NAME", "tsu-purchases"),
		},
		RateLimit: models.RateLimitConfig{
			RequestsPerMinute: requestsPerMinute,
			Burst:             getEnvInt("RATE_LIMIT_BURST", 5),
			TTL:               rateLimitTTL,
		},
		Logging: models.LoggingConfig{
			File:       os.Getenv("LOG_FILE"),
			MaxSizeMB:  getEnvInt("LOG_MAX_SIZE_MB", 100),
			MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 5),
			MaxAgeDays: getEnvInt("LOG_MAX_AGE_DAYS", 30),
		},
		Treasury: models.TreasuryConfig{
			EthAddress: os.Getenv("TREASURY_ETH_ADDRESS"),
			BtcAddress: os.Getenv("TREASURY_BTC_ADDRESS"),
		},
		Telemetry: models.TelemetryConfig{
			ServiceName: getEnvString("OTEL_SERVICE_NAME", "tsu-payments"),
			Environment: os.Getenv("DEPLOY_ENV"),
			Endpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
			Insecure:    getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", false),
			Headers:     telemetry.ParseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS")),
			Traces:      getEnvBool("OTEL_TRACES_ENABLED", false),
			SampleRatio: sampleRatio,
		},
		LedgerBackend: ledgerBackend,
		PaymentsFile:  getEnvString("PAYMENTS_FILE", "payments.yaml"),
	}, nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		return duration, nil
	}
	return defaultValue, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	if value := os.Getenv(key); value != "" {
		floatValue, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid number for %s: %q (%w)", key, value, err)
		}
		return floatValue, nil
	}
	return defaultValue, nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
