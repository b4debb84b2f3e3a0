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

package models

import "time"

// Config represents the application configuration
type Config struct {
	Database      DatabaseConfig
	Server        ServerConfig
	Auth          AuthConfig
	Ethereum      EthereumConfig
	Bitcoin       BitcoinConfig
	PayPal        PayPalConfig
	Formance      FormanceConfig
	RateLimit     RateLimitConfig
	Logging       LoggingConfig
	Treasury      TreasuryConfig
	Telemetry     TelemetryConfig
	LedgerBackend string
	PaymentsFile  string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Path             string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
	ConnMaxIdleTime  time.Duration
	PingTimeout      time.Duration
	CreateDummyUsers bool
}

// ServerConfig holds HTTP listener settings
type ServerConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	MetricsEnabled  bool
}

// AuthConfig holds bearer token validation settings
type AuthConfig struct {
	HMACSecret string
	Issuer     string
	ClockSkew  time.Duration
}

// EthereumConfig holds JSON-RPC provider settings. An empty RPCURL disables
// Ethereum purchases.
type EthereumConfig struct {
	RPCURL           string
	MinConfirmations int
	CallTimeout      time.Duration
}

// BitcoinConfig holds block explorer settings
type BitcoinConfig struct {
	APIBaseURL       string
	Enabled          bool
	MinConfirmations int
	ToleranceSats    int64
	CallTimeout      time.Duration
}

// PayPalConfig holds payment provider credentials
type PayPalConfig struct {
	ClientID string
	Secret   string
}

// Configured reports whether PayPal credentials are present
func (c PayPalConfig) Configured() bool {
	return c.ClientID != "" && c.Secret != ""
}

// FormanceConfig holds Formance Stack connection settings
type FormanceConfig struct {
	StackURL     string
	ClientID     string
	ClientSecret string
	LedgerName   string
}

// RateLimitConfig holds per-client purchase throttling settings
type RateLimitConfig struct {
	RequestsPerMinute float64
	Burst             int
	TTL               time.Duration
}

// LoggingConfig holds log output settings
type LoggingConfig struct {
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// TreasuryConfig holds recipient address overrides
type TreasuryConfig struct {
	EthAddress string
	BtcAddress string
}

// TelemetryConfig holds OpenTelemetry trace export settings
type TelemetryConfig struct {
	ServiceName string
	Environment string
	Endpoint    string
	Insecure    bool
	Headers     map[string]string
	Traces      bool
	SampleRatio float64
}
