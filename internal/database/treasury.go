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

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tsu-payments-go/internal/models"
	"tsu-payments-go/internal/store"

	"go.uber.org/zap"
)

// StoreTreasuryAddressParams contains the parameters for registering a recipient address
type StoreTreasuryAddressParams struct {
	Method   models.PaymentMethod
	Address  string
	WalletId string
}

// SetTreasuryOverrides pins recipient addresses from configuration. An
// override wins over the stored row for the same method.
func (s *Service) SetTreasuryOverrides(cfg models.TreasuryConfig) {
	if cfg.EthAddress != "" {
		s.treasury[models.PaymentMethodEthereum] = cfg.EthAddress
	}
	if cfg.BtcAddress != "" {
		s.treasury[models.PaymentMethodBitcoin] = cfg.BtcAddress
	}
}

func (s *Service) StoreTreasuryAddress(ctx context.Context, params StoreTreasuryAddressParams) (*models.TreasuryAddress, error) {
	zap.L().Info("Storing treasury address",
		zap.String("method", string(params.Method)),
		zap.String("address", params.Address),
		zap.String("wallet_id", params.WalletId))

	_, err := s.db.ExecContext(ctx, queryUpsertTreasuryAddress, string(params.Method), params.Address, params.WalletId)
	if err != nil {
		zap.L().Error("Failed to store treasury address",
			zap.String("method", string(params.Method)),
			zap.Error(err))
		return nil, fmt.Errorf("unable to store treasury address: %w", err)
	}

	return &models.TreasuryAddress{
		Method:    params.Method,
		Address:   params.Address,
		WalletId:  params.WalletId,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// GetTreasuryAddress returns the recipient address for a chain payment method
func (s *Service) GetTreasuryAddress(ctx context.Context, method models.PaymentMethod) (string, error) {
	if address, ok := s.treasury[method]; ok {
		return address, nil
	}

	var row models.TreasuryAddress
	var methodStr string
	err := s.db.QueryRowContext(ctx, queryGetTreasuryAddress, string(method)).Scan(
		&methodStr, &row.Address, &row.WalletId, &row.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("%w: %s", store.ErrTreasuryNotConfigured, method)
		}
		return "", fmt.Errorf("unable to query treasury address: %w", err)
	}

	return row.Address, nil
}
