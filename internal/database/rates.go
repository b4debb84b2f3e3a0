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
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"tsu-payments-go/internal/models"
	"tsu-payments-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// GetTsuRates returns the latest active rate snapshot
func (s *Service) GetTsuRates(ctx context.Context) (*models.TsuRate, error) {
	var rate models.TsuRate
	var priceStr, cryptoJSON string
	err := s.db.QueryRowContext(ctx, queryGetActiveTsuRates).Scan(
		&rate.Id, &priceStr, &cryptoJSON, &rate.Active, &rate.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrRatesUnavailable
		}
		zap.L().Error("Failed to query tsu rates", zap.Error(err))
		return nil, fmt.Errorf("unable to query tsu rates: %w", err)
	}

	rate.TsuPrice, err = decimal.NewFromString(priceStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse tsu price '%s': %w", priceStr, err)
	}

	rate.CryptoRates = make(map[string]decimal.Decimal)
	if err := json.Unmarshal([]byte(cryptoJSON), &rate.CryptoRates); err != nil {
		return nil, fmt.Errorf("failed to parse crypto rates: %w", err)
	}

	return &rate, nil
}

// SetTsuRates deactivates the current snapshot and inserts a new active one
func (s *Service) SetTsuRates(ctx context.Context, tsuPrice decimal.Decimal, cryptoRates map[string]decimal.Decimal) (*models.TsuRate, error) {
	if !tsuPrice.IsPositive() {
		return nil, fmt.Errorf("tsu price must be positive, got %s", tsuPrice.String())
	}

	cryptoJSON, err := json.Marshal(cryptoRates)
	if err != nil {
		return nil, fmt.Errorf("failed to encode crypto rates: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, queryDeactivateTsuRates); err != nil {
		return nil, fmt.Errorf("failed to deactivate previous rates: %w", err)
	}

	rate := &models.TsuRate{
		Id:          uuid.New().String(),
		TsuPrice:    tsuPrice,
		CryptoRates: cryptoRates,
		Active:      true,
		CreatedAt:   time.Now().UTC(),
	}
	if _, err := tx.ExecContext(ctx, queryInsertTsuRates, rate.Id, tsuPrice.String(), string(cryptoJSON), rate.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to insert rates: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit rates: %w", err)
	}

	zap.L().Info("TSU rates updated",
		zap.String("id", rate.Id),
		zap.String("tsu_price", tsuPrice.String()),
		zap.String("crypto_rates", string(cryptoJSON)))
	return rate, nil
}
