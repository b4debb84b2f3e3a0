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

const (
	// User queries
	queryGetActiveUsers = `
		SELECT id, name, email, verified_eth_address, verified_btc_address, created_at, updated_at
		FROM users
		WHERE active = 1
		ORDER BY created_at`

	queryInsertUser = `
		INSERT OR IGNORE INTO users (id, name, email) VALUES (?, ?, ?)`

	queryGetUserById = `
		SELECT id, name, email, verified_eth_address, verified_btc_address, created_at, updated_at
		FROM users
		WHERE id = ? AND active = 1`

	queryGetUserByEmail = `
		SELECT id, name, email, verified_eth_address, verified_btc_address, created_at, updated_at
		FROM users
		WHERE email = ? AND active = 1`

	queryUpdateVerifiedEthAddress = `
		UPDATE users SET verified_eth_address = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND active = 1`

	queryUpdateVerifiedBtcAddress = `
		UPDATE users SET verified_btc_address = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND active = 1`

	// Rate queries
	queryGetActiveTsuRates = `
		SELECT id, tsu_price, crypto_rates, active, created_at
		FROM tsu_rates
		WHERE active = 1
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1`

	queryDeactivateTsuRates = `
		UPDATE tsu_rates SET active = 0 WHERE active = 1`

	queryInsertTsuRates = `
		INSERT INTO tsu_rates (id, tsu_price, crypto_rates, active, created_at)
		VALUES (?, ?, ?, 1, ?)`

	// Treasury queries
	queryUpsertTreasuryAddress = `
		INSERT INTO treasury_addresses (method, address, wallet_id)
		VALUES (?, ?, ?)
		ON CONFLICT(method) DO UPDATE SET address = excluded.address, wallet_id = excluded.wallet_id`

	queryGetTreasuryAddress = `
		SELECT method, address, wallet_id, created_at
		FROM treasury_addresses
		WHERE method = ?`

	// Processed payment queries
	queryCheckProcessedPayment = `
		SELECT 1 FROM processed_payments WHERE payment_reference = ? LIMIT 1`

	queryInsertProcessedPayment = `
		INSERT INTO processed_payments (
			payment_reference, payment_method, user_id, amount_processed, tsu_credited,
			verification_data, transaction_id
		) VALUES (?, ?, ?, ?, ?, ?, ?)`

	queryLinkProcessedPayment = `
		UPDATE processed_payments SET transaction_id = ? WHERE payment_reference = ?`

	queryGetProcessedPayment = `
		SELECT payment_reference, payment_method, user_id, amount_processed, tsu_credited,
		       verification_data, created_at
		FROM processed_payments
		WHERE payment_reference = ?`

	// Balance queries
	queryGetBalance = `
		SELECT balance
		FROM account_balances
		WHERE user_id = ? AND asset = ?`

	queryGetAllUserBalances = `
		SELECT id, user_id, asset, balance, last_transaction_id, version, updated_at
		FROM account_balances
		WHERE user_id = ? AND balance != '0'
		ORDER BY asset`

	queryGetTransactionAmounts = `
		SELECT amount
		FROM transactions
		WHERE user_id = ? AND asset = ? AND status = 'confirmed'`

	// Transaction queries
	queryCheckDuplicateTransaction = `
		SELECT id FROM transactions WHERE payment_reference = ? LIMIT 1`

	queryGetAccountBalance = `
		SELECT id, balance, version
		FROM account_balances
		WHERE user_id = ? AND asset = ?`

	queryInsertAccountBalance = `
		INSERT INTO account_balances (id, user_id, asset, balance, version)
		VALUES (?, ?, ?, ?, ?)`

	queryInsertTransaction = `
		INSERT INTO transactions (
			id, user_id, asset, transaction_type, amount, balance_before, balance_after,
			payment_reference, payment_method, fiat_amount, currency, status, created_at, processed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryUpdateAccountBalance = `
		UPDATE account_balances
		SET balance = ?, last_transaction_id = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE user_id = ? AND asset = ? AND version = ?`

	queryInsertJournalEntry = `
		INSERT INTO journal_entries (id, transaction_id, account_type, account_id, debit_amount, credit_amount)
		VALUES (?, ?, ?, ?, ?, ?)`

	queryGetTransactionHistory = `
		SELECT id, user_id, asset, transaction_type, amount, balance_before, balance_after,
		       payment_reference, payment_method, fiat_amount, currency, status, created_at, processed_at
		FROM transactions
		WHERE user_id = ? AND asset = ?
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?`
)
