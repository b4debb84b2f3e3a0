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

package common

import (
	"context"
	"fmt"

	"tsu-payments-go/internal/models"

	"go.uber.org/zap"
)

// UserDirectory is the user lookup needed by the admin tools
type UserDirectory interface {
	GetUsers(ctx context.Context) ([]models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// UserInfo represents simplified user information for command-line utilities
type UserInfo struct {
	Id         string
	Name       string
	Email      string
	EthAddress string
	BtcAddress string
}

func userInfo(u *models.User) UserInfo {
	return UserInfo{
		Id:         u.Id,
		Name:       u.Name,
		Email:      u.Email,
		EthAddress: u.VerifiedEthAddress,
		BtcAddress: u.VerifiedBtcAddress,
	}
}

// InitializeUsers returns the user with emailFilter, or every user when the
// filter is empty.
func InitializeUsers(ctx context.Context, users UserDirectory, emailFilter string, logger *zap.Logger) ([]UserInfo, error) {
	var result []UserInfo

	if emailFilter != "" {
		logger.Info("Looking up user by email", zap.String("email", emailFilter))
		user, err := users.GetUserByEmail(ctx, emailFilter)
		if err != nil {
			return nil, fmt.Errorf("user not found: %w", err)
		}
		result = append(result, userInfo(user))
	} else {
		allUsers, err := users.GetUsers(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get users: %w", err)
		}
		for i := range allUsers {
			result = append(result, userInfo(&allUsers[i]))
		}
	}

	logger.Info("Retrieved users", zap.Int("count", len(result)))
	return result, nil
}
