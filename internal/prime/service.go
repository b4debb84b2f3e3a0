package prime

import (
	"context"
	"fmt"
	"time"

	"tsu-payments-go/internal/models"
	"tsu-payments-go/internal/transport"

	"github.com/coinbase-samples/prime-sdk-go/client"
	"github.com/coinbase-samples/prime-sdk-go/credentials"
	"github.com/coinbase-samples/prime-sdk-go/portfolios"
	"github.com/coinbase-samples/prime-sdk-go/wallets"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultPortfolioName = "Default Portfolio"
	walletTypeTrading    = "TRADING"
	requestTimeout       = 60 * time.Second
)

// treasuryAsset is the Prime symbol and network used to receive a payment method.
type treasuryAsset struct {
	Symbol  string
	Network string
}

var treasuryAssets = map[models.PaymentMethod]treasuryAsset{
	models.PaymentMethodEthereum: {Symbol: "ETH", Network: "ethereum-mainnet"},
	models.PaymentMethodBitcoin:  {Symbol: "BTC", Network: "bitcoin-mainnet"},
}

// Service provisions treasury wallets and receive addresses in Coinbase Prime.
type Service struct {
	portfoliosSvc portfolios.PortfoliosService
	walletsSvc    wallets.WalletsService
}

func NewService(creds *credentials.Credentials) (*Service, error) {
	httpClient, err := transport.NewHTTPClient(requestTimeout)
	if err != nil {
		return nil, fmt.Errorf("unable to create http client: %w", err)
	}

	restClient := client.NewRestClient(creds, *httpClient)

	return &Service{
		portfoliosSvc: portfolios.NewPortfoliosService(restClient),
		walletsSvc:    wallets.NewWalletsService(restClient),
	}, nil
}

func (s *Service) FindDefaultPortfolio(ctx context.Context) (*models.Portfolio, error) {
	response, err := s.portfoliosSvc.ListPortfolios(ctx, &portfolios.ListPortfoliosRequest{})
	if err != nil {
		return nil, fmt.Errorf("unable to list portfolios: %w", err)
	}

	for _, p := range response.Portfolios {
		if p.Name == defaultPortfolioName {
			return &models.Portfolio{Id: p.Id, Name: p.Name}, nil
		}
	}

	return nil, fmt.Errorf("default portfolio not found")
}

func (s *Service) findWallet(ctx context.Context, portfolioId, name, symbol string) (*models.Wallet, error) {
	response, err := s.walletsSvc.ListWallets(ctx, &wallets.ListWalletsRequest{
		PortfolioId: portfolioId,
		Type:        walletTypeTrading,
		Symbols:     []string{symbol},
	})
	if err != nil {
		return nil, fmt.Errorf("unable to list wallets: %w", err)
	}

	for _, w := range response.Wallets {
		if w.Name == name {
			return &models.Wallet{Id: w.Id, Name: w.Name, Symbol: w.Symbol, Type: w.Type}, nil
		}
	}
	return nil, nil
}

// EnsureTreasuryWallet returns the treasury trading wallet for a payment method,
// creating it on first use.
func (s *Service) EnsureTreasuryWallet(ctx context.Context, portfolioId string, method models.PaymentMethod) (*models.Wallet, error) {
	asset, ok := treasuryAssets[method]
	if !ok {
		return nil, fmt.Errorf("no treasury asset for payment method %q", method)
	}
	name := treasuryWalletName(asset.Symbol)

	wallet, err := s.findWallet(ctx, portfolioId, name, asset.Symbol)
	if err != nil {
		return nil, err
	}
	if wallet != nil {
		zap.L().Info("Treasury wallet exists",
			zap.String("wallet_id", wallet.Id),
			zap.String("symbol", asset.Symbol))
		return wallet, nil
	}

	response, err := s.walletsSvc.CreateWallet(ctx, &wallets.CreateWalletRequest{
		PortfolioId:    portfolioId,
		Name:           name,
		Symbol:         asset.Symbol,
		Type:           walletTypeTrading,
		IdempotencyKey: uuid.New().String(),
	})
	if err != nil {
		return nil, fmt.Errorf("unable to create wallet: %w", err)
	}
	zap.L().Info("Treasury wallet requested",
		zap.String("activity_id", response.ActivityId),
		zap.String("symbol", asset.Symbol))

	wallet, err = s.findWallet(ctx, portfolioId, name, asset.Symbol)
	if err != nil {
		return nil, err
	}
	if wallet == nil {
		return nil, fmt.Errorf("wallet %q not yet available (activity %s), retry setup", name, response.ActivityId)
	}
	return wallet, nil
}

// CreateDepositAddress creates a receive address on the wallet's network.
func (s *Service) CreateDepositAddress(ctx context.Context, portfolioId string, wallet *models.Wallet, method models.PaymentMethod) (*models.DepositAddress, error) {
	asset, ok := treasuryAssets[method]
	if !ok {
		return nil, fmt.Errorf("no treasury asset for payment method %q", method)
	}

	response, err := s.walletsSvc.CreateWalletAddress(ctx, &wallets.CreateWalletAddressRequest{
		PortfolioId: portfolioId,
		WalletId:    wallet.Id,
		NetworkId:   asset.Network,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to create wallet address: %w", err)
	}

	return &models.DepositAddress{
		Id:      response.AccountIdentifier,
		Address: response.Address,
		Network: asset.Network,
		Asset:   asset.Symbol,
	}, nil
}

func treasuryWalletName(symbol string) string {
	return "TSU Treasury " + symbol
}
