package trading

import (
	"context"
	"errors"
	"strings"

	"github.com/kamilszcz/StockMarket/internal/ledger"
	"github.com/kamilszcz/StockMarket/internal/quote"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidSymbol = errors.New("invalid symbol")
	ErrInvalidInput  = errors.New("shares must be a positive whole number")
	ErrInvalidAmount = errors.New("amount must be at least 1")
)

const maxSymbolLength = 5

// Trade describes one executed buy or sell.
type Trade struct {
	Symbol string          `json:"symbol"`
	Name   string          `json:"name"`
	Shares int64           `json:"shares"`
	Price  decimal.Decimal `json:"price"`
	Total  decimal.Decimal `json:"total"`
}

type Service interface {
	Buy(ctx context.Context, userID, symbol string, shares int64) (*Trade, error)
	Sell(ctx context.Context, userID, symbol string, shares int64) (*Trade, error)
	AddBalance(ctx context.Context, userID string, amount int64) (decimal.Decimal, error)
	GetHistory(ctx context.Context, userID string) ([]ledger.Transaction, error)
}

type service struct {
	ledgerRepo  ledger.Repository
	quoteClient quote.Client
}

// NewTradeService builds the trade engine. quoteClient must be the live
// (uncached) client: an executed trade settles at the price in force at
// execution time, not at display time.
func NewTradeService(ledgerRepo ledger.Repository, quoteClient quote.Client) Service {
	return &service{
		ledgerRepo:  ledgerRepo,
		quoteClient: quoteClient,
	}
}

// validateOrder re-checks what the request layer should already have
// enforced. Entry points that bypass structured validation still cannot
// reach the ledger with a malformed order.
func validateOrder(symbol string, shares int64) (string, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" || len(symbol) > maxSymbolLength {
		return "", ErrInvalidInput
	}
	if shares < 1 {
		return "", ErrInvalidInput
	}
	return symbol, nil
}

func (s *service) Buy(ctx context.Context, userID, symbol string, shares int64) (*Trade, error) {
	symbol, err := validateOrder(symbol, shares)
	if err != nil {
		return nil, err
	}

	q, err := s.quoteClient.Lookup(ctx, symbol)
	if err != nil {
		return nil, ErrInvalidSymbol
	}

	record, err := s.ledgerRepo.ExecuteBuy(ctx, userID, q.Symbol, shares, q.Price)
	if err != nil {
		return nil, err
	}

	return &Trade{
		Symbol: record.Symbol,
		Name:   q.Name,
		Shares: record.Shares,
		Price:  record.Price,
		Total:  record.Price.Mul(decimal.NewFromInt(record.Shares)),
	}, nil
}

func (s *service) Sell(ctx context.Context, userID, symbol string, shares int64) (*Trade, error) {
	symbol, err := validateOrder(symbol, shares)
	if err != nil {
		return nil, err
	}

	// Fast rejection before the network call. The ledger re-checks both
	// conditions under the row lock, this only spares a quote lookup.
	net, exists, err := s.ledgerRepo.NetShares(ctx, userID, symbol)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ledger.ErrNoSuchHolding
	}
	if shares > net {
		return nil, ledger.ErrInsufficientShares
	}

	// A failed lookup aborts the sale with no ledger mutation.
	q, err := s.quoteClient.Lookup(ctx, symbol)
	if err != nil {
		return nil, ErrInvalidSymbol
	}

	record, err := s.ledgerRepo.ExecuteSell(ctx, userID, q.Symbol, shares, q.Price)
	if err != nil {
		return nil, err
	}

	return &Trade{
		Symbol: record.Symbol,
		Name:   q.Name,
		Shares: record.Shares,
		Price:  record.Price,
		Total:  record.Price.Mul(decimal.NewFromInt(shares)),
	}, nil
}

func (s *service) AddBalance(ctx context.Context, userID string, amount int64) (decimal.Decimal, error) {
	if amount < 1 {
		return decimal.Zero, ErrInvalidAmount
	}

	if err := s.ledgerRepo.AddToBalance(ctx, userID, decimal.NewFromInt(amount)); err != nil {
		return decimal.Zero, err
	}
	return s.ledgerRepo.GetBalance(ctx, userID)
}

func (s *service) GetHistory(ctx context.Context, userID string) ([]ledger.Transaction, error) {
	return s.ledgerRepo.GetTransactions(ctx, userID)
}
