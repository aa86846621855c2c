package portfolio

import (
	"context"
	"errors"
	"fmt"

	"github.com/Rhymond/go-money"
	"github.com/kamilszcz/StockMarket/internal/ledger"
	"github.com/kamilszcz/StockMarket/internal/quote"
	"github.com/shopspring/decimal"
)

// ErrPricingUnavailable means at least one held symbol could not be priced.
// The valuation is all-or-nothing: a page with a silently missing position
// would show a wrong total.
var ErrPricingUnavailable = errors.New("could not price all holdings")

// Position is one row of the valuation page.
type Position struct {
	Symbol      string          `json:"symbol"`
	Name        string          `json:"name"`
	NetShares   int64           `json:"net_shares"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	MarketValue decimal.Decimal `json:"market_value"`
	Display     string          `json:"market_value_usd"`
}

type Portfolio struct {
	CashBalance  decimal.Decimal `json:"cash_balance"`
	CashDisplay  string          `json:"cash_balance_usd"`
	Holdings     []Position      `json:"holdings"`
	TotalValue   decimal.Decimal `json:"total_value"`
	TotalDisplay string          `json:"total_value_usd"`
}

type Service interface {
	GetPortfolio(ctx context.Context, userID string) (*Portfolio, error)
}

type service struct {
	ledgerRepo  ledger.Repository
	quoteClient quote.Client
}

// NewPortfolioService builds the aggregator. The quote client here is the
// cached one: valuation is a display concern and tolerates the cache TTL.
func NewPortfolioService(ledgerRepo ledger.Repository, quoteClient quote.Client) Service {
	return &service{
		ledgerRepo:  ledgerRepo,
		quoteClient: quoteClient,
	}
}

// usd renders a decimal dollar amount as "$1,234.56".
func usd(d decimal.Decimal) string {
	cents := d.Round(2).Mul(decimal.NewFromInt(100)).IntPart()
	return money.New(cents, money.USD).Display()
}

func (s *service) GetPortfolio(ctx context.Context, userID string) (*Portfolio, error) {
	balance, err := s.ledgerRepo.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}

	holdings, err := s.ledgerRepo.GetHoldings(ctx, userID)
	if err != nil {
		return nil, err
	}

	positions := make([]Position, 0, len(holdings))
	total := balance
	for _, h := range holdings {
		q, err := s.quoteClient.Lookup(ctx, h.Symbol)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrPricingUnavailable, h.Symbol)
		}

		marketValue := q.Price.Mul(decimal.NewFromInt(h.NetShares))
		positions = append(positions, Position{
			Symbol:      h.Symbol,
			Name:        q.Name,
			NetShares:   h.NetShares,
			UnitPrice:   q.Price,
			MarketValue: marketValue,
			Display:     usd(marketValue),
		})
		total = total.Add(marketValue)
	}

	return &Portfolio{
		CashBalance:  balance,
		CashDisplay:  usd(balance),
		Holdings:     positions,
		TotalValue:   total,
		TotalDisplay: usd(total),
	}, nil
}
