package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MockRepository is an in-memory Repository used by service tests. It keeps
// the same per-user serialization contract as the Postgres implementation by
// holding one mutex across the check-and-append pair.
type MockRepository struct {
	mu           sync.Mutex
	Balances     map[string]decimal.Decimal
	Transactions []Transaction
}

func NewMockRepository() *MockRepository {
	return &MockRepository{
		Balances: make(map[string]decimal.Decimal),
	}
}

func (m *MockRepository) GetBalance(_ context.Context, userID string) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	balance, ok := m.Balances[userID]
	if !ok {
		return decimal.Zero, ErrCashNotFound
	}
	return balance, nil
}

func (m *MockRepository) AddToBalance(_ context.Context, userID string, amount decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	balance, ok := m.Balances[userID]
	if !ok {
		return ErrCashNotFound
	}
	m.Balances[userID] = balance.Add(amount)
	return nil
}

func (m *MockRepository) ExecuteBuy(_ context.Context, userID, symbol string, shares int64, price decimal.Decimal) (*Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	balance, ok := m.Balances[userID]
	if !ok {
		return nil, ErrCashNotFound
	}
	totalCost := price.Mul(decimal.NewFromInt(shares))
	if balance.LessThan(totalCost) {
		return nil, ErrInsufficientFunds
	}

	record := Transaction{
		ID:        uuid.New(),
		UserID:    userID,
		Symbol:    symbol,
		Shares:    shares,
		Price:     price,
		CreatedAt: time.Now(),
	}
	m.Transactions = append(m.Transactions, record)
	m.Balances[userID] = balance.Sub(totalCost)
	return &record, nil
}

func (m *MockRepository) ExecuteSell(_ context.Context, userID, symbol string, shares int64, price decimal.Decimal) (*Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	balance, ok := m.Balances[userID]
	if !ok {
		return nil, ErrCashNotFound
	}

	net, exists := m.netSharesLocked(userID, symbol)
	if !exists {
		return nil, ErrNoSuchHolding
	}
	if shares > net {
		return nil, ErrInsufficientShares
	}

	record := Transaction{
		ID:        uuid.New(),
		UserID:    userID,
		Symbol:    symbol,
		Shares:    -shares,
		Price:     price,
		CreatedAt: time.Now(),
	}
	m.Transactions = append(m.Transactions, record)
	m.Balances[userID] = balance.Add(price.Mul(decimal.NewFromInt(shares)))
	return &record, nil
}

func (m *MockRepository) GetHoldings(_ context.Context, userID string) ([]Holding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	net := make(map[string]int64)
	for _, t := range m.Transactions {
		if t.UserID == userID {
			net[t.Symbol] += t.Shares
		}
	}

	var holdings []Holding
	for symbol, shares := range net {
		if shares != 0 {
			holdings = append(holdings, Holding{Symbol: symbol, NetShares: shares})
		}
	}
	sort.Slice(holdings, func(i, j int) bool { return holdings[i].Symbol < holdings[j].Symbol })
	return holdings, nil
}

func (m *MockRepository) NetShares(_ context.Context, userID, symbol string) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	net, exists := m.netSharesLocked(userID, symbol)
	return net, exists, nil
}

func (m *MockRepository) netSharesLocked(userID, symbol string) (int64, bool) {
	var net int64
	var exists bool
	for _, t := range m.Transactions {
		if t.UserID == userID && t.Symbol == symbol {
			net += t.Shares
			exists = true
		}
	}
	return net, exists
}

func (m *MockRepository) GetTransactions(_ context.Context, userID string) ([]Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var transactions []Transaction
	for _, t := range m.Transactions {
		if t.UserID == userID {
			transactions = append(transactions, t)
		}
	}
	sort.Slice(transactions, func(i, j int) bool {
		return transactions[i].CreatedAt.After(transactions[j].CreatedAt)
	})
	return transactions, nil
}
