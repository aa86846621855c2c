package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrCashNotFound       = errors.New("no cash record for user")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInsufficientShares = errors.New("insufficient shares")
	ErrNoSuchHolding      = errors.New("no holding for this symbol")
)

// Transaction is one executed trade. Rows are append-only: positive shares
// record a buy, negative shares a sell. Prior rows are never touched.
type Transaction struct {
	ID        uuid.UUID       `json:"id"`
	UserID    string          `json:"-"`
	Symbol    string          `json:"symbol"`
	Shares    int64           `json:"shares"`
	Price     decimal.Decimal `json:"price"`
	CreatedAt time.Time       `json:"created_at"`
}

// Holding is the derived net position for one symbol.
type Holding struct {
	Symbol    string
	NetShares int64
}

type Repository interface {
	GetBalance(ctx context.Context, userID string) (decimal.Decimal, error)
	AddToBalance(ctx context.Context, userID string, amount decimal.Decimal) error
	ExecuteBuy(ctx context.Context, userID, symbol string, shares int64, price decimal.Decimal) (*Transaction, error)
	ExecuteSell(ctx context.Context, userID, symbol string, shares int64, price decimal.Decimal) (*Transaction, error)
	GetHoldings(ctx context.Context, userID string) ([]Holding, error)
	NetShares(ctx context.Context, userID, symbol string) (int64, bool, error)
	GetTransactions(ctx context.Context, userID string) ([]Transaction, error)
}

type ledgerRepository struct {
	db *sql.DB
}

func NewLedgerRepository(db *sql.DB) Repository {
	return &ledgerRepository{db: db}
}

func (r *ledgerRepository) GetBalance(ctx context.Context, userID string) (decimal.Decimal, error) {
	var balance decimal.Decimal
	query := `SELECT balance FROM cash WHERE user_id = $1`
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, ErrCashNotFound
		}
		return decimal.Zero, fmt.Errorf("could not read balance: %v", err)
	}
	return balance, nil
}

func (r *ledgerRepository) AddToBalance(ctx context.Context, userID string, amount decimal.Decimal) error {
	query := `UPDATE cash SET balance = balance + $1 WHERE user_id = $2`
	result, err := r.db.ExecContext(ctx, query, amount, userID)
	if err != nil {
		return fmt.Errorf("could not update balance: %v", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrCashNotFound
	}
	return nil
}

// lockBalance reads the user's cash row FOR UPDATE. Every trade for a user
// funnels through this lock, so two concurrent buys can never both pass the
// sufficiency check on a stale balance. Other users hit other rows and are
// not blocked.
func lockBalance(ctx context.Context, tx *sql.Tx, userID string) (decimal.Decimal, error) {
	var balance decimal.Decimal
	query := `SELECT balance FROM cash WHERE user_id = $1 FOR UPDATE`
	err := tx.QueryRowContext(ctx, query, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, ErrCashNotFound
		}
		return decimal.Zero, fmt.Errorf("could not lock balance: %v", err)
	}
	return balance, nil
}

func insertTransaction(ctx context.Context, tx *sql.Tx, transaction *Transaction) error {
	query := `
		INSERT INTO transactions (id, user_id, symbol, shares, price, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := tx.ExecContext(ctx, query, transaction.ID, transaction.UserID,
		transaction.Symbol, transaction.Shares, transaction.Price, transaction.CreatedAt)
	return err
}

func setBalance(ctx context.Context, tx *sql.Tx, userID string, balance decimal.Decimal) error {
	query := `UPDATE cash SET balance = $1 WHERE user_id = $2`
	_, err := tx.ExecContext(ctx, query, balance, userID)
	return err
}

// ExecuteBuy appends the buy transaction and debits the balance atomically.
// The sufficiency check runs after the row lock is taken; the caller's
// pre-checks are advisory only.
func (r *ledgerRepository) ExecuteBuy(ctx context.Context, userID, symbol string, shares int64, price decimal.Decimal) (*Transaction, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("could not begin transaction: %v", err)
	}
	defer tx.Rollback()

	balance, err := lockBalance(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	totalCost := price.Mul(decimal.NewFromInt(shares))
	if balance.LessThan(totalCost) {
		return nil, ErrInsufficientFunds
	}

	record := &Transaction{
		ID:        uuid.New(),
		UserID:    userID,
		Symbol:    symbol,
		Shares:    shares,
		Price:     price,
		CreatedAt: time.Now(),
	}
	if err := insertTransaction(ctx, tx, record); err != nil {
		return nil, fmt.Errorf("could not insert transaction: %v", err)
	}
	if err := setBalance(ctx, tx, userID, balance.Sub(totalCost)); err != nil {
		return nil, fmt.Errorf("could not debit balance: %v", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("could not commit buy: %v", err)
	}
	return record, nil
}

// ExecuteSell appends the negative transaction and credits the balance
// atomically. Net shares are summed under the same cash-row lock, so a
// concurrent sell for the same user cannot oversell the position.
func (r *ledgerRepository) ExecuteSell(ctx context.Context, userID, symbol string, shares int64, price decimal.Decimal) (*Transaction, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("could not begin transaction: %v", err)
	}
	defer tx.Rollback()

	balance, err := lockBalance(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	var count int64
	var netShares sql.NullInt64
	query := `SELECT COUNT(*), SUM(shares)::BIGINT FROM transactions WHERE user_id = $1 AND symbol = $2`
	if err := tx.QueryRowContext(ctx, query, userID, symbol).Scan(&count, &netShares); err != nil {
		return nil, fmt.Errorf("could not sum shares: %v", err)
	}
	if count == 0 {
		return nil, ErrNoSuchHolding
	}
	if shares > netShares.Int64 {
		return nil, ErrInsufficientShares
	}

	record := &Transaction{
		ID:        uuid.New(),
		UserID:    userID,
		Symbol:    symbol,
		Shares:    -shares,
		Price:     price,
		CreatedAt: time.Now(),
	}
	if err := insertTransaction(ctx, tx, record); err != nil {
		return nil, fmt.Errorf("could not insert transaction: %v", err)
	}

	proceeds := price.Mul(decimal.NewFromInt(shares))
	if err := setBalance(ctx, tx, userID, balance.Add(proceeds)); err != nil {
		return nil, fmt.Errorf("could not credit balance: %v", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("could not commit sell: %v", err)
	}
	return record, nil
}

// GetHoldings returns net positions grouped by symbol, symbol ascending.
// Symbols whose buys and sells cancel out are filtered here.
func (r *ledgerRepository) GetHoldings(ctx context.Context, userID string) ([]Holding, error) {
	query := `
		SELECT symbol, SUM(shares)::BIGINT AS net_shares
		FROM transactions
		WHERE user_id = $1
		GROUP BY symbol
		HAVING SUM(shares) <> 0
		ORDER BY symbol ASC
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("could not query holdings: %v", err)
	}
	defer rows.Close()

	var holdings []Holding
	for rows.Next() {
		var h Holding
		if err := rows.Scan(&h.Symbol, &h.NetShares); err != nil {
			return nil, err
		}
		holdings = append(holdings, h)
	}
	return holdings, rows.Err()
}

// NetShares sums the user's rows for one symbol. The second return value
// reports whether any rows exist at all, which tells a rejected sell apart:
// no rows is "no such holding", too few is "insufficient shares".
func (r *ledgerRepository) NetShares(ctx context.Context, userID, symbol string) (int64, bool, error) {
	var count int64
	var netShares sql.NullInt64
	query := `SELECT COUNT(*), SUM(shares)::BIGINT FROM transactions WHERE user_id = $1 AND symbol = $2`
	err := r.db.QueryRowContext(ctx, query, userID, symbol).Scan(&count, &netShares)
	if err != nil {
		return 0, false, fmt.Errorf("could not sum shares: %v", err)
	}
	return netShares.Int64, count > 0, nil
}

func (r *ledgerRepository) GetTransactions(ctx context.Context, userID string) ([]Transaction, error) {
	query := `
		SELECT id, user_id, symbol, shares, price, created_at
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("could not query transactions: %v", err)
	}
	defer rows.Close()

	var transactions []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Symbol, &t.Shares, &t.Price, &t.CreatedAt); err != nil {
			return nil, err
		}
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}
