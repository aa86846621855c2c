package ledger

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startPostgres runs a throwaway Postgres with the schema loaded and returns
// an open pool. Requires a local Docker daemon, so it is skipped in -short.
func startPostgres(t *testing.T) *sql.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"docker.io/postgres:16-alpine",
		postgres.WithInitScripts(filepath.Join("..", "..", "db", "schema.sql")),
		postgres.WithDatabase("stockmarket_test"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("pgx", connStr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Ping())
	return db
}

func createUserWithCash(t *testing.T, db *sql.DB, balance string) string {
	t.Helper()
	var userID string
	err := db.QueryRow(`
		INSERT INTO users (email, login, password_hash, hash_token)
		VALUES ('trader@example.com', 'trader1', 'x', 'x')
		RETURNING id
	`).Scan(&userID)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO cash (user_id, balance) VALUES ($1, $2)`, userID, balance)
	require.NoError(t, err)
	return userID
}

func TestRepository_BuySellLifecycle(t *testing.T) {
	db := startPostgres(t)
	repo := NewLedgerRepository(db)
	ctx := context.Background()
	userID := createUserWithCash(t, db, "10000.00")

	_, err := repo.ExecuteBuy(ctx, userID, "AAPL", 10, decimal.RequireFromString("150.00"))
	require.NoError(t, err)

	balance, err := repo.GetBalance(ctx, userID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("8500.00")), "got %s", balance)

	_, err = repo.ExecuteSell(ctx, userID, "AAPL", 4, decimal.RequireFromString("160.00"))
	require.NoError(t, err)

	balance, err = repo.GetBalance(ctx, userID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("9140.00")), "got %s", balance)

	holdings, err := repo.GetHoldings(ctx, userID)
	require.NoError(t, err)
	require.Len(t, holdings, 1)
	assert.Equal(t, "AAPL", holdings[0].Symbol)
	assert.Equal(t, int64(6), holdings[0].NetShares)

	transactions, err := repo.GetTransactions(ctx, userID)
	require.NoError(t, err)
	require.Len(t, transactions, 2)
	// Newest first: the sell row, with negative shares.
	assert.Equal(t, int64(-4), transactions[0].Shares)
	assert.Equal(t, int64(10), transactions[1].Shares)
}

func TestRepository_RejectionsLeaveNoTrace(t *testing.T) {
	db := startPostgres(t)
	repo := NewLedgerRepository(db)
	ctx := context.Background()
	userID := createUserWithCash(t, db, "100.00")

	_, err := repo.ExecuteBuy(ctx, userID, "AAPL", 10, decimal.RequireFromString("150.00"))
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	_, err = repo.ExecuteSell(ctx, userID, "AAPL", 1, decimal.RequireFromString("150.00"))
	assert.ErrorIs(t, err, ErrNoSuchHolding)

	_, err = repo.ExecuteBuy(ctx, userID, "NFLX", 2, decimal.RequireFromString("10.00"))
	require.NoError(t, err)
	_, err = repo.ExecuteSell(ctx, userID, "NFLX", 3, decimal.RequireFromString("10.00"))
	assert.ErrorIs(t, err, ErrInsufficientShares)

	balance, err := repo.GetBalance(ctx, userID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("80.00")), "got %s", balance)

	transactions, err := repo.GetTransactions(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, transactions, 1)
}

func TestRepository_ClosedPositionDisappearsFromHoldings(t *testing.T) {
	db := startPostgres(t)
	repo := NewLedgerRepository(db)
	ctx := context.Background()
	userID := createUserWithCash(t, db, "10000.00")

	_, err := repo.ExecuteBuy(ctx, userID, "AAPL", 5, decimal.RequireFromString("100.00"))
	require.NoError(t, err)
	_, err = repo.ExecuteSell(ctx, userID, "AAPL", 5, decimal.RequireFromString("100.00"))
	require.NoError(t, err)

	holdings, err := repo.GetHoldings(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, holdings)

	_, owned, err := repo.NetShares(ctx, userID, "AAPL")
	require.NoError(t, err)
	assert.True(t, owned, "closed positions still have rows, only the net is zero")
}

func TestRepository_AddToBalance(t *testing.T) {
	db := startPostgres(t)
	repo := NewLedgerRepository(db)
	ctx := context.Background()
	userID := createUserWithCash(t, db, "10000.00")

	require.NoError(t, repo.AddToBalance(ctx, userID, decimal.NewFromInt(500)))

	balance, err := repo.GetBalance(ctx, userID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("10500.00")))

	err = repo.AddToBalance(ctx, "00000000-0000-0000-0000-000000000000", decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrCashNotFound)
}

// Ten buys race on one cash row. The row lock must serialize them so exactly
// the affordable prefix commits and the balance never goes negative.
func TestRepository_ConcurrentBuysSerializeOnCashRow(t *testing.T) {
	db := startPostgres(t)
	repo := NewLedgerRepository(db)
	ctx := context.Background()
	userID := createUserWithCash(t, db, "1000.00")

	price := decimal.RequireFromString("150.00")
	var wg sync.WaitGroup
	errs := make([]error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = repo.ExecuteBuy(ctx, userID, "AAPL", 1, price)
		}(i)
	}
	wg.Wait()

	var succeeded, rejected int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrInsufficientFunds):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 6, succeeded)
	assert.Equal(t, 4, rejected)

	balance, err := repo.GetBalance(ctx, userID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("100.00")), "got %s", balance)

	holdings, err := repo.GetHoldings(ctx, userID)
	require.NoError(t, err)
	require.Len(t, holdings, 1)
	assert.Equal(t, int64(6), holdings[0].NetShares)
}
