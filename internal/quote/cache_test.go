package quote

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

type countingClient struct {
	calls int64
	err   error
	price float64
}

func (c *countingClient) Lookup(_ context.Context, symbol string) (*Quote, error) {
	atomic.AddInt64(&c.calls, 1)
	if c.err != nil {
		return nil, c.err
	}
	return &Quote{Symbol: symbol, Name: "Test Corp", Price: decimal.NewFromFloat(c.price)}, nil
}

func TestCachedClient_ServesFromCacheWithinTTL(t *testing.T) {
	upstream := &countingClient{price: 100}
	cached := NewCachedClient(upstream, time.Minute)

	q1, err := cached.Lookup(context.Background(), "AAPL")
	assert.NoError(t, err)
	q2, err := cached.Lookup(context.Background(), "AAPL")
	assert.NoError(t, err)

	assert.Equal(t, int64(1), atomic.LoadInt64(&upstream.calls))
	assert.True(t, q1.Price.Equal(q2.Price))
}

func TestCachedClient_ExpiredEntryIsRefetched(t *testing.T) {
	upstream := &countingClient{price: 100}
	cached := NewCachedClient(upstream, time.Nanosecond)

	_, err := cached.Lookup(context.Background(), "AAPL")
	assert.NoError(t, err)
	time.Sleep(time.Millisecond)
	_, err = cached.Lookup(context.Background(), "AAPL")
	assert.NoError(t, err)

	assert.Equal(t, int64(2), atomic.LoadInt64(&upstream.calls))
}

func TestCachedClient_CaseInsensitiveKey(t *testing.T) {
	upstream := &countingClient{price: 100}
	cached := NewCachedClient(upstream, time.Minute)

	_, _ = cached.Lookup(context.Background(), "aapl")
	_, _ = cached.Lookup(context.Background(), "AAPL")

	assert.Equal(t, int64(1), atomic.LoadInt64(&upstream.calls))
}

func TestCachedClient_LookupFailureIsNotCached(t *testing.T) {
	upstream := &countingClient{err: ErrQuoteUnavailable}
	cached := NewCachedClient(upstream, time.Minute)

	_, err := cached.Lookup(context.Background(), "AAPL")
	assert.ErrorIs(t, err, ErrQuoteUnavailable)

	upstream.err = nil
	upstream.price = 42
	q, err := cached.Lookup(context.Background(), "AAPL")
	assert.NoError(t, err)
	assert.Equal(t, "42", q.Price.String())
}

func TestRefreshAll_UpdatesEveryCachedSymbol(t *testing.T) {
	upstream := &countingClient{price: 100}
	cached := NewCachedClient(upstream, time.Hour)

	_, _ = cached.Lookup(context.Background(), "AAPL")
	_, _ = cached.Lookup(context.Background(), "NFLX")

	upstream.price = 200
	assert.NoError(t, cached.RefreshAll(context.Background()))

	q, err := cached.Lookup(context.Background(), "AAPL")
	assert.NoError(t, err)
	assert.Equal(t, "200", q.Price.String())

	// 2 initial lookups + 2 refresh fetches, nothing more on the cached read
	assert.Equal(t, int64(4), atomic.LoadInt64(&upstream.calls))
}
