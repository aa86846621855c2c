package quote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLookup_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stable/stock/nflx/quote", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("token"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"companyName":"Netflix Inc","latestPrice":623.71,"symbol":"nflx"}`))
	}))
	defer server.Close()

	client := NewIEXClient("test-key", server.URL)
	q, err := client.Lookup(context.Background(), "nflx")
	assert.NoError(t, err)
	assert.Equal(t, "NFLX", q.Symbol)
	assert.Equal(t, "Netflix Inc", q.Name)
	assert.Equal(t, "623.71", q.Price.String())
}

func TestLookup_FailuresNormalizedToSingleError(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"not found", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}},
		{"server error", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"missing price field", func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte(`{"companyName":"Netflix Inc","symbol":"NFLX"}`))
		}},
		{"mistyped price field", func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte(`{"companyName":"Netflix Inc","latestPrice":"a lot","symbol":"NFLX"}`))
		}},
		{"not json", func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte(`<html>rate limited</html>`))
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(tc.handler)
			defer server.Close()

			client := NewIEXClient("test-key", server.URL)
			_, err := client.Lookup(context.Background(), "NFLX")
			assert.ErrorIs(t, err, ErrQuoteUnavailable)
		})
	}
}

func TestLookup_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	server.Close() // connection refused from here on

	client := NewIEXClient("test-key", server.URL)
	_, err := client.Lookup(context.Background(), "NFLX")
	assert.ErrorIs(t, err, ErrQuoteUnavailable)
}

func TestLookup_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	client := NewIEXClient("test-key", server.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Lookup(ctx, "NFLX")
	assert.ErrorIs(t, err, ErrQuoteUnavailable)
}
