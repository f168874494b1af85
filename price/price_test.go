package price

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ziflex/lecho/v3"
)

type fixedProvider struct {
	name  string
	price float64
	err   error
	calls int
}

func (p *fixedProvider) Name() string { return p.name }

func (p *fixedProvider) USDPrice(ctx context.Context) (float64, error) {
	p.calls++
	return p.price, p.err
}

func testResolver(providers ...Provider) *Resolver {
	return NewResolver(lecho.New(io.Discard), time.Second, providers...)
}

func TestAtomicAmountConvertsAndTruncates(t *testing.T) {
	resolver := testResolver(&fixedProvider{name: "a", price: 150})

	// $15 at $150/XMR is exactly 0.1 XMR
	amount, err := resolver.AtomicAmount(context.Background(), 15)
	require.NoError(t, err)
	assert.Equal(t, int64(100_000_000_000), amount)

	// non-terminating division truncates, never rounds up
	resolver = testResolver(&fixedProvider{name: "a", price: 3})
	amount, err = resolver.AtomicAmount(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(333_333_333_333), amount)
}

func TestAtomicAmountFailsOverToNextProvider(t *testing.T) {
	primary := &fixedProvider{name: "primary", err: errors.New("rate limited")}
	secondary := &fixedProvider{name: "secondary", price: 200}
	resolver := testResolver(primary, secondary)

	amount, err := resolver.AtomicAmount(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, int64(50_000_000_000), amount)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, secondary.calls)
}

func TestAtomicAmountSkipsNonPositivePrice(t *testing.T) {
	bogus := &fixedProvider{name: "bogus", price: 0}
	good := &fixedProvider{name: "good", price: 100}
	resolver := testResolver(bogus, good)

	amount, err := resolver.AtomicAmount(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(10_000_000_000), amount)
}

func TestAtomicAmountAllProvidersDown(t *testing.T) {
	resolver := testResolver(
		&fixedProvider{name: "a", err: errors.New("down")},
		&fixedProvider{name: "b", err: errors.New("down")},
	)

	_, err := resolver.AtomicAmount(context.Background(), 10)
	assert.ErrorIs(t, err, ErrPriceUnavailable)
}

func TestAtomicAmountProviderOrderWins(t *testing.T) {
	primary := &fixedProvider{name: "primary", price: 100}
	secondary := &fixedProvider{name: "secondary", price: 999}
	resolver := testResolver(primary, secondary)

	amount, err := resolver.AtomicAmount(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(10_000_000_000), amount)
	assert.Equal(t, 0, secondary.calls)
}

func TestCoinGeckoParsesPrice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/simple/price", r.URL.Path)
		assert.Equal(t, "monero", r.URL.Query().Get("ids"))
		w.Write([]byte(`{"monero":{"usd":154.21}}`))
	}))
	defer server.Close()

	provider := NewCoinGecko()
	provider.URL = server.URL + "/api/v3/simple/price?ids=monero&vs_currencies=usd"

	price, err := provider.USDPrice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 154.21, price)
}

func TestCoinGeckoMissingPrice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	provider := NewCoinGecko()
	provider.URL = server.URL

	_, err := provider.USDPrice(context.Background())
	assert.Error(t, err)
}

func TestKrakenParsesTicker(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":[],"result":{"XXMRZUSD":{"c":["153.94","1.0"]}}}`))
	}))
	defer server.Close()

	provider := NewKraken()
	provider.URL = server.URL

	price, err := provider.USDPrice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 153.94, price)
}

func TestKrakenReportsAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":["EQuery:Unknown asset pair"],"result":{}}`))
	}))
	defer server.Close()

	provider := NewKraken()
	provider.URL = server.URL

	_, err := provider.USDPrice(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "Unknown asset pair")
}
