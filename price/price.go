package price

import (
	"context"
	"errors"
	"time"

	"github.com/x402-Systems/xmr-x402-facilitator/common"
	"github.com/ziflex/lecho/v3"
)

// ErrPriceUnavailable means every configured provider failed.
var ErrPriceUnavailable = errors.New("no price provider available")

// Provider is a single read-only USD/XMR price source.
type Provider interface {
	Name() string
	// USDPrice returns the current price of 1 XMR in USD.
	USDPrice(ctx context.Context) (float64, error)
}

// Resolver converts fiat amounts into piconero using an ordered provider
// list. Providers are tried in priority order, each call independently
// time-bounded; the first valid positive price wins.
type Resolver struct {
	Providers []Provider
	Timeout   time.Duration
	Logger    *lecho.Logger
}

func NewResolver(logger *lecho.Logger, timeout time.Duration, providers ...Provider) *Resolver {
	return &Resolver{
		Providers: providers,
		Timeout:   timeout,
		Logger:    logger,
	}
}

// AtomicAmount resolves how many piconero usdAmount is worth. The division
// result is truncated, never rounded up: a client can only be asked for at
// most the exact converted amount.
func (r *Resolver) AtomicAmount(ctx context.Context, usdAmount float64) (int64, error) {
	for _, provider := range r.Providers {
		callCtx, cancel := context.WithTimeout(ctx, r.Timeout)
		usdPerXMR, err := provider.USDPrice(callCtx)
		cancel()
		if err != nil {
			r.Logger.Errorf("Price provider failed, falling through: provider:%s error: %v", provider.Name(), err)
			continue
		}
		if usdPerXMR <= 0 {
			r.Logger.Errorf("Price provider returned non-positive price, falling through: provider:%s price:%f", provider.Name(), usdPerXMR)
			continue
		}
		return int64(usdAmount / usdPerXMR * common.PiconeroPerXMR), nil
	}
	return 0, ErrPriceUnavailable
}
