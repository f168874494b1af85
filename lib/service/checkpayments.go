package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/x402-Systems/xmr-x402-facilitator/wallet"
)

// CheckOrSettleWithRetry polls CheckOrSettle on a fixed interval until the
// invoice settles or the attempt budget is spent. It absorbs the propagation
// delay between a client broadcasting a payment and the wallet backend
// seeing it, so callers do not have to re-issue the settle request.
//
// Only "not yet there" outcomes are retried: an invisible proof, a transient
// backend failure, or a payment that is still short on amount or
// confirmations. Storage errors and unknown invoices abort immediately.
// The final attempt's outcome is what gets surfaced.
func (svc *FacilitatorService) CheckOrSettleWithRetry(ctx context.Context, address string, txID string, txKey string) (*SettlementResult, error) {
	invoice, err := svc.LookupInvoice(ctx, address)
	if err != nil {
		return nil, err
	}

	attempts := svc.Config.SettlePollAttempts
	if attempts == 0 {
		attempts = 1
	}
	interval := time.Duration(svc.Config.SettlePollDelay) * time.Second
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(interval), attempts-1),
		ctx,
	)

	var result *SettlementResult
	retryErr := backoff.Retry(func() error {
		res, err := svc.settle(ctx, invoice, txID, txKey)
		if err != nil {
			if errors.Is(err, wallet.ErrProofInvalid) || errors.Is(err, wallet.ErrRPC) {
				svc.Logger.Debugf("Settlement attempt failed, will retry: address:%s error: %v", address, err)
				return err
			}
			return backoff.Permanent(err)
		}
		result = res
		if !res.Settled() {
			return fmt.Errorf("payment not settled yet: %s", res.Status)
		}
		return nil
	}, policy)

	if result != nil {
		return result, nil
	}
	return nil, retryErr
}
