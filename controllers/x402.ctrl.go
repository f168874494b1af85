package controllers

import (
	"errors"
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/labstack/echo/v4"
	"github.com/x402-Systems/xmr-x402-facilitator/common"
	"github.com/x402-Systems/xmr-x402-facilitator/lib/responses"
	"github.com/x402-Systems/xmr-x402-facilitator/lib/service"
	"github.com/x402-Systems/xmr-x402-facilitator/wallet"
)

// X402Controller : verification and settlement endpoints of the x402 flow
type X402Controller struct {
	svc *service.FacilitatorService
}

func NewX402Controller(svc *service.FacilitatorService) *X402Controller {
	return &X402Controller{svc: svc}
}

// PaymentPayload is the Monero-scheme payload carried inside an x402
// verify/settle request.
type PaymentPayload struct {
	Address string `json:"address" validate:"required"`
	TxID    string `json:"tx_id"`
	TxKey   string `json:"tx_key"`
}

type X402RequestBody struct {
	X402Version    int            `json:"x402Version"`
	PaymentPayload PaymentPayload `json:"payment_payload"`
}

type VerifyResponseBody struct {
	IsValid       bool   `json:"is_valid"`
	InvalidReason string `json:"invalid_reason,omitempty"`
}

type SettleResponseBody struct {
	Success     bool   `json:"success"`
	Transaction string `json:"transaction"`
	Network     string `json:"network"`
	Payer       string `json:"payer"`
}

type SupportedKind struct {
	X402Version int    `json:"x402Version"`
	Scheme      string `json:"scheme"`
	Network     string `json:"network"`
}

type SupportedResponseBody struct {
	Kinds []SupportedKind `json:"kinds"`
}

// Supported advertises the payment kinds this facilitator settles.
func (controller *X402Controller) Supported(c echo.Context) error {
	return c.JSON(http.StatusOK, &SupportedResponseBody{
		Kinds: []SupportedKind{{
			X402Version: common.X402Version,
			Scheme:      common.SchemeExact,
			Network:     controller.svc.NetworkID(),
		}},
	})
}

func (controller *X402Controller) bindPayload(c echo.Context) (*PaymentPayload, error) {
	var body X402RequestBody
	if err := c.Bind(&body); err != nil {
		return nil, err
	}
	if err := c.Validate(&body.PaymentPayload); err != nil {
		return nil, err
	}
	if controller.svc.Config.VerificationMode == common.VerificationModeTxKey &&
		(body.PaymentPayload.TxID == "" || body.PaymentPayload.TxKey == "") {
		return nil, errors.New("tx_id and tx_key are required")
	}
	return &body.PaymentPayload, nil
}

// Verify checks a payment proof against an invoice without settling it.
func (controller *X402Controller) Verify(c echo.Context) error {
	payload, err := controller.bindPayload(c)
	if err != nil {
		c.Logger().Errorf("Invalid verify request body: %v", err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}

	result, err := controller.svc.VerifyPayment(c.Request().Context(), payload.Address, payload.TxID, payload.TxKey)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvoiceNotFound):
			return c.JSON(http.StatusNotFound, responses.InvoiceNotFoundError)
		case errors.Is(err, wallet.ErrProofInvalid):
			return c.JSON(http.StatusOK, &VerifyResponseBody{
				IsValid:       false,
				InvalidReason: responses.InvalidProofError.Message,
			})
		case errors.Is(err, wallet.ErrRPC):
			c.Logger().Errorf("Wallet backend failure on verify: address:%s error: %v", payload.Address, err)
			return c.JSON(http.StatusBadGateway, responses.WalletUnavailableError)
		default:
			c.Logger().Errorf("Error verifying payment: address:%s error: %v", payload.Address, err)
			sentry.CaptureException(err)
			return c.JSON(http.StatusInternalServerError, responses.GeneralServerError)
		}
	}

	// verification passes on amount alone, confirmation depth is judged at
	// settlement time
	if result.Status == service.SettlementStatusInsufficient {
		return c.JSON(http.StatusOK, &VerifyResponseBody{
			IsValid:       false,
			InvalidReason: "Insufficient amount",
		})
	}
	return c.JSON(http.StatusOK, &VerifyResponseBody{IsValid: true})
}

// Settle verifies a payment proof and, when it covers the invoice at the
// required confirmation depth, records the invoice as paid. The proof check
// is polled on a fixed interval to absorb propagation delay. Settling an
// already-paid invoice is a no-op success.
func (controller *X402Controller) Settle(c echo.Context) error {
	payload, err := controller.bindPayload(c)
	if err != nil {
		c.Logger().Errorf("Invalid settle request body: %v", err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}

	invoice, err := controller.svc.LookupInvoice(c.Request().Context(), payload.Address)
	if err != nil {
		if errors.Is(err, service.ErrInvoiceNotFound) {
			return c.JSON(http.StatusNotFound, responses.InvoiceNotFoundError)
		}
		c.Logger().Errorf("Error looking up invoice: address:%s error: %v", payload.Address, err)
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, responses.GeneralServerError)
	}

	result, err := controller.svc.CheckOrSettleWithRetry(c.Request().Context(), payload.Address, payload.TxID, payload.TxKey)
	if err != nil {
		switch {
		case errors.Is(err, wallet.ErrProofInvalid):
			return c.JSON(http.StatusBadRequest, responses.InvalidProofError)
		case errors.Is(err, wallet.ErrRPC):
			c.Logger().Errorf("Wallet backend failure on settle: address:%s error: %v", payload.Address, err)
			return c.JSON(http.StatusBadGateway, responses.WalletUnavailableError)
		default:
			c.Logger().Errorf("Error settling payment: address:%s error: %v", payload.Address, err)
			sentry.CaptureException(err)
			return c.JSON(http.StatusInternalServerError, responses.GeneralServerError)
		}
	}

	if !result.Settled() {
		failure := responses.SettlementFailedError(
			int64(result.Received), invoice.AmountRequired,
			result.Confirmations, controller.svc.Config.ConfirmationsRequired,
		)
		return c.JSON(failure.HttpStatusCode, failure)
	}

	payer := invoice.PayerID
	if payer == "" {
		payer = "anonymous"
	}
	return c.JSON(http.StatusOK, &SettleResponseBody{
		Success:     true,
		Transaction: result.TxID,
		Network:     controller.svc.NetworkID(),
		Payer:       payer,
	})
}
