package controllers

import (
	"errors"
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/labstack/echo/v4"
	"github.com/x402-Systems/xmr-x402-facilitator/lib/responses"
	"github.com/x402-Systems/xmr-x402-facilitator/lib/service"
	"github.com/x402-Systems/xmr-x402-facilitator/price"
	"github.com/x402-Systems/xmr-x402-facilitator/wallet"
)

// ProtectedController : demo resource gated by an x402 payment challenge
type ProtectedController struct {
	svc *service.FacilitatorService
}

func NewProtectedController(svc *service.FacilitatorService) *ProtectedController {
	return &ProtectedController{svc: svc}
}

type PaymentRequirementsResponseBody struct {
	Protocol       string `json:"protocol"`
	Network        string `json:"network"`
	AmountPiconero int64  `json:"amount_piconero"`
	Address        string `json:"address"`
	InvoiceID      string `json:"invoice_id"`
}

// GetProtectedResource grants access when the X-Monero-Address header names
// an invoice whose subaddress has received the owed amount; otherwise it
// answers 402 with a fresh payment challenge.
func (controller *ProtectedController) GetProtectedResource(c echo.Context) error {
	ctx := c.Request().Context()

	if address := c.Request().Header.Get("X-Monero-Address"); address != "" {
		invoice, err := controller.svc.LookupInvoice(ctx, address)
		if err != nil && !errors.Is(err, service.ErrInvoiceNotFound) {
			sentry.CaptureException(err)
			return c.JSON(http.StatusInternalServerError, responses.GeneralServerError)
		}
		if invoice != nil {
			received, err := controller.svc.Wallet.ReceivedByAddress(ctx, address)
			if err != nil {
				c.Logger().Errorf("Wallet backend failure on access check: address:%s error: %v", address, err)
				return c.JSON(http.StatusBadGateway, responses.WalletUnavailableError)
			}
			if received >= uint64(invoice.AmountRequired) {
				return c.String(http.StatusOK, "ACCESS_GRANTED")
			}
		}
	}

	invoice, err := controller.svc.CreateInvoice(ctx, controller.svc.Config.PricePerAccessUSD, "", "")
	if err != nil {
		c.Logger().Errorf("Error generating payment challenge: %v", err)
		switch {
		case errors.Is(err, price.ErrPriceUnavailable):
			return c.JSON(http.StatusServiceUnavailable, responses.PriceUnavailableError)
		case errors.Is(err, wallet.ErrRPC):
			return c.JSON(http.StatusBadGateway, responses.WalletUnavailableError)
		default:
			sentry.CaptureException(err)
			return c.JSON(http.StatusInternalServerError, responses.GeneralServerError)
		}
	}

	c.Response().Header().Set("WWW-Authenticate", "x402")
	return c.JSON(http.StatusPaymentRequired, &PaymentRequirementsResponseBody{
		Protocol:       "monero",
		Network:        controller.svc.NetworkID(),
		AmountPiconero: invoice.AmountRequired,
		Address:        invoice.Address,
		InvoiceID:      invoice.Metadata,
	})
}
