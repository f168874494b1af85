package controllers

import (
	"errors"
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/labstack/echo/v4"
	"github.com/x402-Systems/xmr-x402-facilitator/db/models"
	"github.com/x402-Systems/xmr-x402-facilitator/lib/responses"
	"github.com/x402-Systems/xmr-x402-facilitator/lib/service"
	"github.com/x402-Systems/xmr-x402-facilitator/price"
	"github.com/x402-Systems/xmr-x402-facilitator/wallet"
)

// InvoiceController : Merchant-facing invoice endpoints
type InvoiceController struct {
	svc *service.FacilitatorService
}

func NewInvoiceController(svc *service.FacilitatorService) *InvoiceController {
	return &InvoiceController{svc: svc}
}

type CreateInvoiceRequestBody struct {
	AmountUSD float64 `json:"amount_usd" validate:"required,gt=0"`
	Metadata  string  `json:"metadata"`
	PayerID   string  `json:"payer_id"`
}

type InvoiceResponseBody struct {
	Address        string `json:"address"`
	AmountPiconero int64  `json:"amount_piconero"`
	InvoiceID      string `json:"invoice_id"`
	Status         string `json:"status"`
	Network        string `json:"network"`
}

func (controller *InvoiceController) invoiceResponse(invoice *models.Invoice) *InvoiceResponseBody {
	return &InvoiceResponseBody{
		Address:        invoice.Address,
		AmountPiconero: invoice.AmountRequired,
		InvoiceID:      invoice.Metadata,
		Status:         invoice.Status,
		Network:        controller.svc.NetworkID(),
	}
}

// CreateInvoice issues a new payment challenge. Repeated calls carrying the
// same metadata key return the existing pending invoice instead of
// allocating a new subaddress.
func (controller *InvoiceController) CreateInvoice(c echo.Context) error {
	var body CreateInvoiceRequestBody

	if err := c.Bind(&body); err != nil {
		c.Logger().Errorf("Failed to load create invoice request body: %v", err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}

	if err := c.Validate(&body); err != nil {
		c.Logger().Errorf("Invalid create invoice request body: %v", err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}

	invoice, err := controller.svc.CreateInvoice(c.Request().Context(), body.AmountUSD, body.Metadata, body.PayerID)
	if err != nil {
		c.Logger().Errorf("Error creating invoice: amount_usd:%v metadata:%s error: %v", body.AmountUSD, body.Metadata, err)
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

	return c.JSON(http.StatusOK, controller.invoiceResponse(invoice))
}

// GetInvoice returns the stored invoice for an address.
func (controller *InvoiceController) GetInvoice(c echo.Context) error {
	address := c.Param("address")

	invoice, err := controller.svc.LookupInvoice(c.Request().Context(), address)
	if err != nil {
		if errors.Is(err, service.ErrInvoiceNotFound) {
			return c.JSON(http.StatusNotFound, responses.InvoiceNotFoundError)
		}
		c.Logger().Errorf("Error looking up invoice: address:%s error: %v", address, err)
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, responses.GeneralServerError)
	}

	return c.JSON(http.StatusOK, controller.invoiceResponse(invoice))
}
