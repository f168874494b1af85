package responses

import (
	"fmt"
	"net/http"

	"github.com/getsentry/sentry-go"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/labstack/echo/v4"
)

type ErrorResponse struct {
	Error          bool   `json:"error"`
	Code           int    `json:"code"`
	Message        string `json:"message"`
	HttpStatusCode int    `json:"-"`
}

var GeneralServerError = ErrorResponse{
	Error:          true,
	Code:           6,
	Message:        "Something went wrong. Please try again later",
	HttpStatusCode: 500,
}

var BadArgumentsError = ErrorResponse{
	Error:          true,
	Code:           8,
	Message:        "Bad arguments",
	HttpStatusCode: 400,
}

var InvoiceNotFoundError = ErrorResponse{
	Error:          true,
	Code:           4,
	Message:        "invoice not found",
	HttpStatusCode: 404,
}

var WalletUnavailableError = ErrorResponse{
	Error:          true,
	Code:           3,
	Message:        "wallet backend unavailable",
	HttpStatusCode: 502,
}

var PriceUnavailableError = ErrorResponse{
	Error:          true,
	Code:           5,
	Message:        "no price provider available. Please try again later",
	HttpStatusCode: 503,
}

var InvalidProofError = ErrorResponse{
	Error:          true,
	Code:           2,
	Message:        "invalid payment proof or transaction not found",
	HttpStatusCode: 400,
}

// SettlementFailedError carries the human-readable reason why a settlement
// attempt was rejected. Callers must branch on the code, not the message.
func SettlementFailedError(received, required int64, confirmations, requiredConfirmations uint64) ErrorResponse {
	return ErrorResponse{
		Error:          true,
		Code:           2,
		Message:        fmt.Sprintf("Payment failed. Received: %d/%d piconero. Confirmations: %d/%d", received, required, confirmations, requiredConfirmations),
		HttpStatusCode: 400,
	}
}

func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	c.Logger().Error(err)
	if hub := sentryecho.GetHubFromContext(c); hub != nil && isErrAllowedForSentry(err) {
		hub.WithScope(func(scope *sentry.Scope) {
			scope.SetExtra("RequestID", c.Response().Header().Get(echo.HeaderXRequestID))
			hub.CaptureException(err)
		})
	}
	if he, ok := err.(*echo.HTTPError); ok {
		c.JSON(he.Code, he.Message)
		return
	}
	c.JSON(http.StatusInternalServerError, GeneralServerError)
}

// invoice lookups on unknown addresses are routine client noise,
// everything else is worth a sentry event
func isErrAllowedForSentry(err error) bool {
	he, ok := err.(*echo.HTTPError)
	if !ok {
		return true
	}
	msg, ok := he.Message.(echo.Map)
	if !ok {
		return true
	}
	return msg["code"] != InvoiceNotFoundError.Code
}
