package transport

import (
	"github.com/labstack/echo/v4"
	"github.com/x402-Systems/xmr-x402-facilitator/controllers"
	"github.com/x402-Systems/xmr-x402-facilitator/lib/service"
)

func RegisterEndpoints(svc *service.FacilitatorService, e *echo.Echo, strictRateLimitMiddleware echo.MiddlewareFunc, logMw echo.MiddlewareFunc) {
	invoiceCtrl := controllers.NewInvoiceController(svc)
	x402Ctrl := controllers.NewX402Controller(svc)
	protectedCtrl := controllers.NewProtectedController(svc)

	// merchant endpoints
	e.POST("/invoices", invoiceCtrl.CreateInvoice, strictRateLimitMiddleware, logMw)
	e.GET("/invoices/:address", invoiceCtrl.GetInvoice, logMw)

	// x402 verification endpoints (public/client)
	e.GET("/supported", x402Ctrl.Supported, logMw)
	e.POST("/verify", x402Ctrl.Verify, logMw)
	e.POST("/settle", x402Ctrl.Settle, strictRateLimitMiddleware, logMw)

	// demo resource behind the paywall
	e.GET("/protected", protectedCtrl.GetProtectedResource, logMw)
}
