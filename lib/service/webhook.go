package service

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/x402-Systems/xmr-x402-facilitator/common"
	"github.com/x402-Systems/xmr-x402-facilitator/db/models"
)

// StartWebhookSubscription posts every settled invoice to the configured
// webhook url so merchants get notified without polling the status endpoint.
func (svc *FacilitatorService) StartWebhookSubscription(ctx context.Context) {
	svc.Logger.Infof("Starting webhook subscription with webhook url %s", svc.Config.WebhookUrl)

	paidInvoices := make(chan models.Invoice)
	subID := svc.InvoicePubSub.Subscribe(common.InvoiceStatusPaid, paidInvoices)
	defer svc.InvoicePubSub.Unsubscribe(subID, common.InvoiceStatusPaid)

	for {
		select {
		case <-ctx.Done():
			return
		case invoice := <-paidInvoices:
			svc.postToWebhook(invoice)
		}
	}
}

func (svc *FacilitatorService) postToWebhook(invoice models.Invoice) {
	payload := new(bytes.Buffer)
	err := json.NewEncoder(payload).Encode(invoice)
	if err != nil {
		svc.Logger.Error(err)
		return
	}

	resp, err := http.Post(svc.Config.WebhookUrl, "application/json", payload)
	if err != nil {
		svc.Logger.Error(err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, err := io.ReadAll(resp.Body)
		if err != nil {
			svc.Logger.Error(err)
		}
		svc.Logger.Errorf("Webhook status code was %d, body: %s", resp.StatusCode, msg)
	}
}
