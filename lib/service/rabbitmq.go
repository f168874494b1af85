package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/x402-Systems/xmr-x402-facilitator/common"
	"github.com/x402-Systems/xmr-x402-facilitator/db/models"
)

var bufPool sync.Pool = sync.Pool{
	New: func() interface{} { return new(bytes.Buffer) },
}

// StartRabbitMqPublisher pushes settled invoices to a topic exchange for
// downstream consumers (accounting, access provisioning). A single
// publishing connection is held for the lifetime of the routine.
func (svc *FacilitatorService) StartRabbitMqPublisher(ctx context.Context) error {
	conn, err := amqp.Dial(svc.Config.RabbitMQUri)
	if err != nil {
		return err
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	err = ch.ExchangeDeclare(
		svc.Config.RabbitMQInvoiceExchange,
		// topic exchange so consumers can bind on status or network
		"topic",
		// durable, survives broker restarts
		true,
		false,
		false,
		// wait for the server to confirm the declare
		false,
		nil,
	)
	if err != nil {
		return err
	}

	svc.Logger.Infof("Starting rabbitmq publisher")

	paidInvoices := make(chan models.Invoice)
	subID := svc.InvoicePubSub.Subscribe(common.InvoiceStatusPaid, paidInvoices)
	defer svc.InvoicePubSub.Unsubscribe(subID, common.InvoiceStatusPaid)

	for {
		select {
		case <-ctx.Done():
			return context.Canceled
		case invoice := <-paidInvoices:
			svc.publishInvoice(ctx, invoice, ch)
		}
	}
}

func (svc *FacilitatorService) publishInvoice(ctx context.Context, invoice models.Invoice, ch *amqp.Channel) {
	key := fmt.Sprintf("invoice.%s.%s", invoice.Status, svc.Config.Network)

	payload := bufPool.Get().(*bytes.Buffer)
	payload.Reset()
	defer bufPool.Put(payload)

	err := json.NewEncoder(payload).Encode(invoice)
	if err != nil {
		svc.Logger.Error(err)
		return
	}

	err = ch.PublishWithContext(ctx,
		svc.Config.RabbitMQInvoiceExchange,
		key,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        payload.Bytes(),
		},
	)
	if err != nil {
		svc.Logger.Error(err)
		return
	}
	svc.Logger.Debugf("Published invoice to rabbitmq: address:%s key:%s", invoice.Address, key)
}
