package models

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

// Invoice : Invoice Model
//
// One row per payment subaddress. The address doubles as the invoice
// identity; amount_required is fixed at creation and never re-priced.
type Invoice struct {
	Address        string       `json:"address" bun:",pk" validate:"required"`
	AmountRequired int64        `json:"amount_piconero" validate:"gte=0"`
	Metadata       string       `json:"invoice_id" bun:",nullzero"`
	PayerID        string       `json:"payer_id,omitempty" bun:",nullzero"`
	Status         string       `json:"status" bun:",default:'pending'"`
	TxID           string       `json:"tx_id,omitempty" bun:",nullzero"`
	CreatedAt      time.Time    `json:"created_at" bun:",nullzero,notnull,default:current_timestamp"`
	UpdatedAt      bun.NullTime `json:"updated_at"`
	SettledAt      bun.NullTime `json:"settled_at"`
}

func (i *Invoice) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	switch query.(type) {
	case *bun.UpdateQuery:
		i.UpdatedAt = bun.NullTime{Time: time.Now()}
	}
	return nil
}

var _ bun.BeforeAppendModelHook = (*Invoice)(nil)
