package migrations

import (
	"context"

	"github.com/uptrace/bun"
	"github.com/x402-Systems/xmr-x402-facilitator/db/models"
)

/* Since this init will reflect the latest model fields when run on fresh db
make sure that when you add/remove columns in subsequent migrations IfNotExists/IfExists is used
otherwise it's going to result in errors.
*/
func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		if _, err := db.NewCreateTable().Model((*models.Invoice)(nil)).IfNotExists().Exec(ctx); err != nil {
			return err
		}
		return nil
	}, nil)
}
