package migrations

import (
	"context"

	"github.com/uptrace/bun"
)

// The idempotent-creation lookup scans by metadata + status, the reaper by
// status + created_at. Plain indexes only: metadata intentionally carries no
// unique constraint, duplicate pending invoices under racing identical
// creation requests are accepted behavior.
func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		if _, err := db.ExecContext(ctx, "CREATE INDEX IF NOT EXISTS invoices_metadata_status_idx ON invoices (metadata, status)"); err != nil {
			return err
		}
		if _, err := db.ExecContext(ctx, "CREATE INDEX IF NOT EXISTS invoices_status_created_at_idx ON invoices (status, created_at)"); err != nil {
			return err
		}
		return nil
	}, nil)
}
