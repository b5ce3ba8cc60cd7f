package db

import (
	"context"

	"onfa-ticketing/internal/models"
)

// CountByTier returns how many tickets were ever registered for tier,
// whatever their status. Cancelled tickets keep their slot.
func (d *DB) CountByTier(ctx context.Context, tier models.Tier) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.Ticket)(nil)).
		Where("tier = ?", tier).
		Count(ctx)
}
