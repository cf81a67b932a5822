package database

import (
	"context"
	"fmt"

	"github.com/agodwin-ops/olympics-pwa-laurentian/internal/models"
	"github.com/jackc/pgx/v5"
)

// InsertActivityBatch writes activity records in a single transaction.
func (s *PostgresStore) InsertActivityBatch(ctx context.Context, batch []models.Activity) error {
	if len(batch) == 0 {
		return nil
	}
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		b := &pgx.Batch{}
		for _, a := range batch {
			b.Queue(`
				INSERT INTO activity_log (id, user_id, actor_id, action, payload, occurred_at)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (id) DO NOTHING`,
				a.ID, a.UserID, a.ActorID, a.Action, a.Payload, a.OccurredAt,
			)
		}
		if err := tx.SendBatch(ctx, b).Close(); err != nil {
			return fmt.Errorf("failed to insert activity batch: %w", err)
		}
		return nil
	})
}
