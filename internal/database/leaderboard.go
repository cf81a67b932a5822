package database

import (
	"context"
	"fmt"

	"github.com/agodwin-ops/olympics-pwa-laurentian/internal/models"
	"github.com/jackc/pgx/v5"
)

// TopN returns the best students ordered by total XP, then username. Admins
// are not ranked.
func (s *PostgresStore) TopN(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT u.id, u.username, u.user_program,
		       COALESCE(p.total_xp, 0), COALESCE(p.gold, 3), COALESCE(p.gameboard_position, 1)
		FROM users u
		LEFT JOIN player_stats p ON p.user_id = u.id
		WHERE NOT u.is_admin
		ORDER BY COALESCE(p.total_xp, 0) DESC, u.username ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.LeaderboardEntry, error) {
		var e models.LeaderboardEntry
		err := row.Scan(&e.UserID, &e.Username, &e.UserProgram, &e.TotalXP, &e.Gold, &e.GameboardPosition)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan leaderboard: %w", err)
	}
	return rankEntries(entries), nil
}
