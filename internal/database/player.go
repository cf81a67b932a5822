package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	apperr "github.com/agodwin-ops/olympics-pwa-laurentian/internal/errors"
	"github.com/agodwin-ops/olympics-pwa-laurentian/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists player state in Postgres. Per-player serialization
// across server instances comes from SELECT ... FOR UPDATE on player_stats.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Pool() *pgxpool.Pool { return s.pool }

// WithUserLock runs fn in a transaction holding the player's row lock.
// Any error from fn rolls the transaction back.
func (s *PostgresStore) WithUserLock(ctx context.Context, userID uuid.UUID, fn func(ctx context.Context, tx PlayerTx) error) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if err := ensurePlayerRows(ctx, tx, userID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `SELECT 1 FROM player_stats WHERE user_id = $1 FOR UPDATE`, userID); err != nil {
			return fmt.Errorf("failed to lock player %s: %w", userID, err)
		}
		return fn(ctx, &pgPlayerTx{tx: tx, userID: userID})
	})
}

// ensurePlayerRows creates the default rows of a known user. Unknown users are
// reported as not found.
func ensurePlayerRows(ctx context.Context, tx pgx.Tx, userID uuid.UUID) error {
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to look up user %s: %w", userID, err)
	}
	if !exists {
		return apperr.NotFound("user %s not found", userID)
	}
	stmts := []string{
		`INSERT INTO player_stats (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`,
		`INSERT INTO player_skills (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`,
		`INSERT INTO player_inventory (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`,
	}
	for _, q := range stmts {
		if _, err := tx.Exec(ctx, q, userID); err != nil {
			return fmt.Errorf("failed to create player rows: %w", err)
		}
	}
	return nil
}

const selectPlayerState = `
	SELECT s.current_xp, s.total_xp, s.gold, s.gameboard_xp, s.gameboard_moves,
	       s.gameboard_position, s.unit_xp,
	       k.strength, k.endurance, k.tactics, k.climbing, k.speed,
	       i.water, i.gatorade, i.first_aid_kit
	FROM player_stats s
	JOIN player_skills k ON k.user_id = s.user_id
	JOIN player_inventory i ON i.user_id = s.user_id
	WHERE s.user_id = $1
`

func scanPlayerState(row pgx.Row, userID uuid.UUID) (*models.PlayerState, error) {
	p := models.NewPlayerState(userID)
	var unitXP []byte
	err := row.Scan(
		&p.CurrentXP, &p.TotalXP, &p.Gold, &p.GameboardXP, &p.GameboardMoves,
		&p.GameboardPosition, &unitXP,
		&p.Skills.Strength, &p.Skills.Endurance, &p.Skills.Tactics, &p.Skills.Climbing, &p.Skills.Speed,
		&p.Inventory.Water, &p.Inventory.Gatorade, &p.Inventory.FirstAidKit,
	)
	if err != nil {
		return nil, err
	}
	if len(unitXP) > 0 {
		if err := json.Unmarshal(unitXP, &p.UnitXP); err != nil {
			return nil, fmt.Errorf("failed to decode unit_xp: %w", err)
		}
	}
	if p.UnitXP == nil {
		p.UnitXP = make(map[string]int)
	}
	return p, nil
}

// GetPlayerState reads a player's state without locking. A known user without
// a stats row yet reads as a fresh player.
func (s *PostgresStore) GetPlayerState(ctx context.Context, userID uuid.UUID) (*models.PlayerState, error) {
	p, err := scanPlayerState(s.pool.QueryRow(ctx, selectPlayerState, userID), userID)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, uerr := s.GetUserByID(ctx, userID); uerr != nil {
			return nil, uerr
		}
		return models.NewPlayerState(userID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get player state: %w", err)
	}
	return p, nil
}

type pgPlayerTx struct {
	tx     pgx.Tx
	userID uuid.UUID
}

func (t *pgPlayerTx) GetPlayerState(ctx context.Context) (*models.PlayerState, error) {
	p, err := scanPlayerState(t.tx.QueryRow(ctx, selectPlayerState, t.userID), t.userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get player state: %w", err)
	}
	return p, nil
}

func (t *pgPlayerTx) Assignment(ctx context.Context, id uuid.UUID) (*models.Assignment, error) {
	var a models.Assignment
	err := t.tx.QueryRow(ctx, `SELECT id, name, unit_id, max_xp FROM assignments WHERE id = $1`, id).
		Scan(&a.ID, &a.Name, &a.UnitID, &a.MaxXP)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("assignment %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}
	return &a, nil
}

func (t *pgPlayerTx) Station(ctx context.Context, id int) (*models.Station, error) {
	var (
		st    models.Station
		items []byte
	)
	err := t.tx.QueryRow(ctx,
		`SELECT id, name, required_skill, reward_xp, reward_gold, reward_items FROM gameboard_stations WHERE id = $1`, id).
		Scan(&st.ID, &st.Name, &st.RequiredSkill, &st.RewardXP, &st.RewardGold, &items)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("station %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get station: %w", err)
	}
	if len(items) > 0 {
		if err := json.Unmarshal(items, &st.RewardItems); err != nil {
			return nil, fmt.Errorf("failed to decode station rewards: %w", err)
		}
	}
	return &st, nil
}

func (t *pgPlayerTx) CommitPlayerState(ctx context.Context, state *models.PlayerState, ev *models.RewardEvent, roll *models.RollAttempt) error {
	if err := t.writeState(ctx, state); err != nil {
		return err
	}
	if ev != nil {
		_, err := t.tx.Exec(ctx, `
			INSERT INTO reward_events
				(id, user_id, amount, kind, resource, skill, assignment_id, unit_id, awarded_by, description, awarded_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			ev.ID, ev.UserID, ev.Amount, ev.Kind, ev.Resource, ev.Skill,
			ev.AssignmentID, ev.UnitID, ev.AwardedBy, ev.Description, ev.AwardedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert reward event: %w", err)
		}
	}
	if roll != nil {
		_, err := t.tx.Exec(ctx, `
			INSERT INTO dice_rolls
				(id, user_id, station_id, skill, skill_level, success_chance, roll_result, was_successful, rolled_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			roll.ID, roll.UserID, roll.StationID, roll.Skill, roll.SkillLevel,
			roll.SuccessChance, roll.RollResult, roll.WasSuccessful, roll.RolledAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert dice roll: %w", err)
		}
	}
	return nil
}

func (t *pgPlayerTx) ResetPlayerState(ctx context.Context, state *models.PlayerState) error {
	return t.writeState(ctx, state)
}

func (t *pgPlayerTx) writeState(ctx context.Context, p *models.PlayerState) error {
	unitXP, err := json.Marshal(p.UnitXP)
	if err != nil {
		return fmt.Errorf("failed to encode unit_xp: %w", err)
	}
	_, err = t.tx.Exec(ctx, `
		UPDATE player_stats
		SET current_xp = $2, total_xp = $3, gold = $4, gameboard_xp = $5,
		    gameboard_moves = $6, gameboard_position = $7, unit_xp = $8, updated_at = NOW()
		WHERE user_id = $1`,
		t.userID, p.CurrentXP, p.TotalXP, p.Gold, p.GameboardXP,
		p.GameboardMoves, p.GameboardPosition, unitXP,
	)
	if err != nil {
		return fmt.Errorf("failed to update player stats: %w", err)
	}
	_, err = t.tx.Exec(ctx, `
		UPDATE player_skills
		SET strength = $2, endurance = $3, tactics = $4, climbing = $5, speed = $6
		WHERE user_id = $1`,
		t.userID, p.Skills.Strength, p.Skills.Endurance, p.Skills.Tactics, p.Skills.Climbing, p.Skills.Speed,
	)
	if err != nil {
		return fmt.Errorf("failed to update player skills: %w", err)
	}
	_, err = t.tx.Exec(ctx, `
		UPDATE player_inventory
		SET water = $2, gatorade = $3, first_aid_kit = $4
		WHERE user_id = $1`,
		t.userID, p.Inventory.Water, p.Inventory.Gatorade, p.Inventory.FirstAidKit,
	)
	if err != nil {
		return fmt.Errorf("failed to update player inventory: %w", err)
	}
	return nil
}
