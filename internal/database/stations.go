package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agodwin-ops/olympics-pwa-laurentian/internal/models"
	"github.com/jackc/pgx/v5"
)

// DefaultStations is the standard ten-station board.
func DefaultStations() []models.Station {
	return []models.Station{
		{ID: 1, Name: "Training Grounds", RequiredSkill: models.SkillStrength, RewardXP: 25, RewardGold: 1, RewardItems: map[string]int{"water": 1}},
		{ID: 2, Name: "Long Distance Track", RequiredSkill: models.SkillEndurance, RewardXP: 30, RewardGold: 1},
		{ID: 3, Name: "Strategy Hall", RequiredSkill: models.SkillTactics, RewardXP: 35, RewardGold: 2},
		{ID: 4, Name: "Climbing Wall", RequiredSkill: models.SkillClimbing, RewardXP: 40, RewardGold: 2, RewardItems: map[string]int{"gatorade": 1}},
		{ID: 5, Name: "Sprint Lanes", RequiredSkill: models.SkillSpeed, RewardXP: 45, RewardGold: 2},
		{ID: 6, Name: "Weight Room", RequiredSkill: models.SkillStrength, RewardXP: 50, RewardGold: 3},
		{ID: 7, Name: "Marathon Route", RequiredSkill: models.SkillEndurance, RewardXP: 55, RewardGold: 3, RewardItems: map[string]int{"first_aid_kit": 1}},
		{ID: 8, Name: "War Room", RequiredSkill: models.SkillTactics, RewardXP: 60, RewardGold: 4},
		{ID: 9, Name: "Summit Ascent", RequiredSkill: models.SkillClimbing, RewardXP: 70, RewardGold: 4},
		{ID: 10, Name: "Olympic Final", RequiredSkill: models.SkillSpeed, RewardXP: 100, RewardGold: 5, RewardItems: map[string]int{"gatorade": 1, "water": 1}},
	}
}

// SeedStations inserts the default board, leaving existing stations untouched.
func (s *PostgresStore) SeedStations(ctx context.Context) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, st := range DefaultStations() {
			items, err := json.Marshal(st.RewardItems)
			if err != nil {
				return err
			}
			_, err = tx.Exec(ctx, `
				INSERT INTO gameboard_stations (id, name, required_skill, reward_xp, reward_gold, reward_items)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (id) DO NOTHING`,
				st.ID, st.Name, st.RequiredSkill, st.RewardXP, st.RewardGold, items,
			)
			if err != nil {
				return fmt.Errorf("failed to seed station %d: %w", st.ID, err)
			}
		}
		return nil
	})
}
