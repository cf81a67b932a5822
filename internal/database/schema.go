package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema creates the tables the realtime server reads and writes. Every
// statement is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id UUID PRIMARY KEY,
	email TEXT NOT NULL UNIQUE,
	password TEXT NOT NULL,
	username TEXT NOT NULL UNIQUE,
	user_program TEXT NOT NULL DEFAULT '',
	profile_picture_url TEXT NOT NULL DEFAULT '',
	is_admin BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS player_stats (
	user_id UUID PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
	current_xp INTEGER NOT NULL DEFAULT 0,
	total_xp INTEGER NOT NULL DEFAULT 0 CHECK (total_xp >= 0),
	gold INTEGER NOT NULL DEFAULT 3,
	gameboard_xp INTEGER NOT NULL DEFAULT 0,
	gameboard_moves INTEGER NOT NULL DEFAULT 0 CHECK (gameboard_moves >= 0),
	gameboard_position INTEGER NOT NULL DEFAULT 1,
	unit_xp JSONB NOT NULL DEFAULT '{}',
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS player_skills (
	user_id UUID PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
	strength INTEGER NOT NULL DEFAULT 1 CHECK (strength BETWEEN 1 AND 5),
	endurance INTEGER NOT NULL DEFAULT 1 CHECK (endurance BETWEEN 1 AND 5),
	tactics INTEGER NOT NULL DEFAULT 1 CHECK (tactics BETWEEN 1 AND 5),
	climbing INTEGER NOT NULL DEFAULT 1 CHECK (climbing BETWEEN 1 AND 5),
	speed INTEGER NOT NULL DEFAULT 1 CHECK (speed BETWEEN 1 AND 5)
);

CREATE TABLE IF NOT EXISTS player_inventory (
	user_id UUID PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
	water INTEGER NOT NULL DEFAULT 0,
	gatorade INTEGER NOT NULL DEFAULT 0,
	first_aid_kit INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS assignments (
	id UUID PRIMARY KEY,
	name TEXT NOT NULL,
	unit_id UUID NOT NULL,
	max_xp INTEGER NOT NULL DEFAULT 100
);

CREATE TABLE IF NOT EXISTS gameboard_stations (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	required_skill TEXT NOT NULL,
	reward_xp INTEGER NOT NULL DEFAULT 0,
	reward_gold INTEGER NOT NULL DEFAULT 0,
	reward_items JSONB NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS reward_events (
	id UUID PRIMARY KEY,
	user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	amount INTEGER NOT NULL,
	kind TEXT NOT NULL,
	resource TEXT NOT NULL,
	skill TEXT NOT NULL DEFAULT '',
	assignment_id UUID,
	unit_id UUID,
	awarded_by UUID NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	awarded_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS dice_rolls (
	id UUID PRIMARY KEY,
	user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	station_id INTEGER NOT NULL,
	skill TEXT NOT NULL,
	skill_level INTEGER NOT NULL,
	success_chance INTEGER NOT NULL,
	roll_result INTEGER NOT NULL,
	was_successful BOOLEAN NOT NULL,
	rolled_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS activity_log (
	id UUID PRIMARY KEY,
	user_id UUID NOT NULL,
	actor_id UUID NOT NULL,
	action TEXT NOT NULL,
	payload JSONB NOT NULL,
	occurred_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS player_stats_total_xp_idx ON player_stats (total_xp DESC);
CREATE INDEX IF NOT EXISTS reward_events_user_idx ON reward_events (user_id, awarded_at);
`

// Migrate applies Schema.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
