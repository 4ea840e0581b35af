package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS guild_config (
	guild_id TEXT PRIMARY KEY,
	data     TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS role_rewards (
	guild_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	level    INTEGER NOT NULL,
	role_id  TEXT NOT NULL,
	PRIMARY KEY (guild_id, position)
);
CREATE TABLE IF NOT EXISTS profiles (
	guild_id        TEXT NOT NULL,
	user_id         TEXT NOT NULL,
	display_name    TEXT NOT NULL DEFAULT '',
	total_xp        INTEGER NOT NULL DEFAULT 0,
	message_count   INTEGER NOT NULL DEFAULT 0,
	last_message_at INTEGER,
	level           INTEGER NOT NULL DEFAULT 0,
	granted_roles   TEXT NOT NULL DEFAULT '[]',
	PRIMARY KEY (guild_id, user_id)
);
CREATE INDEX IF NOT EXISTS idx_profiles_xp ON profiles (guild_id, total_xp DESC);
CREATE TABLE IF NOT EXISTS xp_events (
	id       TEXT PRIMARY KEY,
	guild_id TEXT NOT NULL,
	user_id  TEXT NOT NULL,
	amount   INTEGER NOT NULL,
	source   TEXT NOT NULL,
	at       INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_xp_events_user ON xp_events (guild_id, user_id, at);
`

// SQLiteStore keeps the same data as JSONStore in relational tables.
type SQLiteStore struct {
	db *sql.DB
}

// inMemory reports whether path names a SQLite in-memory database, which
// lives only as long as its connection.
func inMemory(path string) bool {
	return path == ":memory:" || strings.Contains(path, "mode=memory") || strings.HasPrefix(path, "file::memory:")
}

func NewSQLite(path string) (*SQLiteStore, error) {
	if !inMemory(path) {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer keeps transactions serialized inside the process
	db.SetMaxOpenConns(1)
	if !inMemory(path) {
		db.SetConnMaxIdleTime(10 * time.Minute)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA synchronous=NORMAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GuildConfig(ctx context.Context, guildID string) (GuildConfig, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM guild_config WHERE guild_id = ?`, guildID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return GuildConfig{}, nil
	}
	if err != nil {
		return GuildConfig{}, fmt.Errorf("failed to load guild config: %w", err)
	}
	var cfg GuildConfig
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return GuildConfig{}, fmt.Errorf("failed to decode guild config: %w", err)
	}
	return cfg, nil
}

func (s *SQLiteStore) SetGuildConfig(ctx context.Context, guildID string, cfg GuildConfig) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO guild_config (guild_id, data) VALUES (?, ?)
		ON CONFLICT(guild_id) DO UPDATE SET data = excluded.data`, guildID, string(raw))
	if err != nil {
		return fmt.Errorf("failed to save guild config: %w", err)
	}
	return nil
}

func (s *SQLiteStore) RoleRewards(ctx context.Context, guildID string) (RoleRewardTable, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT level, role_id FROM role_rewards WHERE guild_id = ? ORDER BY position`, guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to load role rewards: %w", err)
	}
	defer rows.Close()

	var table RoleRewardTable
	for rows.Next() {
		var r RoleReward
		if err := rows.Scan(&r.Level, &r.RoleID); err != nil {
			return nil, err
		}
		table = append(table, r)
	}
	return table, rows.Err()
}

func (s *SQLiteStore) SetRoleRewards(ctx context.Context, guildID string, table RoleRewardTable) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM role_rewards WHERE guild_id = ?`, guildID); err != nil {
			return err
		}
		for i, r := range table {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO role_rewards (guild_id, position, level, role_id) VALUES (?, ?, ?, ?)`,
				guildID, i, r.Level, r.RoleID); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLiteStore) Profile(ctx context.Context, userID, guildID string) (UserProfile, error) {
	var p UserProfile
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		p, err = loadProfile(ctx, tx, userID, guildID)
		return err
	})
	return p, err
}

func (s *SQLiteStore) AwardXP(ctx context.Context, userID, guildID string, award Award) (AwardResult, error) {
	var res AwardResult
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		before, err := loadProfile(ctx, tx, userID, guildID)
		if err != nil {
			return err
		}
		res.Before = before
		res.After = before
		if before.InCooldown(award.At, award.Cooldown) {
			return nil
		}

		after := before.clone()
		ev := applyAward(&after, award)

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO profiles (guild_id, user_id) VALUES (?, ?) ON CONFLICT DO NOTHING`,
			guildID, userID); err != nil {
			return err
		}
		// the cutoff guard keeps a second writer from awarding inside the same cooldown
		cutoff := award.At.Add(-award.Cooldown).UnixMilli()
		r, err := tx.ExecContext(ctx, `
			UPDATE profiles
			SET total_xp = ?, message_count = ?, last_message_at = ?, level = ?
			WHERE guild_id = ? AND user_id = ?
			  AND (last_message_at IS NULL OR last_message_at <= ?)`,
			after.TotalXP, after.MessageCount, award.At.UnixMilli(), after.Level,
			guildID, userID, cutoff)
		if err != nil {
			return err
		}
		if n, _ := r.RowsAffected(); n != 1 {
			return nil
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO xp_events (id, guild_id, user_id, amount, source, at) VALUES (?, ?, ?, ?, ?, ?)`,
			ev.ID, guildID, userID, ev.Amount, ev.Source, ev.At.UnixMilli()); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM xp_events
			WHERE guild_id = ? AND user_id = ? AND id NOT IN (
				SELECT id FROM xp_events WHERE guild_id = ? AND user_id = ?
				ORDER BY at DESC, rowid DESC LIMIT ?)`,
			guildID, userID, guildID, userID, historyLimit); err != nil {
			return err
		}

		res.Awarded = true
		res.After, err = loadProfile(ctx, tx, userID, guildID)
		return err
	})
	if err != nil {
		return AwardResult{}, fmt.Errorf("failed to award xp: %w", err)
	}
	return res, nil
}

func (s *SQLiteStore) UpdateDisplayName(ctx context.Context, userID, guildID, name string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE profiles SET display_name = ? WHERE guild_id = ? AND user_id = ?`, name, guildID, userID)
	return err
}

func (s *SQLiteStore) SetGrantedRoles(ctx context.Context, userID, guildID string, roles []string) error {
	if roles == nil {
		roles = []string{}
	}
	raw, err := json.Marshal(roles)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO profiles (guild_id, user_id, granted_roles) VALUES (?, ?, ?)
		ON CONFLICT(guild_id, user_id) DO UPDATE SET granted_roles = excluded.granted_roles`,
		guildID, userID, string(raw))
	return err
}

// Leaderboard profiles carry no XP history.
func (s *SQLiteStore) Leaderboard(ctx context.Context, guildID string, limit int) ([]UserProfile, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, display_name, total_xp, message_count, last_message_at, level, granted_roles
		FROM profiles WHERE guild_id = ?
		ORDER BY total_xp DESC, user_id ASC LIMIT ?`, guildID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load leaderboard: %w", err)
	}
	defer rows.Close()

	var out []UserProfile
	for rows.Next() {
		p := UserProfile{GuildID: guildID}
		if err := scanProfile(rows, &p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GuildIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT guild_id FROM guild_config
		UNION SELECT guild_id FROM role_rewards
		UNION SELECT guild_id FROM profiles
		ORDER BY 1`)
	if err != nil {
		return nil, fmt.Errorf("failed to list guilds: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLiteStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner, p *UserProfile) error {
	var (
		last  sql.NullInt64
		roles string
	)
	if err := row.Scan(&p.UserID, &p.DisplayName, &p.TotalXP, &p.MessageCount, &last, &p.Level, &roles); err != nil {
		return err
	}
	if last.Valid {
		t := time.UnixMilli(last.Int64).UTC()
		p.LastMessageAt = &t
	}
	if roles = strings.TrimSpace(roles); roles != "" {
		if err := json.Unmarshal([]byte(roles), &p.GrantedRoles); err != nil {
			return fmt.Errorf("failed to decode granted roles: %w", err)
		}
	}
	if len(p.GrantedRoles) == 0 {
		p.GrantedRoles = nil
	}
	return nil
}

func loadProfile(ctx context.Context, tx *sql.Tx, userID, guildID string) (UserProfile, error) {
	p := UserProfile{UserID: userID, GuildID: guildID}
	row := tx.QueryRowContext(ctx, `
		SELECT user_id, display_name, total_xp, message_count, last_message_at, level, granted_roles
		FROM profiles WHERE guild_id = ? AND user_id = ?`, guildID, userID)
	if err := scanProfile(row, &p); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return UserProfile{UserID: userID, GuildID: guildID}, nil
		}
		return UserProfile{}, err
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT id, amount, source, at FROM xp_events
		WHERE guild_id = ? AND user_id = ?
		ORDER BY at DESC, rowid DESC LIMIT ?`, guildID, userID, historyLimit)
	if err != nil {
		return UserProfile{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			ev XPEvent
			at int64
		)
		if err := rows.Scan(&ev.ID, &ev.Amount, &ev.Source, &at); err != nil {
			return UserProfile{}, err
		}
		ev.At = time.UnixMilli(at).UTC()
		p.History = append(p.History, ev)
	}
	if err := rows.Err(); err != nil {
		return UserProfile{}, err
	}
	slices.Reverse(p.History)
	return p, nil
}
