package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

var ErrUnknownDriver = errors.New("unknown storage driver")

// Store persists guild configuration, reward tables and user profiles.
type Store interface {
	GuildConfig(ctx context.Context, guildID string) (GuildConfig, error)
	SetGuildConfig(ctx context.Context, guildID string, cfg GuildConfig) error

	// Profile returns the stored profile or a zero profile when none exists yet.
	Profile(ctx context.Context, userID, guildID string) (UserProfile, error)
	// AwardXP conditionally applies an award; see Award.
	AwardXP(ctx context.Context, userID, guildID string, award Award) (AwardResult, error)
	UpdateDisplayName(ctx context.Context, userID, guildID, name string) error
	SetGrantedRoles(ctx context.Context, userID, guildID string, roles []string) error
	Leaderboard(ctx context.Context, guildID string, limit int) ([]UserProfile, error)
	// GuildIDs lists guilds with any stored settings or profiles, sorted.
	GuildIDs(ctx context.Context) ([]string, error)

	RoleRewards(ctx context.Context, guildID string) (RoleRewardTable, error)
	SetRoleRewards(ctx context.Context, guildID string, table RoleRewardTable) error

	Close() error
}

// Open returns the Store implementation named by driver.
func Open(driver, path string, log zerolog.Logger) (Store, error) {
	var (
		s   Store
		err error
	)
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "json":
		s, err = NewJSON(path, log)
	case "sqlite":
		s, err = NewSQLite(path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", driver, err)
	}
	return s, nil
}
