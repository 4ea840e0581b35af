package storage

import (
	"context"
	"slices"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const cachedGuilds = 1024

// Cached fronts a Store with short-lived copies of guild config and reward
// tables, which every message reads but admins rarely change. Writes through
// this wrapper invalidate the cached entry.
type Cached struct {
	Store
	configs *expirable.LRU[string, GuildConfig]
	rewards *expirable.LRU[string, RoleRewardTable]
}

// NewCached wraps s. A non-positive ttl returns s unchanged.
func NewCached(s Store, ttl time.Duration) Store {
	if ttl <= 0 {
		return s
	}
	return &Cached{
		Store:   s,
		configs: expirable.NewLRU[string, GuildConfig](cachedGuilds, nil, ttl),
		rewards: expirable.NewLRU[string, RoleRewardTable](cachedGuilds, nil, ttl),
	}
}

func (c *Cached) GuildConfig(ctx context.Context, guildID string) (GuildConfig, error) {
	if cfg, ok := c.configs.Get(guildID); ok {
		return cfg, nil
	}
	cfg, err := c.Store.GuildConfig(ctx, guildID)
	if err != nil {
		return GuildConfig{}, err
	}
	c.configs.Add(guildID, cfg)
	return cfg, nil
}

func (c *Cached) SetGuildConfig(ctx context.Context, guildID string, cfg GuildConfig) error {
	c.configs.Remove(guildID)
	return c.Store.SetGuildConfig(ctx, guildID, cfg)
}

func (c *Cached) RoleRewards(ctx context.Context, guildID string) (RoleRewardTable, error) {
	if t, ok := c.rewards.Get(guildID); ok {
		return slices.Clone(t), nil
	}
	t, err := c.Store.RoleRewards(ctx, guildID)
	if err != nil {
		return nil, err
	}
	c.rewards.Add(guildID, slices.Clone(t))
	return t, nil
}

func (c *Cached) SetRoleRewards(ctx context.Context, guildID string, table RoleRewardTable) error {
	c.rewards.Remove(guildID)
	return c.Store.SetRoleRewards(ctx, guildID, table)
}
