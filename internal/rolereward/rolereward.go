// Package rolereward grants the roles a member's level entitles them to.
// Roles are only ever added.
package rolereward

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/rs/zerolog"

	"github.com/keshon/server-companion/internal/metrics"
	"github.com/keshon/server-companion/internal/storage"
)

// Member is a guild member as seen when the reconcile starts.
type Member struct {
	UserID  string
	GuildID string
	Name    string
	Roles   []string
}

// RoleRanks is a frozen view of the guild's role hierarchy.
type RoleRanks struct {
	positions  map[string]int
	botHighest int
}

// NewRoleRanks copies positions. botHighest is the position of the
// highest role the automation itself holds.
func NewRoleRanks(positions map[string]int, botHighest int) RoleRanks {
	return RoleRanks{positions: maps.Clone(positions), botHighest: botHighest}
}

// Grantable reports whether roleID exists and sits strictly below the bot's highest role.
func (r RoleRanks) Grantable(roleID string) bool {
	pos, ok := r.positions[roleID]
	return ok && pos < r.botHighest
}

// Granter adds one role to one member.
type Granter interface {
	GrantRole(ctx context.Context, guildID, userID, roleID string) error
}

// Store is the storage the reconciler needs.
type Store interface {
	Profile(ctx context.Context, userID, guildID string) (storage.UserProfile, error)
	RoleRewards(ctx context.Context, guildID string) (storage.RoleRewardTable, error)
	SetGrantedRoles(ctx context.Context, userID, guildID string, roles []string) error
}

// RoleDelta is the outcome of one reconcile.
type RoleDelta struct {
	Added []string
	// Skipped roles were eligible but missing from the guild or above the bot.
	Skipped []string
	Failed  map[string]error
}

type Reconciler struct {
	store   Store
	granter Granter
	metrics *metrics.Metrics
	log     zerolog.Logger
}

func New(store Store, granter Granter, m *metrics.Metrics, log zerolog.Logger) *Reconciler {
	return &Reconciler{store: store, granter: granter, metrics: m, log: log}
}

// Reconcile grants every eligible role the member lacks and records the
// reward-derived entitlement on the profile.
func (r *Reconciler) Reconcile(ctx context.Context, member Member, ranks RoleRanks) (RoleDelta, error) {
	var delta RoleDelta

	profile, err := r.store.Profile(ctx, member.UserID, member.GuildID)
	if err != nil {
		return delta, fmt.Errorf("load profile: %w", err)
	}
	table, err := r.store.RoleRewards(ctx, member.GuildID)
	if err != nil {
		return delta, fmt.Errorf("load role rewards: %w", err)
	}

	eligible := table.EligibleAt(profile.Level)
	if len(eligible) == 0 {
		return delta, nil
	}

	held := make(map[string]bool, len(member.Roles))
	for _, id := range member.Roles {
		held[id] = true
	}

	for _, reward := range eligible {
		id := reward.RoleID
		if held[id] {
			continue
		}
		if !ranks.Grantable(id) {
			delta.Skipped = append(delta.Skipped, id)
			r.metrics.RoleGrant("skipped")
			continue
		}
		if err := r.granter.GrantRole(ctx, member.GuildID, member.UserID, id); err != nil {
			if delta.Failed == nil {
				delta.Failed = make(map[string]error)
			}
			delta.Failed[id] = err
			r.metrics.RoleGrant("failed")
			r.log.Error().Err(err).Str("guild", member.GuildID).Str("user", member.UserID).Str("role", id).Msg("error adding role")
			continue
		}
		held[id] = true
		delta.Added = append(delta.Added, id)
		r.metrics.RoleGrant("granted")
		r.log.Info().Str("guild", member.GuildID).Str("user", member.Name).Str("role", id).Msg("added reward role")
	}

	granted := make([]string, 0, len(eligible))
	for _, reward := range eligible {
		if held[reward.RoleID] {
			granted = append(granted, reward.RoleID)
		}
	}
	if !sameSet(granted, profile.GrantedRoles) {
		if err := r.store.SetGrantedRoles(ctx, member.UserID, member.GuildID, granted); err != nil {
			return delta, fmt.Errorf("save granted roles: %w", err)
		}
	}
	return delta, nil
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	a, b = slices.Clone(a), slices.Clone(b)
	slices.Sort(a)
	slices.Sort(b)
	return slices.Equal(a, b)
}
