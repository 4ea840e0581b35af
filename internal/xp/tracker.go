// Package xp awards experience for chatting and announces level-ups.
package xp

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/keshon/server-companion/internal/chat"
	"github.com/keshon/server-companion/internal/leveling"
	"github.com/keshon/server-companion/internal/metrics"
	"github.com/keshon/server-companion/internal/rolereward"
	"github.com/keshon/server-companion/internal/storage"
)

const (
	// Cooldown is the minimum gap between two awards for one user in one guild.
	Cooldown = 60 * time.Second
	Source   = "message"
)

// Store is the storage the tracker needs.
type Store interface {
	GuildConfig(ctx context.Context, guildID string) (storage.GuildConfig, error)
	AwardXP(ctx context.Context, userID, guildID string, award storage.Award) (storage.AwardResult, error)
	UpdateDisplayName(ctx context.Context, userID, guildID, name string) error
}

type Reconciler interface {
	Reconcile(ctx context.Context, member rolereward.Member, ranks rolereward.RoleRanks) (rolereward.RoleDelta, error)
}

// RankSource snapshots a guild's role hierarchy.
type RankSource interface {
	RoleRanks(ctx context.Context, guildID string) (rolereward.RoleRanks, error)
}

// Result describes what one message did.
type Result struct {
	Awarded bool
	Profile storage.UserProfile
	LevelUp leveling.LevelUp
	Roles   *rolereward.RoleDelta
}

type Option func(*Tracker)

// WithRoleRewards enables reconciliation for guilds with role automation on.
func WithRoleRewards(rec Reconciler, ranks RankSource) Option {
	return func(t *Tracker) {
		t.reconciler = rec
		t.ranks = ranks
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Tracker) { t.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

type Tracker struct {
	store      Store
	reconciler Reconciler
	ranks      RankSource
	metrics    *metrics.Metrics
	log        zerolog.Logger
	now        func() time.Time
}

func NewTracker(store Store, log zerolog.Logger, opts ...Option) *Tracker {
	t := &Tracker{store: store, log: log, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Tracker) OnMessage(ctx context.Context, msg chat.Message) error {
	_, err := t.Process(ctx, msg)
	return err
}

// Process runs the award for msg and reports the outcome.
func (t *Tracker) Process(ctx context.Context, msg chat.Message) (Result, error) {
	var res Result

	cfg, err := t.store.GuildConfig(ctx, msg.Guild.ID)
	if err != nil {
		return res, fmt.Errorf("load guild config: %w", err)
	}
	if !cfg.XPEnabled || !cfg.TracksXPIn(msg.Channel.ID) {
		return res, nil
	}

	// cooldown is enforced by the store together with the write
	award, err := t.store.AwardXP(ctx, msg.Author.ID, msg.Guild.ID, storage.Award{
		Amount:   cfg.XPAmount(),
		Source:   Source,
		At:       t.now(),
		Cooldown: Cooldown,
	})
	if err != nil {
		t.metrics.XPAward("error")
		return res, fmt.Errorf("award xp: %w", err)
	}
	res.Profile = award.After
	if !award.Awarded {
		t.metrics.XPAward("cooldown")
		return res, nil
	}
	res.Awarded = true
	t.metrics.XPAward("awarded")

	if name := msg.Author.Name(); name != "" && name != award.After.DisplayName {
		if err := t.store.UpdateDisplayName(ctx, msg.Author.ID, msg.Guild.ID, name); err != nil {
			t.log.Warn().Err(err).Str("user", msg.Author.ID).Msg("failed to refresh display name")
		} else {
			res.Profile.DisplayName = name
		}
	}

	res.LevelUp = leveling.DetectLevelUp(award.Before.TotalXP, award.After.TotalXP)
	if !res.LevelUp.LeveledUp {
		return res, nil
	}
	t.metrics.LevelUp()
	t.log.Info().
		Str("guild", msg.Guild.ID).
		Str("user", msg.Author.Username).
		Int("level", res.LevelUp.NewLevel).
		Msg("level up")

	if msg.Conversation != nil {
		notice := chat.LevelUpNotice{
			UserID:       msg.Author.ID,
			UserName:     msg.Author.Name(),
			NewLevel:     res.LevelUp.NewLevel,
			TotalXP:      award.After.TotalXP,
			MessageCount: award.After.MessageCount,
		}
		if err := msg.Conversation.SendLevelUp(ctx, notice); err != nil {
			t.log.Error().Err(err).Str("channel", msg.Channel.ID).Msg("error sending level up message")
		}
	}

	if !cfg.RoleAutomation || t.reconciler == nil || t.ranks == nil {
		return res, nil
	}
	ranks, err := t.ranks.RoleRanks(ctx, msg.Guild.ID)
	if err != nil {
		return res, fmt.Errorf("snapshot role ranks: %w", err)
	}
	delta, err := t.reconciler.Reconcile(ctx, rolereward.Member{
		UserID:  msg.Author.ID,
		GuildID: msg.Guild.ID,
		Name:    msg.Author.Username,
		Roles:   msg.MemberRoles,
	}, ranks)
	res.Roles = &delta
	if err != nil {
		return res, fmt.Errorf("reconcile roles: %w", err)
	}
	return res, nil
}
