package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/keshon/server-companion/internal/rolereward"
	"github.com/keshon/server-companion/pkg/retrylimit"
)

// RoleGranter adds roles through the REST API. Grants are paced and slow down
// after 429/5xx answers, but a failed grant is not retried.
type RoleGranter struct {
	api     restAPI
	limiter *retrylimit.AdaptiveLimiter
	log     zerolog.Logger
}

// NewRoleGranter paces grants at rps requests per second, adapting between 1 and 2×rps.
func NewRoleGranter(s *discordgo.Session, rps float64, log zerolog.Logger) *RoleGranter {
	return newRoleGranter(s, rps, log)
}

func newRoleGranter(api restAPI, rps float64, log zerolog.Logger) *RoleGranter {
	if rps <= 0 {
		rps = 5
	}
	return &RoleGranter{
		api:     api,
		limiter: retrylimit.NewAdaptiveLimiter(rate.Limit(rps), 1, rate.Limit(2*rps), 1, 0.5),
		log:     log,
	}
}

func (g *RoleGranter) GrantRole(ctx context.Context, guildID, userID, roleID string) error {
	return retrylimit.Do(ctx, retrylimit.Config{MaxAttempts: 1, Logger: g.log}, g.limiter, func() error {
		return wrapREST(g.api.GuildMemberRoleAdd(guildID, userID, roleID, discordgo.WithContext(ctx)))
	})
}

// RankSource snapshots role positions from the gateway state cache.
type RankSource struct {
	state *discordgo.State
	api   restAPI
}

func NewRankSource(s *discordgo.Session) *RankSource {
	return &RankSource{state: s.State, api: s}
}

func (r *RankSource) RoleRanks(ctx context.Context, guildID string) (rolereward.RoleRanks, error) {
	guild, err := r.state.Guild(guildID)
	if err != nil {
		return rolereward.RoleRanks{}, fmt.Errorf("guild %s not in state: %w", guildID, err)
	}
	if r.state.User == nil {
		return rolereward.RoleRanks{}, fmt.Errorf("session user unknown")
	}

	botID := r.state.User.ID
	self, err := r.state.Member(guildID, botID)
	if err != nil {
		self, err = r.api.GuildMember(guildID, botID, discordgo.WithContext(ctx))
		if err != nil {
			return rolereward.RoleRanks{}, fmt.Errorf("fetch own member: %w", wrapREST(err))
		}
	}

	r.state.RLock()
	positions := make(map[string]int, len(guild.Roles))
	for _, role := range guild.Roles {
		positions[role.ID] = role.Position
	}
	r.state.RUnlock()

	highest := 0
	for _, id := range self.Roles {
		if pos, ok := positions[id]; ok && pos > highest {
			highest = pos
		}
	}
	return rolereward.NewRoleRanks(positions, highest), nil
}
