package storage

import (
	"slices"
	"sort"
	"time"
)

// historyLimit bounds the XP ledger kept on each profile.
const historyLimit = 20

type AIMode string

const (
	AIModeDisabled AIMode = "disabled"
	AIModeContext  AIMode = "context"
	AIModeListen   AIMode = "listen"
)

// GuildConfig is read-only to the message handlers. The zero value disables everything.
type GuildConfig struct {
	XPEnabled        bool     `json:"xp_enabled" yaml:"xp_enabled"`
	XPPerMessage     int      `json:"xp_per_message" yaml:"xp_per_message"`
	ExcludeChannels  []string `json:"exclude_channels,omitempty" yaml:"exclude_channels"`
	TrackingChannels []string `json:"tracking_channels,omitempty" yaml:"tracking_channels"`
	RoleAutomation   bool     `json:"role_automation" yaml:"role_automation"`
	AIEnabled        bool     `json:"ai_enabled" yaml:"ai_enabled"`
	AIMode           AIMode   `json:"ai_mode,omitempty" yaml:"ai_mode"`
	AIChannels       []string `json:"ai_channels,omitempty" yaml:"ai_channels"`
	AIContext        string   `json:"ai_context,omitempty" yaml:"ai_context"`
}

// XPAmount is the per-message award; an unset or zero value means 1.
func (c GuildConfig) XPAmount() int {
	if c.XPPerMessage <= 0 {
		return 1
	}
	return c.XPPerMessage
}

// TracksXPIn reports whether messages in channelID may earn XP.
// Exclusion is checked before the tracking list.
func (c GuildConfig) TracksXPIn(channelID string) bool {
	if slices.Contains(c.ExcludeChannels, channelID) {
		return false
	}
	if len(c.TrackingChannels) > 0 && !slices.Contains(c.TrackingChannels, channelID) {
		return false
	}
	return true
}

// ListensIn reports whether AI auto-replies are enabled for channelID.
func (c GuildConfig) ListensIn(channelID string) bool {
	return c.AIEnabled && c.AIMode == AIModeListen && slices.Contains(c.AIChannels, channelID)
}

type XPEvent struct {
	ID     string    `json:"id"`
	Amount int       `json:"amount"`
	Source string    `json:"source"`
	At     time.Time `json:"at"`
}

type UserProfile struct {
	UserID        string     `json:"user_id"`
	GuildID       string     `json:"guild_id"`
	DisplayName   string     `json:"display_name,omitempty"`
	TotalXP       int        `json:"total_xp"`
	MessageCount  int        `json:"message_count"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	Level         int        `json:"level"`
	GrantedRoles  []string   `json:"granted_roles,omitempty"`
	History       []XPEvent  `json:"history,omitempty"`
}

// InCooldown reports whether an award at now would fall inside the cooldown.
func (p UserProfile) InCooldown(now time.Time, cooldown time.Duration) bool {
	return p.LastMessageAt != nil && now.Sub(*p.LastMessageAt) < cooldown
}

func (p UserProfile) clone() UserProfile {
	out := p
	if p.LastMessageAt != nil {
		t := *p.LastMessageAt
		out.LastMessageAt = &t
	}
	out.GrantedRoles = slices.Clone(p.GrantedRoles)
	out.History = slices.Clone(p.History)
	return out
}

type RoleReward struct {
	Level  int    `json:"level" yaml:"level"`
	RoleID string `json:"role_id" yaml:"role_id"`
}

// RoleRewardTable maps levels to roles; a level may carry several roles.
type RoleRewardTable []RoleReward

// EligibleAt returns the rewards unlocked at level, ordered by level, one entry per role.
func (t RoleRewardTable) EligibleAt(level int) []RoleReward {
	out := make([]RoleReward, 0, len(t))
	seen := make(map[string]bool, len(t))
	sorted := slices.Clone(t)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Level < sorted[j].Level })
	for _, r := range sorted {
		if r.RoleID == "" || r.Level > level || seen[r.RoleID] {
			continue
		}
		seen[r.RoleID] = true
		out = append(out, r)
	}
	return out
}

// Award describes one XP grant. The store applies it only if the profile is
// outside Cooldown at At, as a single atomic step.
type Award struct {
	Amount   int
	Source   string
	At       time.Time
	Cooldown time.Duration
}

type AwardResult struct {
	Awarded bool
	Before  UserProfile
	After   UserProfile
}

func sortLeaderboard(ps []UserProfile) {
	sort.SliceStable(ps, func(i, j int) bool {
		if ps[i].TotalXP != ps[j].TotalXP {
			return ps[i].TotalXP > ps[j].TotalXP
		}
		return ps[i].UserID < ps[j].UserID
	})
}
