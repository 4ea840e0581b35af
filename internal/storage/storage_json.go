package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/keshon/server-companion/datastore"
)

const (
	guildKeyPrefix   = "guild:"
	profileKeyPrefix = "profile:"
)

// guildRecord is the per-guild settings record. Profiles live under their own keys.
type guildRecord struct {
	Config      GuildConfig     `json:"config"`
	RoleRewards RoleRewardTable `json:"role_rewards,omitempty"`
}

// JSONStore keeps guild settings and each profile under separate datastore
// keys, so an award encodes one profile rather than the whole guild.
type JSONStore struct {
	ds *datastore.DataStore
}

func NewJSON(filePath string, log zerolog.Logger) (*JSONStore, error) {
	cfg := datastore.DefaultConfig(filePath)
	cfg.Logger = log.With().Str("component", "datastore").Logger()
	ds, err := datastore.NewWithConfig(cfg)
	if err != nil {
		return nil, err
	}
	return &JSONStore{ds: ds}, nil
}

func (s *JSONStore) Close() error {
	return s.ds.Close()
}

func guildKey(guildID string) string {
	return guildKeyPrefix + guildID
}

func profilePrefix(guildID string) string {
	return profileKeyPrefix + guildID + ":"
}

func profileKey(userID, guildID string) string {
	return profilePrefix(guildID) + userID
}

// getGuildRecord returns the stored record or an empty one.
func (s *JSONStore) getGuildRecord(guildID string) (guildRecord, error) {
	var rec guildRecord
	if _, err := s.ds.Get(guildKey(guildID), &rec); err != nil {
		return guildRecord{}, err
	}
	return rec, nil
}

// updateGuildRecord runs fn against the decoded record inside one atomic
// datastore update.
func (s *JSONStore) updateGuildRecord(guildID string, fn func(rec *guildRecord)) error {
	return s.ds.Update(guildKey(guildID), func(cur []byte) ([]byte, error) {
		var rec guildRecord
		if cur != nil {
			if err := json.Unmarshal(cur, &rec); err != nil {
				return nil, fmt.Errorf("error unmarshalling guild %s: %w", guildID, err)
			}
		}
		fn(&rec)
		return json.Marshal(&rec)
	})
}

// updateProfile runs fn against one profile inside one atomic datastore
// update. A missing profile is passed as a zero profile with exists false;
// fn returns false to skip the write.
func (s *JSONStore) updateProfile(userID, guildID string, fn func(p *UserProfile, exists bool) bool) error {
	return s.ds.Update(profileKey(userID, guildID), func(cur []byte) ([]byte, error) {
		p := UserProfile{UserID: userID, GuildID: guildID}
		if cur != nil {
			if err := json.Unmarshal(cur, &p); err != nil {
				return nil, fmt.Errorf("error unmarshalling profile %s/%s: %w", guildID, userID, err)
			}
		}
		if !fn(&p, cur != nil) {
			return nil, nil
		}
		return json.Marshal(&p)
	})
}

func (s *JSONStore) GuildConfig(_ context.Context, guildID string) (GuildConfig, error) {
	rec, err := s.getGuildRecord(guildID)
	if err != nil {
		return GuildConfig{}, err
	}
	return rec.Config, nil
}

func (s *JSONStore) SetGuildConfig(_ context.Context, guildID string, cfg GuildConfig) error {
	return s.updateGuildRecord(guildID, func(rec *guildRecord) {
		rec.Config = cfg
	})
}

func (s *JSONStore) RoleRewards(_ context.Context, guildID string) (RoleRewardTable, error) {
	rec, err := s.getGuildRecord(guildID)
	if err != nil {
		return nil, err
	}
	return rec.RoleRewards, nil
}

func (s *JSONStore) SetRoleRewards(_ context.Context, guildID string, table RoleRewardTable) error {
	return s.updateGuildRecord(guildID, func(rec *guildRecord) {
		rec.RoleRewards = slices.Clone(table)
	})
}

func (s *JSONStore) Profile(_ context.Context, userID, guildID string) (UserProfile, error) {
	p := UserProfile{UserID: userID, GuildID: guildID}
	if _, err := s.ds.Get(profileKey(userID, guildID), &p); err != nil {
		return UserProfile{}, err
	}
	return p, nil
}

func (s *JSONStore) AwardXP(_ context.Context, userID, guildID string, award Award) (AwardResult, error) {
	var res AwardResult
	err := s.updateProfile(userID, guildID, func(p *UserProfile, _ bool) bool {
		res.Before = p.clone()
		if p.InCooldown(award.At, award.Cooldown) {
			res.After = res.Before
			return false
		}
		applyAward(p, award)
		res.Awarded = true
		res.After = p.clone()
		return true
	})
	if err != nil {
		return AwardResult{}, err
	}
	return res, nil
}

func (s *JSONStore) UpdateDisplayName(_ context.Context, userID, guildID, name string) error {
	return s.updateProfile(userID, guildID, func(p *UserProfile, exists bool) bool {
		if !exists || p.DisplayName == name {
			return false
		}
		p.DisplayName = name
		return true
	})
}

func (s *JSONStore) SetGrantedRoles(_ context.Context, userID, guildID string, roles []string) error {
	return s.updateProfile(userID, guildID, func(p *UserProfile, _ bool) bool {
		p.GrantedRoles = slices.Clone(roles)
		return true
	})
}

func (s *JSONStore) Leaderboard(_ context.Context, guildID string, limit int) ([]UserProfile, error) {
	prefix := profilePrefix(guildID)
	var out []UserProfile
	for _, k := range s.ds.Keys() {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		var p UserProfile
		if _, err := s.ds.Get(k, &p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	sortLeaderboard(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// GuildIDs lists guilds with stored settings or profiles.
func (s *JSONStore) GuildIDs(_ context.Context) ([]string, error) {
	seen := map[string]bool{}
	for _, k := range s.ds.Keys() {
		if id, ok := strings.CutPrefix(k, guildKeyPrefix); ok {
			seen[id] = true
		} else if rest, ok := strings.CutPrefix(k, profileKeyPrefix); ok {
			if id, _, ok := strings.Cut(rest, ":"); ok {
				seen[id] = true
			}
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
