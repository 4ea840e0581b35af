package storage

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func eachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Helper()
	drivers := map[string]func(dir string) (Store, error){
		"json": func(dir string) (Store, error) {
			return NewJSON(filepath.Join(dir, "data.json"), zerolog.Nop())
		},
		"sqlite": func(dir string) (Store, error) {
			return NewSQLite(filepath.Join(dir, "data.db"))
		},
	}
	for name, open := range drivers {
		t.Run(name, func(t *testing.T) {
			s, err := open(t.TempDir())
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			fn(t, s)
		})
	}
}

func award(at time.Time) Award {
	return Award{Amount: 10, Source: "message", At: at, Cooldown: time.Minute}
}

func TestMissingConfigIsZero(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		cfg, err := s.GuildConfig(context.Background(), "g-none")
		require.NoError(t, err)
		assert.Equal(t, GuildConfig{}, cfg)

		p, err := s.Profile(context.Background(), "u", "g-none")
		require.NoError(t, err)
		assert.Equal(t, "u", p.UserID)
		assert.Zero(t, p.TotalXP)
		assert.Nil(t, p.LastMessageAt)
	})
}

func TestGuildConfigRoundTrip(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		cfg := GuildConfig{
			XPEnabled:       true,
			XPPerMessage:    15,
			ExcludeChannels: []string{"c-spam"},
			AIEnabled:       true,
			AIMode:          AIModeListen,
			AIChannels:      []string{"c-help"},
			AIContext:       "Be kind.",
		}
		require.NoError(t, s.SetGuildConfig(ctx, "g1", cfg))
		got, err := s.GuildConfig(ctx, "g1")
		require.NoError(t, err)
		assert.Equal(t, cfg, got)
	})
}

func TestAwardXPRespectsCooldown(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		res, err := s.AwardXP(ctx, "u1", "g1", award(t0))
		require.NoError(t, err)
		assert.True(t, res.Awarded)
		assert.Zero(t, res.Before.TotalXP)
		assert.Equal(t, 10, res.After.TotalXP)
		assert.Equal(t, 1, res.After.MessageCount)
		require.NotNil(t, res.After.LastMessageAt)
		assert.True(t, res.After.LastMessageAt.Equal(t0))

		res, err = s.AwardXP(ctx, "u1", "g1", award(t0.Add(59*time.Second)))
		require.NoError(t, err)
		assert.False(t, res.Awarded)
		assert.Equal(t, 10, res.After.TotalXP)

		res, err = s.AwardXP(ctx, "u1", "g1", award(t0.Add(time.Minute)))
		require.NoError(t, err)
		assert.True(t, res.Awarded)
		assert.Equal(t, 20, res.After.TotalXP)
		assert.Equal(t, 2, res.After.MessageCount)
		require.Len(t, res.After.History, 2)
		assert.Equal(t, "message", res.After.History[1].Source)
		assert.NotEqual(t, res.After.History[0].ID, res.After.History[1].ID)
	})
}

func TestAwardXPStoresLevel(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		a := award(t0)
		a.Amount = 400
		res, err := s.AwardXP(ctx, "u1", "g1", a)
		require.NoError(t, err)
		assert.Equal(t, 2, res.After.Level)

		p, err := s.Profile(ctx, "u1", "g1")
		require.NoError(t, err)
		assert.Equal(t, 2, p.Level)
		assert.Equal(t, 400, p.TotalXP)
	})
}

func TestAwardXPConcurrentSingleWinner(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			awarded int
		)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				res, err := s.AwardXP(ctx, "u1", "g1", award(t0))
				if err == nil && res.Awarded {
					mu.Lock()
					awarded++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, awarded)

		p, err := s.Profile(ctx, "u1", "g1")
		require.NoError(t, err)
		assert.Equal(t, 10, p.TotalXP)
		assert.Equal(t, 1, p.MessageCount)
	})
}

func TestHistoryIsBounded(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		for i := 0; i < historyLimit+5; i++ {
			_, err := s.AwardXP(ctx, "u1", "g1", award(t0.Add(time.Duration(i)*time.Minute)))
			require.NoError(t, err)
		}
		p, err := s.Profile(ctx, "u1", "g1")
		require.NoError(t, err)
		assert.Len(t, p.History, historyLimit)
		assert.Equal(t, (historyLimit+5)*10, p.TotalXP)
		last := p.History[len(p.History)-1]
		assert.True(t, last.At.Equal(t0.Add(time.Duration(historyLimit+4)*time.Minute)))
	})
}

func TestDisplayNameAndGrantedRoles(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		// no profile yet, nothing to rename
		require.NoError(t, s.UpdateDisplayName(ctx, "u1", "g1", "Ghost"))
		p, err := s.Profile(ctx, "u1", "g1")
		require.NoError(t, err)
		assert.Empty(t, p.DisplayName)

		_, err = s.AwardXP(ctx, "u1", "g1", award(t0))
		require.NoError(t, err)
		require.NoError(t, s.UpdateDisplayName(ctx, "u1", "g1", "Alice"))
		require.NoError(t, s.SetGrantedRoles(ctx, "u1", "g1", []string{"r1", "r2"}))

		p, err = s.Profile(ctx, "u1", "g1")
		require.NoError(t, err)
		assert.Equal(t, "Alice", p.DisplayName)
		assert.Equal(t, []string{"r1", "r2"}, p.GrantedRoles)
		assert.Equal(t, 10, p.TotalXP)
	})
}

func TestRoleRewardsRoundTrip(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		table := RoleRewardTable{{Level: 5, RoleID: "r5"}, {Level: 1, RoleID: "r1"}}
		require.NoError(t, s.SetRoleRewards(ctx, "g1", table))
		got, err := s.RoleRewards(ctx, "g1")
		require.NoError(t, err)
		assert.Equal(t, table, got)

		require.NoError(t, s.SetRoleRewards(ctx, "g1", RoleRewardTable{{Level: 2, RoleID: "r2"}}))
		got, err = s.RoleRewards(ctx, "g1")
		require.NoError(t, err)
		assert.Equal(t, RoleRewardTable{{Level: 2, RoleID: "r2"}}, got)
	})
}

func TestLeaderboardOrdering(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		amounts := map[string]int{"u-b": 50, "u-a": 50, "u-c": 90, "u-d": 5}
		for user, amount := range amounts {
			_, err := s.AwardXP(ctx, user, "g1", Award{Amount: amount, Source: "message", At: t0, Cooldown: time.Minute})
			require.NoError(t, err)
		}
		_, err := s.AwardXP(ctx, "u-x", "g2", award(t0))
		require.NoError(t, err)

		top, err := s.Leaderboard(ctx, "g1", 3)
		require.NoError(t, err)
		require.Len(t, top, 3)
		assert.Equal(t, "u-c", top[0].UserID)
		assert.Equal(t, "u-a", top[1].UserID)
		assert.Equal(t, "u-b", top[2].UserID)

		all, err := s.Leaderboard(ctx, "g1", 0)
		require.NoError(t, err)
		assert.Len(t, all, 4)
	})
}

func TestJSONStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	s, err := NewJSON(path, zerolog.Nop())
	require.NoError(t, err)
	_, err = s.AwardXP(context.Background(), "u1", "g1", award(t0))
	require.NoError(t, err)
	require.NoError(t, s.SetGuildConfig(context.Background(), "g1", GuildConfig{XPEnabled: true}))
	require.NoError(t, s.Close())

	s, err = NewJSON(path, zerolog.Nop())
	require.NoError(t, err)
	defer s.Close()
	p, err := s.Profile(context.Background(), "u1", "g1")
	require.NoError(t, err)
	assert.Equal(t, 10, p.TotalXP)
	ids, err := s.GuildIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"g1"}, ids)
}

func TestJSONStoreKeepsProfilesUnderOwnKeys(t *testing.T) {
	s, err := NewJSON(filepath.Join(t.TempDir(), "data.json"), zerolog.Nop())
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.SetGuildConfig(ctx, "g1", GuildConfig{XPEnabled: true}))
	for _, user := range []string{"u1", "u2"} {
		_, err := s.AwardXP(ctx, user, "g1", award(t0))
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"guild:g1", "profile:g1:u1", "profile:g1:u2"}, s.ds.Keys())
}

func TestSQLiteInMemory(t *testing.T) {
	assert.True(t, inMemory(":memory:"))
	assert.True(t, inMemory("file:test?mode=memory&cache=shared"))
	assert.False(t, inMemory(filepath.Join(t.TempDir(), "data.db")))

	s, err := NewSQLite(":memory:")
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()
	require.NoError(t, s.SetGuildConfig(ctx, "g1", GuildConfig{XPEnabled: true}))
	cfg, err := s.GuildConfig(ctx, "g1")
	require.NoError(t, err)
	assert.True(t, cfg.XPEnabled)
}

func TestGuildIDs(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		ids, err := s.GuildIDs(ctx)
		require.NoError(t, err)
		assert.Empty(t, ids)

		require.NoError(t, s.SetGuildConfig(ctx, "g2", GuildConfig{XPEnabled: true}))
		require.NoError(t, s.SetRoleRewards(ctx, "g3", RoleRewardTable{{Level: 1, RoleID: "r1"}}))
		_, err = s.AwardXP(ctx, "u1", "g1", award(t0))
		require.NoError(t, err)
		_, err = s.AwardXP(ctx, "u2", "g2", award(t0))
		require.NoError(t, err)

		ids, err = s.GuildIDs(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"g1", "g2", "g3"}, ids)
	})
}

func TestLeaderboardDoesNotMixGuildsWithSharedPrefix(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		_, err := s.AwardXP(ctx, "u1", "g1", award(t0))
		require.NoError(t, err)
		_, err = s.AwardXP(ctx, "u2", "g10", award(t0))
		require.NoError(t, err)

		top, err := s.Leaderboard(ctx, "g1", 0)
		require.NoError(t, err)
		require.Len(t, top, 1)
		assert.Equal(t, "u1", top[0].UserID)
	})
}

func TestOpenDrivers(t *testing.T) {
	dir := t.TempDir()

	s, err := Open("", filepath.Join(dir, "a.json"), zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &JSONStore{}, s)
	require.NoError(t, s.Close())

	s, err = Open("SQLite", filepath.Join(dir, "a.db"), zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open("redis", "x", zerolog.Nop())
	assert.True(t, errors.Is(err, ErrUnknownDriver))
}
