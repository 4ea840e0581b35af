package discord

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshon/server-companion/internal/chat"
	"github.com/keshon/server-companion/pkg/retrylimit"
)

type fakeAPI struct {
	mu sync.Mutex

	history   []*discordgo.Message
	before    string
	limit     int
	sent      []*discordgo.MessageSend
	typing    int
	grants    []string
	grantErrs []error
	member    *discordgo.Member
}

func (f *fakeAPI) ChannelMessages(_ string, limit int, beforeID, _, _ string, _ ...discordgo.RequestOption) ([]*discordgo.Message, error) {
	f.before, f.limit = beforeID, limit
	return f.history, nil
}

func (f *fakeAPI) ChannelTyping(string, ...discordgo.RequestOption) error {
	f.typing++
	return nil
}

func (f *fakeAPI) ChannelMessageSendComplex(_ string, data *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.sent = append(f.sent, data)
	return &discordgo.Message{}, nil
}

func (f *fakeAPI) GuildMemberRoleAdd(_, _, roleID string, _ ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.grantErrs) > 0 {
		err := f.grantErrs[0]
		f.grantErrs = f.grantErrs[1:]
		if err != nil {
			return err
		}
	}
	f.grants = append(f.grants, roleID)
	return nil
}

func (f *fakeAPI) GuildMember(_, _ string, _ ...discordgo.RequestOption) (*discordgo.Member, error) {
	if f.member == nil {
		return nil, errors.New("unknown member")
	}
	return f.member, nil
}

func restErr(code int) error {
	return &discordgo.RESTError{Response: &http.Response{StatusCode: code}, ResponseBody: []byte("{}")}
}

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestLevelUpEmbed(t *testing.T) {
	e := levelUpEmbed(chat.LevelUpNotice{UserID: "42", NewLevel: 3, TotalXP: 950, MessageCount: 61}, "https://cdn/avatar.png", fixedNow)
	assert.Equal(t, "🎉 Level Up!", e.Title)
	assert.Contains(t, e.Description, "<@42>")
	assert.Contains(t, e.Description, "**Level 3**")
	require.Len(t, e.Fields, 1)
	assert.Equal(t, "**Total XP:** 950\n**Messages:** 61", e.Fields[0].Value)
	assert.Equal(t, "Keep chatting to earn more XP!", e.Footer.Text)
	assert.Equal(t, "https://cdn/avatar.png", e.Thumbnail.URL)
}

func TestAIReplyEmbed(t *testing.T) {
	e := aiReplyEmbed(chat.AIReply{Content: "Sure.", AskedBy: "alice", Provider: "gemini"}, "", fixedNow)
	assert.Equal(t, "AI Assistant", e.Author.Name)
	assert.Equal(t, "Sure.", e.Description)
	assert.Equal(t, "Responding to alice • Powered by gemini", e.Footer.Text)
	assert.Empty(t, e.Fields)

	e = aiReplyEmbed(chat.AIReply{Content: strings.Repeat("a", 2000), Truncated: true}, "", fixedNow)
	require.Len(t, e.Fields, 1)
	assert.Equal(t, "📄 Response Truncated", e.Fields[0].Name)
}

func TestToChatMessage(t *testing.T) {
	m := &discordgo.Message{
		ID:      "m1",
		Content: "hello",
		Author:  &discordgo.User{ID: "u1", Username: "alice", GlobalName: "Alice"},
		Member:  &discordgo.Member{Nick: "Ali", Roles: []string{"r1"}},
	}
	got := toChatMessage(m, chat.Guild{ID: "g1"}, chat.Channel{ID: "c1"})
	assert.Equal(t, "Ali", got.Author.Name())
	assert.Equal(t, "alice", got.Author.Username)
	assert.Equal(t, []string{"r1"}, got.MemberRoles)
	assert.Equal(t, "g1", got.Guild.ID)
	assert.Nil(t, got.Conversation)

	m.Member = nil
	m.Author.Bot = true
	got = toChatMessage(m, chat.Guild{}, chat.Channel{})
	assert.Equal(t, "Alice", got.Author.Name())
	assert.True(t, got.Author.IsBot)
}

func TestConversation(t *testing.T) {
	api := &fakeAPI{history: []*discordgo.Message{
		{ID: "m3", Content: "newest", Author: &discordgo.User{ID: "u3", Username: "c"}},
		{ID: "m2", Content: "no author"},
		{ID: "m1", Content: "oldest", Author: &discordgo.User{ID: "u1", Username: "a"}},
	}}
	conv := &conversation{api: api, guildID: "g1", channelID: "c1", botAvatar: "bot.png", now: func() time.Time { return fixedNow }}
	ctx := context.Background()

	recent, err := conv.Recent(ctx, "m4", 5)
	require.NoError(t, err)
	assert.Equal(t, "m4", api.before)
	assert.Equal(t, 5, api.limit)
	require.Len(t, recent, 2)
	assert.Equal(t, "newest", recent[0].Content)

	require.NoError(t, conv.Typing(ctx))
	assert.Equal(t, 1, api.typing)

	require.NoError(t, conv.Reply(ctx, "m4", chat.AIReply{Content: "hi", AskedBy: "d", Provider: "p"}))
	require.Len(t, api.sent, 1)
	assert.Equal(t, "m4", api.sent[0].Reference.MessageID)
	assert.Empty(t, api.sent[0].AllowedMentions.Parse)
	assert.Equal(t, "bot.png", api.sent[0].Embeds[0].Author.IconURL)

	require.NoError(t, conv.SendLevelUp(ctx, chat.LevelUpNotice{UserID: "u1", NewLevel: 1}))
	require.Len(t, api.sent, 2)
	assert.Nil(t, api.sent[1].Reference)
}

func TestWrapREST(t *testing.T) {
	assert.Nil(t, wrapREST(nil))
	assert.Equal(t, 403, retrylimit.StatusCode(wrapREST(restErr(403))))
	assert.Equal(t, 0, retrylimit.StatusCode(wrapREST(errors.New("socket closed"))))
}

func TestRoleGranterDoesNotRetryServerErrors(t *testing.T) {
	api := &fakeAPI{grantErrs: []error{restErr(502), nil}}
	g := newRoleGranter(api, 50, zerolog.Nop())
	before := g.limiter.Limit()

	err := g.GrantRole(context.Background(), "g1", "u1", "r1")
	require.Error(t, err)
	assert.Empty(t, api.grants)
	assert.Len(t, api.grantErrs, 1, "only one attempt made")
	assert.Less(t, g.limiter.Limit(), before, "pacing backs off")
}

func TestRoleGranterDoesNotRetryForbidden(t *testing.T) {
	api := &fakeAPI{grantErrs: []error{restErr(403), nil}}
	g := newRoleGranter(api, 50, zerolog.Nop())

	err := g.GrantRole(context.Background(), "g1", "u1", "r1")
	require.Error(t, err)
	assert.Empty(t, api.grants)
	assert.Len(t, api.grantErrs, 1, "only one attempt made")
}

func newState(t *testing.T, withSelf bool) *discordgo.State {
	t.Helper()
	st := discordgo.NewState()
	st.User = &discordgo.User{ID: "bot"}
	g := &discordgo.Guild{
		ID: "g1",
		Roles: []*discordgo.Role{
			{ID: "g1", Position: 0},
			{ID: "newbie", Position: 1},
			{ID: "botrole", Position: 4},
			{ID: "admin", Position: 9},
		},
	}
	if withSelf {
		g.Members = []*discordgo.Member{{GuildID: "g1", User: &discordgo.User{ID: "bot"}, Roles: []string{"botrole"}}}
	}
	require.NoError(t, st.GuildAdd(g))
	return st
}

func TestRankSourceFromState(t *testing.T) {
	rs := &RankSource{state: newState(t, true), api: &fakeAPI{}}
	ranks, err := rs.RoleRanks(context.Background(), "g1")
	require.NoError(t, err)
	assert.True(t, ranks.Grantable("newbie"))
	assert.False(t, ranks.Grantable("botrole"))
	assert.False(t, ranks.Grantable("admin"))
	assert.False(t, ranks.Grantable("unknown"))
}

func TestRankSourceFetchesOwnMember(t *testing.T) {
	api := &fakeAPI{member: &discordgo.Member{User: &discordgo.User{ID: "bot"}, Roles: []string{"admin"}}}
	rs := &RankSource{state: newState(t, false), api: api}
	ranks, err := rs.RoleRanks(context.Background(), "g1")
	require.NoError(t, err)
	assert.True(t, ranks.Grantable("botrole"))

	_, err = rs.RoleRanks(context.Background(), "missing")
	assert.Error(t, err)
}
