package discord

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/server-companion/internal/chat"
)

// conversation is the chat.Conversation for one inbound message.
type conversation struct {
	api          restAPI
	guildID      string
	channelID    string
	authorAvatar string
	botAvatar    string
	now          func() time.Time
}

func (c *conversation) Recent(ctx context.Context, beforeID string, limit int) ([]chat.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	msgs, err := c.api.ChannelMessages(c.channelID, limit, beforeID, "", "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrapREST(err)
	}
	out := make([]chat.Message, 0, len(msgs))
	for _, m := range msgs {
		if m == nil || m.Author == nil {
			continue
		}
		out = append(out, toChatMessage(m, chat.Guild{ID: c.guildID}, chat.Channel{ID: c.channelID}))
	}
	return out, nil
}

func (c *conversation) Typing(ctx context.Context) error {
	return wrapREST(c.api.ChannelTyping(c.channelID, discordgo.WithContext(ctx)))
}

func (c *conversation) SendLevelUp(ctx context.Context, n chat.LevelUpNotice) error {
	_, err := c.api.ChannelMessageSendComplex(c.channelID, &discordgo.MessageSend{
		Embeds:          []*discordgo.MessageEmbed{levelUpEmbed(n, c.authorAvatar, c.now())},
		AllowedMentions: noMentions(),
	}, discordgo.WithContext(ctx))
	return wrapREST(err)
}

func (c *conversation) Reply(ctx context.Context, messageID string, r chat.AIReply) error {
	_, err := c.api.ChannelMessageSendComplex(c.channelID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{aiReplyEmbed(r, c.botAvatar, c.now())},
		Reference: &discordgo.MessageReference{
			MessageID: messageID,
			ChannelID: c.channelID,
			GuildID:   c.guildID,
		},
		AllowedMentions: noMentions(),
	}, discordgo.WithContext(ctx))
	return wrapREST(err)
}

// toChatMessage converts without attaching a conversation.
func toChatMessage(m *discordgo.Message, guild chat.Guild, channel chat.Channel) chat.Message {
	msg := chat.Message{
		ID:        m.ID,
		Guild:     guild,
		Channel:   channel,
		Content:   m.Content,
		Timestamp: m.Timestamp,
	}
	if m.Author != nil {
		msg.Author = chat.Author{
			ID:          m.Author.ID,
			Username:    m.Author.Username,
			DisplayName: m.Author.GlobalName,
			IsBot:       m.Author.Bot,
		}
	}
	if m.Member != nil {
		if m.Member.Nick != "" {
			msg.Author.DisplayName = m.Member.Nick
		}
		msg.MemberRoles = append([]string(nil), m.Member.Roles...)
	}
	return msg
}

// noMentions keeps bot output from pinging anyone.
func noMentions() *discordgo.MessageAllowedMentions {
	return &discordgo.MessageAllowedMentions{Parse: []discordgo.AllowedMentionType{}}
}
