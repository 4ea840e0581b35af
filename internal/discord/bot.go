// Package discord connects the message pipeline to a Discord gateway session.
package discord

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/keshon/server-companion/internal/chat"
)

// messageTimeout bounds all work done for one inbound message.
const messageTimeout = 2 * time.Minute

// Handler receives every inbound message.
type Handler interface {
	Handle(ctx context.Context, msg chat.Message) int
}

type Bot struct {
	dg      *discordgo.Session
	handler Handler
	log     zerolog.Logger
	ctx     context.Context
}

// New creates the session without connecting.
func New(token string, log zerolog.Logger) (*Bot, error) {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	b := &Bot{dg: dg, log: log}
	b.configureIntents()
	return b, nil
}

// Session exposes the underlying session for the role adapters.
func (b *Bot) Session() *discordgo.Session {
	return b.dg
}

func (b *Bot) configureIntents() {
	b.dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent
	b.dg.State.TrackRoles = true
	b.dg.State.TrackMembers = true
}

// Run connects, feeds messages to h and blocks until ctx is done.
func (b *Bot) Run(ctx context.Context, h Handler) error {
	b.ctx = ctx
	b.handler = h
	b.dg.AddHandler(b.onReady)
	b.dg.AddHandler(b.onGuildCreate)
	b.dg.AddHandler(b.onMessageCreate)

	if err := b.dg.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}
	defer b.dg.Close()

	<-ctx.Done()
	b.log.Info().Msg("shutdown signal received, closing session")
	return nil
}

func (b *Bot) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	b.log.Info().Str("user", r.User.Username).Int("guilds", len(r.Guilds)).Msg("discord bot is running")
}

func (b *Bot) onGuildCreate(_ *discordgo.Session, g *discordgo.GuildCreate) {
	b.log.Info().Str("guild", g.ID).Str("name", g.Name).Msg("guild available")
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || (s.State.User != nil && m.Author.ID == s.State.User.ID) {
		return
	}
	msg := b.inbound(s, m.Message)

	ctx, cancel := context.WithTimeout(b.ctx, messageTimeout)
	defer cancel()
	b.handler.Handle(ctx, msg)
}

// inbound resolves names from state and attaches a conversation.
func (b *Bot) inbound(s *discordgo.Session, m *discordgo.Message) chat.Message {
	guild := chat.Guild{ID: m.GuildID}
	if g, err := s.State.Guild(m.GuildID); err == nil {
		guild.Name = g.Name
	}
	channel := chat.Channel{ID: m.ChannelID}
	if c, err := s.State.Channel(m.ChannelID); err == nil {
		channel.Name = c.Name
	}

	msg := toChatMessage(m, guild, channel)
	conv := &conversation{
		api:       s,
		guildID:   m.GuildID,
		channelID: m.ChannelID,
		now:       time.Now,
	}
	if m.Author != nil {
		conv.authorAvatar = m.Author.AvatarURL("")
	}
	if s.State.User != nil {
		conv.botAvatar = s.State.User.AvatarURL("")
	}
	msg.Conversation = conv
	return msg
}
