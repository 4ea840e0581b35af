package discord

import (
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/server-companion/internal/chat"
)

const (
	EmbedColor   = 0xb01e66
	LevelUpColor = 0x00ff00
)

func levelUpEmbed(n chat.LevelUpNotice, avatarURL string, now time.Time) *discordgo.MessageEmbed {
	e := &discordgo.MessageEmbed{
		Color:       LevelUpColor,
		Title:       "🎉 Level Up!",
		Description: fmt.Sprintf("Congratulations <@%s>! You've reached **Level %d**!", n.UserID, n.NewLevel),
		Fields: []*discordgo.MessageEmbedField{{
			Name:   "📊 Your Stats",
			Value:  fmt.Sprintf("**Total XP:** %d\n**Messages:** %d", n.TotalXP, n.MessageCount),
			Inline: true,
		}},
		Footer:    &discordgo.MessageEmbedFooter{Text: "Keep chatting to earn more XP!"},
		Timestamp: now.Format(time.RFC3339),
	}
	if avatarURL != "" {
		e.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: avatarURL}
	}
	return e
}

func aiReplyEmbed(r chat.AIReply, botAvatarURL string, now time.Time) *discordgo.MessageEmbed {
	e := &discordgo.MessageEmbed{
		Color:       EmbedColor,
		Author:      &discordgo.MessageEmbedAuthor{Name: "AI Assistant", IconURL: botAvatarURL},
		Description: r.Content,
		Footer:      &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Responding to %s • Powered by %s", r.AskedBy, r.Provider)},
		Timestamp:   now.Format(time.RFC3339),
	}
	if r.Truncated {
		e.Fields = append(e.Fields, &discordgo.MessageEmbedField{
			Name:  "📄 Response Truncated",
			Value: "Response was shortened for readability.",
		})
	}
	return e
}
