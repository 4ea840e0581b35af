package discord

import (
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// restAPI is the part of *discordgo.Session the adapters call.
type restAPI interface {
	ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error)
	ChannelTyping(channelID string, options ...discordgo.RequestOption) error
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	GuildMemberRoleAdd(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error)
}

var _ restAPI = (*discordgo.Session)(nil)

// restError exposes the status of a failed Discord call to retrylimit.
type restError struct {
	err  error
	code int
}

func (e *restError) Error() string   { return e.err.Error() }
func (e *restError) Unwrap() error   { return e.err }
func (e *restError) StatusCode() int { return e.code }

func wrapREST(err error) error {
	if err == nil {
		return nil
	}
	var re *discordgo.RESTError
	if errors.As(err, &re) && re.Response != nil {
		return &restError{err: err, code: re.Response.StatusCode}
	}
	var rl *discordgo.RateLimitError
	if errors.As(err, &rl) {
		return &restError{err: err, code: 429}
	}
	return fmt.Errorf("discord: %w", err)
}
