// Package chattest provides an in-memory chat.Conversation for tests.
package chattest

import (
	"context"
	"sync"

	"github.com/keshon/server-companion/internal/chat"
)

type Reply struct {
	MessageID string
	Reply     chat.AIReply
}

// Conversation records everything sent to it. History is returned newest first.
type Conversation struct {
	mu sync.Mutex

	History    []chat.Message
	RecentErr  error
	ReplyErr   error
	NoticeErr  error
	TypingErr  error
	RecentCall int
	TypingCall int
	Notices    []chat.LevelUpNotice
	Replies    []Reply
}

func (c *Conversation) Recent(_ context.Context, _ string, limit int) ([]chat.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.RecentCall++
	if c.RecentErr != nil {
		return nil, c.RecentErr
	}
	out := c.History
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return append([]chat.Message(nil), out...), nil
}

func (c *Conversation) Typing(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.TypingCall++
	return c.TypingErr
}

func (c *Conversation) SendLevelUp(_ context.Context, n chat.LevelUpNotice) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.NoticeErr != nil {
		return c.NoticeErr
	}
	c.Notices = append(c.Notices, n)
	return nil
}

func (c *Conversation) Reply(_ context.Context, messageID string, r chat.AIReply) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ReplyErr != nil {
		return c.ReplyErr
	}
	c.Replies = append(c.Replies, Reply{MessageID: messageID, Reply: r})
	return nil
}

// SentNotices returns a copy of the recorded level-up notices.
func (c *Conversation) SentNotices() []chat.LevelUpNotice {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]chat.LevelUpNotice(nil), c.Notices...)
}

// SentReplies returns a copy of the recorded replies.
func (c *Conversation) SentReplies() []Reply {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Reply(nil), c.Replies...)
}

// Message builds a guild message from user in channel, attached to c.
func (c *Conversation) Message(id, userID, userName, guildID, channelID, content string) chat.Message {
	return chat.Message{
		ID:           id,
		Author:       chat.Author{ID: userID, Username: userName},
		Guild:        chat.Guild{ID: guildID, Name: "Test Guild"},
		Channel:      chat.Channel{ID: channelID, Name: "general"},
		Content:      content,
		Conversation: c,
	}
}

var _ chat.Conversation = (*Conversation)(nil)
