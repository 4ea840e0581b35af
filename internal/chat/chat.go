// Package chat describes an inbound guild message and what the handlers may do back.
package chat

import (
	"context"
	"time"
)

type Author struct {
	ID          string
	Username    string
	DisplayName string
	IsBot       bool
}

// Name is the best human-facing label for the author.
func (a Author) Name() string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	return a.Username
}

type Guild struct {
	ID   string
	Name string
}

type Channel struct {
	ID   string
	Name string
}

// Message is one inbound message. Conversation is nil for history entries.
type Message struct {
	ID          string
	Author      Author
	Guild       Guild
	Channel     Channel
	Content     string
	Timestamp   time.Time
	MemberRoles []string

	Conversation Conversation
}

// LevelUpNotice is what a level-up card shows.
type LevelUpNotice struct {
	UserID       string
	UserName     string
	NewLevel     int
	TotalXP      int
	MessageCount int
}

// AIReply is a completion ready for delivery.
type AIReply struct {
	Content   string
	Truncated bool
	AskedBy   string
	Provider  string
}

// Conversation is the channel-side capability attached to an inbound message.
type Conversation interface {
	// Recent returns up to limit messages posted before beforeID, newest first.
	Recent(ctx context.Context, beforeID string, limit int) ([]Message, error)
	Typing(ctx context.Context) error
	SendLevelUp(ctx context.Context, notice LevelUpNotice) error
	Reply(ctx context.Context, messageID string, reply AIReply) error
}
