// Package assistant answers question-shaped messages in listening channels.
package assistant

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/keshon/server-companion/internal/ai"
	"github.com/keshon/server-companion/internal/chat"
	"github.com/keshon/server-companion/internal/metrics"
	"github.com/keshon/server-companion/internal/ratelimit"
	"github.com/keshon/server-companion/internal/storage"
	"github.com/keshon/server-companion/pkg/retrylimit"
)

const (
	// MaxReplies AI replies per user per guild in each ReplyWindow.
	MaxReplies  = 3
	ReplyWindow = 10 * time.Minute
	// ReplyBudget is the display limit for a reply, in runes.
	ReplyBudget = 2000

	DefaultTimeout = 30 * time.Second
	rateScope      = "ai:"
)

// ConfigSource is the slice of storage the responder reads.
type ConfigSource interface {
	GuildConfig(ctx context.Context, guildID string) (storage.GuildConfig, error)
}

// Limiter is satisfied by *ratelimit.Limiter.
type Limiter interface {
	Allow(subject, scope string, maxCount int, window time.Duration) ratelimit.Decision
}

type Option func(*Responder)

// WithTimeout bounds the completion call. Zero or negative keeps the default.
func WithTimeout(d time.Duration) Option {
	return func(r *Responder) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithMaxPromptChars sets the prompt cap; zero disables it.
func WithMaxPromptChars(n int) Option {
	return func(r *Responder) { r.builder.MaxChars = n }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Responder) { r.metrics = m }
}

type Responder struct {
	configs   ConfigSource
	limiter   Limiter
	completer ai.Completer
	builder   Builder
	timeout   time.Duration
	metrics   *metrics.Metrics
	log       zerolog.Logger
}

func NewResponder(configs ConfigSource, limiter Limiter, completer ai.Completer, log zerolog.Logger, opts ...Option) *Responder {
	r := &Responder{
		configs:   configs,
		limiter:   limiter,
		completer: completer,
		builder:   Builder{MaxChars: DefaultMaxPromptChars},
		timeout:   DefaultTimeout,
		log:       log,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OnMessage replies to msg when every filter passes. Skipped messages return nil.
func (r *Responder) OnMessage(ctx context.Context, msg chat.Message) error {
	cfg, err := r.configs.GuildConfig(ctx, msg.Guild.ID)
	if err != nil {
		return fmt.Errorf("load guild config: %w", err)
	}
	if !cfg.ListensIn(msg.Channel.ID) || !IsQuestion(msg.Content) {
		return nil
	}
	if d := r.limiter.Allow(msg.Author.ID, rateScope+msg.Guild.ID, MaxReplies, ReplyWindow); !d.Allowed {
		r.metrics.AIReply("rate_limited")
		return nil
	}
	if msg.Conversation == nil {
		return fmt.Errorf("message %s has no conversation", msg.ID)
	}
	conv := msg.Conversation

	if err := conv.Typing(ctx); err != nil {
		r.log.Debug().Err(err).Str("channel", msg.Channel.ID).Msg("typing indicator failed")
	}

	var recent []chat.Message
	err = retrylimit.Do(ctx, retrylimit.Config{MaxAttempts: 2, Logger: r.log}, nil, func() error {
		var err error
		recent, err = conv.Recent(ctx, msg.ID, ContextMessages)
		return err
	})
	if err != nil {
		r.log.Warn().Err(err).Str("channel", msg.Channel.ID).Msg("answering without recent context")
		recent = nil
	}

	prompt := r.builder.Build(cfg, msg.Guild.Name, recent, msg)

	cctx, cancel := context.WithTimeout(ctx, r.timeout)
	started := time.Now()
	raw, err := r.completer.Complete(cctx, prompt)
	cancel()
	r.metrics.ObserveCompletion(time.Since(started))
	if err != nil {
		r.metrics.AIReply("completion_error")
		return fmt.Errorf("completion via %s: %w", r.completer.Name(), err)
	}

	reply := chat.AIReply{
		Content:  raw,
		AskedBy:  msg.Author.Name(),
		Provider: r.completer.Name(),
	}
	if runeLen(raw) > ReplyBudget {
		reply.Content = truncateRunes(raw, ReplyBudget)
		reply.Truncated = true
	}

	if err := conv.Reply(ctx, msg.ID, reply); err != nil {
		r.metrics.AIReply("delivery_error")
		return fmt.Errorf("deliver reply: %w", err)
	}
	r.metrics.AIReply("sent")
	r.log.Info().
		Str("guild", msg.Guild.Name).
		Str("channel", msg.Channel.Name).
		Str("user", msg.Author.Username).
		Bool("truncated", reply.Truncated).
		Msg("AI responded")
	return nil
}
