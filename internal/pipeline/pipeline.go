// Package pipeline fans each inbound message out to the handlers.
package pipeline

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/rs/zerolog"

	"github.com/keshon/server-companion/internal/chat"
	"github.com/keshon/server-companion/internal/metrics"
)

// Stage handles one message. A returned error is logged and counted.
type Stage interface {
	OnMessage(ctx context.Context, msg chat.Message) error
}

// StageFunc adapts a function to Stage.
type StageFunc func(ctx context.Context, msg chat.Message) error

func (f StageFunc) OnMessage(ctx context.Context, msg chat.Message) error { return f(ctx, msg) }

type namedStage struct {
	name  string
	stage Stage
}

// Pipeline runs its stages in order for every human guild message.
// A failing or panicking stage never stops the ones after it.
type Pipeline struct {
	stages  []namedStage
	metrics *metrics.Metrics
	log     zerolog.Logger
}

func New(log zerolog.Logger, m *metrics.Metrics) *Pipeline {
	return &Pipeline{log: log, metrics: m}
}

// Use appends a stage. Not safe to call concurrently with Handle.
func (p *Pipeline) Use(name string, s Stage) *Pipeline {
	p.stages = append(p.stages, namedStage{name: name, stage: s})
	return p
}

// Handle returns the number of stages that failed.
func (p *Pipeline) Handle(ctx context.Context, msg chat.Message) int {
	if msg.Author.IsBot || msg.Guild.ID == "" {
		return 0
	}
	failed := 0
	for _, s := range p.stages {
		if err := p.run(ctx, s, msg); err != nil {
			failed++
			p.metrics.StageFailure(s.name)
			p.log.Error().
				Err(err).
				Str("stage", s.name).
				Str("guild", msg.Guild.ID).
				Str("channel", msg.Channel.ID).
				Str("message", msg.ID).
				Msg("message stage failed")
		}
	}
	return failed
}

func (p *Pipeline) run(ctx context.Context, s namedStage, msg chat.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			p.log.Debug().Str("stage", s.name).Bytes("stack", debug.Stack()).Msg("recovered panic")
		}
	}()
	return s.stage.OnMessage(ctx, msg)
}
