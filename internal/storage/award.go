package storage

import (
	"github.com/google/uuid"

	"github.com/keshon/server-companion/internal/leveling"
)

// applyAward mutates p in place and returns the ledger entry it appended.
func applyAward(p *UserProfile, a Award) XPEvent {
	at := a.At
	p.TotalXP += a.Amount
	p.MessageCount++
	p.LastMessageAt = &at
	p.Level = leveling.LevelForXP(p.TotalXP)

	ev := XPEvent{
		ID:     uuid.NewString(),
		Amount: a.Amount,
		Source: a.Source,
		At:     at,
	}
	p.History = append(p.History, ev)
	if len(p.History) > historyLimit {
		p.History = p.History[len(p.History)-historyLimit:]
	}
	return ev
}
