// Package suppress implements the repeat-suppression guard: the decision of
// whether a matching trigger actually warrants a fresh send.
//
// The orchestrator runs on a fixed schedule. While conditions stay matching
// across consecutive runs, sending every run would spam the user, so a send
// happens on the rising edge (previous run did not match, this one does) or
// once the cooldown has elapsed since the last sent alert. A trigger that
// stops matching and later matches again always gets a fresh send; edge
// detection takes priority over cooldown.
//
// Per trigger, the conceptual states are NOT_MATCHING, MATCHING_SUPPRESSED,
// and MATCHING_SENT. The previous match state lives in the trigger store's
// evaluation state row; the last send time lives in the alert ledger.
package suppress

import (
	"time"

	"swellwatch/internal/types"
)

// DefaultCooldown is the send cooldown used when configuration does not
// override it.
const DefaultCooldown = 6 * time.Hour

// Guard decides whether a fresh send is warranted for a matching trigger.
type Guard struct {
	cooldown time.Duration
	clock    types.Clock
}

// NewGuard creates a Guard with the given cooldown. A non-positive cooldown
// falls back to DefaultCooldown.
func NewGuard(cooldown time.Duration, clock types.Clock) *Guard {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	return &Guard{cooldown: cooldown, clock: clock}
}

// ShouldSend reports whether a send is warranted and why. It assumes the
// rule matched this run; callers never consult the guard on a non-match.
//
//   - No previous evaluation state, or the trigger did not match on the
//     immediately preceding evaluation: rising edge, send.
//   - Matched last run too: suppress unless the cooldown has elapsed since
//     the last sent alert. A matching streak with no alert on record at all
//     sends (nothing to cool down from).
func (g *Guard) ShouldSend(trigger *types.Trigger, match types.MatchResult, lastAlert *types.SentAlert) (bool, string) {
	if !match.Matched {
		return false, "conditions not matching"
	}

	prev := trigger.PrevState
	if prev == nil || !prev.LastMatched {
		return true, "rising edge: previous evaluation did not match"
	}

	if lastAlert == nil {
		return true, "still matching with no alert on record"
	}

	elapsed := g.clock.Now().Sub(lastAlert.SentAt)
	if elapsed >= g.cooldown {
		return true, "cooldown elapsed since last alert"
	}

	return false, "suppressed: still matching within cooldown"
}

// Cooldown returns the configured cooldown interval.
func (g *Guard) Cooldown() time.Duration {
	return g.cooldown
}
