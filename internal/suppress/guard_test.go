package suppress

import (
	"testing"
	"time"

	"swellwatch/internal/types"
)

type mockClock struct {
	now time.Time
}

func (c *mockClock) Now() time.Time { return c.now }

var matched = types.MatchResult{Matched: true}

func trigger(prevMatched *bool) *types.Trigger {
	t := &types.Trigger{ID: "trg_1"}
	if prevMatched != nil {
		t.PrevState = &types.EvaluationState{TriggerID: "trg_1", LastMatched: *prevMatched}
	}
	return t
}

func boolPtr(b bool) *bool { return &b }

func TestShouldSend_NoPreviousState_Sends(t *testing.T) {
	g := NewGuard(6*time.Hour, &mockClock{now: time.Now()})

	send, reason := g.ShouldSend(trigger(nil), matched, nil)
	if !send {
		t.Fatalf("first-ever match must send, got suppressed: %s", reason)
	}
}

func TestShouldSend_RisingEdge_IgnoresCooldown(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	g := NewGuard(6*time.Hour, &mockClock{now: now})

	// Last alert sent one hour ago (well within the 6h cooldown), but the
	// previous evaluation did not match. Edge detection wins.
	lastAlert := &types.SentAlert{TriggerID: "trg_1", SentAt: now.Add(-time.Hour)}

	send, reason := g.ShouldSend(trigger(boolPtr(false)), matched, lastAlert)
	if !send {
		t.Fatalf("rising edge must send regardless of cooldown, got: %s", reason)
	}
}

func TestShouldSend_StillMatchingWithinCooldown_Suppresses(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	g := NewGuard(6*time.Hour, &mockClock{now: now})

	lastAlert := &types.SentAlert{TriggerID: "trg_1", SentAt: now.Add(-2 * time.Hour)}

	send, _ := g.ShouldSend(trigger(boolPtr(true)), matched, lastAlert)
	if send {
		t.Fatal("still-matching trigger inside cooldown must be suppressed")
	}
}

func TestShouldSend_StillMatchingCooldownElapsed_Sends(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	g := NewGuard(6*time.Hour, &mockClock{now: now})

	lastAlert := &types.SentAlert{TriggerID: "trg_1", SentAt: now.Add(-7 * time.Hour)}

	send, _ := g.ShouldSend(trigger(boolPtr(true)), matched, lastAlert)
	if !send {
		t.Fatal("cooldown elapsed, send expected")
	}
}

func TestShouldSend_StillMatchingNoAlertRecord_Sends(t *testing.T) {
	g := NewGuard(6*time.Hour, &mockClock{now: time.Now()})

	send, _ := g.ShouldSend(trigger(boolPtr(true)), matched, nil)
	if !send {
		t.Fatal("matching streak with no alert on record must send")
	}
}

func TestShouldSend_NotMatching_NeverSends(t *testing.T) {
	g := NewGuard(6*time.Hour, &mockClock{now: time.Now()})

	send, _ := g.ShouldSend(trigger(nil), types.MatchResult{Matched: false}, nil)
	if send {
		t.Fatal("non-matching result must never send")
	}
}

// TestShouldSend_ConsecutiveRuns walks the guard through five hourly runs
// with a cooldown of 6h: exactly one send occurs in the window. A brief
// non-match on run 3 resets the edge, so run 4 sends again.
func TestShouldSend_ConsecutiveRuns(t *testing.T) {
	start := time.Date(2026, 8, 30, 6, 0, 0, 0, time.UTC)
	clock := &mockClock{now: start}
	g := NewGuard(6*time.Hour, clock)

	t.Run("steady match sends once per cooldown window", func(t *testing.T) {
		var lastAlert *types.SentAlert
		prevMatched := false
		sends := 0

		for run := 0; run < 5; run++ {
			clock.now = start.Add(time.Duration(run) * time.Hour)
			trg := trigger(boolPtr(prevMatched))

			send, _ := g.ShouldSend(trg, matched, lastAlert)
			if send {
				sends++
				lastAlert = &types.SentAlert{TriggerID: "trg_1", SentAt: clock.now}
			}
			prevMatched = true
		}

		if sends != 1 {
			t.Fatalf("expected exactly 1 send across 5 hourly runs within cooldown, got %d", sends)
		}
	})

	t.Run("lapse and re-match sends fresh regardless of cooldown", func(t *testing.T) {
		matchByRun := []bool{true, true, false, true, true}
		var lastAlert *types.SentAlert
		prevMatched := false
		var sendRuns []int

		for run, m := range matchByRun {
			clock.now = start.Add(time.Duration(run) * time.Hour)
			trg := trigger(boolPtr(prevMatched))

			if m {
				send, _ := g.ShouldSend(trg, matched, lastAlert)
				if send {
					sendRuns = append(sendRuns, run)
					lastAlert = &types.SentAlert{TriggerID: "trg_1", SentAt: clock.now}
				}
			}
			prevMatched = m
		}

		if len(sendRuns) != 2 || sendRuns[0] != 0 || sendRuns[1] != 3 {
			t.Fatalf("expected sends on runs [0 3], got %v", sendRuns)
		}
	})
}

func TestNewGuard_NonPositiveCooldownUsesDefault(t *testing.T) {
	g := NewGuard(0, nil)
	if g.Cooldown() != DefaultCooldown {
		t.Fatalf("expected default cooldown %v, got %v", DefaultCooldown, g.Cooldown())
	}
}
