package types

import (
	"context"
	"time"
)

// ConditionsProvider fetches the current environmental snapshot for a spot.
// Implementations must tolerate missing sub-fields (no tide data for
// non-coastal-station locations) by returning partial snapshots rather than
// failing outright.
type ConditionsProvider interface {
	FetchConditions(ctx context.Context, spot Spot) (*ConditionSnapshot, error)
}

// BuoyObserver fetches a live observation from a buoy station. Observations
// are attached to alert messages for display and never drive evaluation.
type BuoyObserver interface {
	FetchObservation(ctx context.Context, stationID string) (*BuoyObservation, error)
}

// TriggerStore yields the currently enabled triggers, each hydrated with
// its spot, its owner's delivery endpoints, and its previous evaluation
// state, and persists the per-run evaluation state transition.
type TriggerStore interface {
	ListEnabledTriggers(ctx context.Context) ([]Trigger, error)
	SetEvaluationState(ctx context.Context, triggerID string, matched bool, evaluatedAt time.Time) error
}

// AlertLedger is the durable, append-only record of alerts actually
// dispatched. It is the source of truth for the suppression guard's
// cooldown and for the user-facing history view.
type AlertLedger interface {
	RecordAlert(ctx context.Context, alert *SentAlert) error
	LastAlertFor(ctx context.Context, triggerID string) (*SentAlert, error)
	ListRecentByUser(ctx context.Context, userID string, limit int) ([]SentAlert, error)
}

// TextGenerator is the narrow seam around the external text generation
// service. Short-timeout, no retries within a run; callers recover from
// any failure with a deterministic fallback.
type TextGenerator interface {
	Generate(ctx context.Context, instruction string, facts string) (string, error)
}

// NotificationChannel is one delivery transport (email, push). Channels are
// dispatched independently; one channel's failure must not block another.
type NotificationChannel interface {
	// Type returns the channel identifier.
	Type() ChannelType

	// ValidateRecipient checks the recipient data this channel needs.
	// A failure here is a validation outcome, not a transport failure,
	// and is never retried.
	ValidateRecipient(r Recipient) error

	// Deliver sends the message and returns an opaque provider reference
	// ID on success.
	Deliver(ctx context.Context, r Recipient, msg OutboundMessage) (string, error)
}

// OutboundMessage is the rendered alert handed to channels.
type OutboundMessage struct {
	TriggerID   string
	TriggerName string
	SpotName    string
	Label       ConditionLabel
	// Subject is the short headline used verbatim as email subject and push
	// title; the renderer owns its full form, emoji included.
	Subject string
	// Body is the rendered alert text.
	Body string
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the real system time (always UTC).
type RealClock struct{}

// Now returns the current time in UTC.
func (RealClock) Now() time.Time { return time.Now().UTC() }

// Logger defines the structured logging interface used where components
// need a mockable logger. slog satisfies it via a thin adapter at the
// entrypoints.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	With(args ...any) Logger
}
