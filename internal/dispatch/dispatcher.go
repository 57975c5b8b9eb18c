// Package dispatch fans a rendered alert out to the recipient's enabled
// notification channels. Channels run in parallel and fail independently;
// the dispatcher's job is to come back with one ChannelOutcome per channel
// attempted, never to abort the alert because one transport had a bad day.
package dispatch

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"swellwatch/internal/types"
)

// Dispatcher delivers one alert across the recipient's channels.
type Dispatcher struct {
	channels []types.NotificationChannel
	clock    types.Clock
	logger   types.Logger
}

// NewDispatcher creates a Dispatcher over the given channels. Channel order
// determines outcome order in the result.
func NewDispatcher(channels []types.NotificationChannel, clock types.Clock, logger types.Logger) *Dispatcher {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &Dispatcher{channels: channels, clock: clock, logger: logger}
}

// Dispatch sends msg to every channel the recipient has enabled and returns
// one outcome per attempted channel, in the dispatcher's channel order.
// Channels the recipient has not enabled are recorded as skipped.
//
// Validation failures (bad email, no device tokens) produce an
// invalid_recipient outcome without touching the transport; transport
// failures produce a failed outcome. Neither aborts the other channels.
func (d *Dispatcher) Dispatch(ctx context.Context, r types.Recipient, msg types.OutboundMessage) []types.ChannelOutcome {
	outcomes := make([]types.ChannelOutcome, len(d.channels))

	var mu sync.Mutex
	g, gCtx := errgroup.WithContext(ctx)

	for i, ch := range d.channels {
		i, ch := i, ch

		if !r.HasChannel(ch.Type()) {
			outcomes[i] = types.ChannelOutcome{
				Channel: ch.Type(),
				Status:  types.DeliverySkipped,
			}
			continue
		}

		g.Go(func() error {
			outcome := d.dispatchOne(gCtx, ch, r, msg)
			mu.Lock()
			outcomes[i] = outcome
			mu.Unlock()
			// Failures are captured in the outcome; never propagate to the
			// group, so sibling channels still run.
			return nil
		})
	}

	g.Wait()
	return outcomes
}

func (d *Dispatcher) dispatchOne(ctx context.Context, ch types.NotificationChannel, r types.Recipient, msg types.OutboundMessage) types.ChannelOutcome {
	start := d.clock.Now()

	if err := ch.ValidateRecipient(r); err != nil {
		d.logger.Warn("recipient failed channel validation",
			"channel", string(ch.Type()),
			"user_id", r.UserID,
			"error", err.Error(),
		)
		return types.ChannelOutcome{
			Channel:       ch.Type(),
			Status:        types.DeliveryInvalidRecipient,
			FailureReason: err.Error(),
			DurationMS:    d.clock.Now().Sub(start).Milliseconds(),
		}
	}

	ref, err := ch.Deliver(ctx, r, msg)
	elapsed := d.clock.Now().Sub(start).Milliseconds()
	if err != nil {
		status := types.DeliveryFailed
		if !types.IsTransport(err) {
			status = types.DeliveryInvalidRecipient
		}
		d.logger.Error("channel delivery failed",
			"channel", string(ch.Type()),
			"trigger_id", msg.TriggerID,
			"status", string(status),
			"error", err.Error(),
		)
		return types.ChannelOutcome{
			Channel:       ch.Type(),
			Status:        status,
			FailureReason: err.Error(),
			DurationMS:    elapsed,
		}
	}

	d.logger.Info("channel delivery succeeded",
		"channel", string(ch.Type()),
		"trigger_id", msg.TriggerID,
		"provider_ref", ref,
		"duration_ms", elapsed,
	)
	return types.ChannelOutcome{
		Channel:     ch.Type(),
		Status:      types.DeliverySent,
		ProviderRef: ref,
		DurationMS:  elapsed,
	}
}

// AnySent reports whether at least one outcome is a successful send. The
// ledger only records alerts that actually reached a provider.
func AnySent(outcomes []types.ChannelOutcome) bool {
	for _, o := range outcomes {
		if o.Status == types.DeliverySent {
			return true
		}
	}
	return false
}

// AllSkipped reports whether no channel was even attempted.
func AllSkipped(outcomes []types.ChannelOutcome) bool {
	for _, o := range outcomes {
		if o.Status != types.DeliverySkipped {
			return false
		}
	}
	return true
}
