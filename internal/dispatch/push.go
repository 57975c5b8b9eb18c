package dispatch

import (
	"context"

	"swellwatch/internal/external"
	"swellwatch/internal/types"
)

// PushChannel delivers alerts as push notifications through a PushProvider.
type PushChannel struct {
	provider external.PushProvider
}

// NewPushChannel creates a PushChannel.
func NewPushChannel(provider external.PushProvider) *PushChannel {
	return &PushChannel{provider: provider}
}

// Type returns the push channel identifier.
func (c *PushChannel) Type() types.ChannelType { return types.ChannelPush }

// ValidateRecipient requires at least one registered device token.
func (c *PushChannel) ValidateRecipient(r types.Recipient) error {
	if len(r.DeviceTokens) == 0 {
		return types.NewAppErrorWithDetails(types.ErrCodeValidationNoDevice,
			"recipient has no registered devices", nil,
			map[string]any{"user_id": r.UserID})
	}
	return nil
}

// Deliver sends the alert to all of the recipient's devices in one gateway
// call. The title arrives fully formed (emoji included) from the message
// renderer.
func (c *PushChannel) Deliver(ctx context.Context, r types.Recipient, msg types.OutboundMessage) (string, error) {
	return c.provider.Push(ctx, external.SendPushInput{
		DeviceTokens: r.DeviceTokens,
		Title:        msg.Subject,
		Body:         msg.Body,
		TriggerID:    msg.TriggerID,
	})
}

var _ types.NotificationChannel = (*PushChannel)(nil)
