package dispatch

import (
	"context"
	"net/mail"

	"swellwatch/internal/external"
	"swellwatch/internal/types"
)

// EmailChannel delivers alerts as plaintext email through an EmailProvider.
type EmailChannel struct {
	provider external.EmailProvider
	fromName string
	fromAddr string
}

// NewEmailChannel creates an EmailChannel sending from the given identity.
func NewEmailChannel(provider external.EmailProvider, fromName, fromAddr string) *EmailChannel {
	return &EmailChannel{provider: provider, fromName: fromName, fromAddr: fromAddr}
}

// Type returns the email channel identifier.
func (c *EmailChannel) Type() types.ChannelType { return types.ChannelEmail }

// ValidateRecipient requires a syntactically valid email address.
func (c *EmailChannel) ValidateRecipient(r types.Recipient) error {
	if r.Email == "" {
		return types.NewAppError(types.ErrCodeValidationEmail,
			"recipient has no email address", nil)
	}
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return types.NewAppErrorWithDetails(types.ErrCodeValidationEmail,
			"recipient email address is malformed", err,
			map[string]any{"user_id": r.UserID})
	}
	return nil
}

// Deliver sends the rendered alert body as a plaintext email. The subject
// arrives fully formed (emoji included) from the message renderer.
func (c *EmailChannel) Deliver(ctx context.Context, r types.Recipient, msg types.OutboundMessage) (string, error) {
	return c.provider.Send(ctx, external.SendEmailInput{
		To:        r.Email,
		FromName:  c.fromName,
		FromAddr:  c.fromAddr,
		Subject:   msg.Subject,
		BodyText:  msg.Body,
		TriggerID: msg.TriggerID,
	})
}

var _ types.NotificationChannel = (*EmailChannel)(nil)
