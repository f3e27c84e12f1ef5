package core

import (
	"context"
	"fmt"
	"time"

	"evsync/entity"

	"github.com/stripe/stripe-go/v76"
)

// EquityPaymentLink creates a checkout link for a participant's outstanding
// equity share.
func (c *Core) EquityPaymentLink(ctx context.Context, participantId string) (*entity.Payment, error) {
	if c.sc == nil {
		return nil, fmt.Errorf("stripe service not connected")
	}

	participant, err := c.db.GetParticipantById(ctx, participantId)
	if err != nil {
		return nil, err
	}
	if participant == nil {
		return nil, fmt.Errorf("participant not found")
	}
	if participant.PaymentStatus == entity.PaymentPaid {
		return nil, fmt.Errorf("equity share already paid")
	}

	event, err := c.db.GetEvent(ctx, participant.EventSlug)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, entity.ErrEventNotFound
	}

	return c.sc.EquityCheckout(ctx, participant, event)
}

func (c *Core) StripeVerifySignature(payload []byte, header string, tolerance time.Duration) bool {
	if c.sc == nil {
		return false
	}
	return c.sc.VerifySignature(payload, header, tolerance)
}

func (c *Core) StripeEvent(ctx context.Context, evt *stripe.Event) {
	if c.sc == nil {
		return
	}
	c.sc.HandleEvent(ctx, evt)
}
