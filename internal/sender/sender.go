package sender

import (
	"context"
	"fmt"
	"log"
	"math/rand"

	appErrors "github.com/peakseason/trekbot-backend/internal/errors"
)

// Sender is the messaging capability: whatever transport delivers an
// outbound message. The core treats it as opaque.
type Sender interface {
	Send(ctx context.Context, to, body string) error
}

// LogSender logs instead of delivering. Dev/test transport.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, to, body string) error {
	log.Printf("📤 [log sender] to=%s body=%q\n", to, body)
	return nil
}

// FlakySender simulates a provider with a 90%% success rate.
type FlakySender struct{}

func (FlakySender) Send(ctx context.Context, to, body string) error {
	if rand.Intn(100) < 90 {
		return nil
	}
	return &appErrors.DeliveryFailure{Recipient: to, Err: fmt.Errorf("mock send failed")}
}
