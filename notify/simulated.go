package notify

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Simulated logs the code instead of sending it, so the verification
// flow can be exercised without a paid gateway account. Every attempt
// succeeds.
type Simulated struct {
	log *zap.Logger
}

func NewSimulated(log *zap.Logger) *Simulated {
	return &Simulated{log: log}
}

func (s *Simulated) AttemptSend(_ context.Context, phone, code string) (DeliveryResult, error) {
	id := uuid.NewString()
	s.log.Info("simulated sms delivery",
		zap.String("message_id", id),
		zap.String("phone", phone),
		zap.String("code", code),
	)
	return DeliveryResult{MessageID: id, Delivered: true, Detail: "simulated"}, nil
}
