package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// GatewayConfig configures the SendSMSGate OTP client.
type GatewayConfig struct {
	BaseURL string
	APIKey  string
	Sender  string
}

type gatewayRequest struct {
	Recipient string `json:"recipient"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Sender    string `json:"sender"`
}

type gatewayResponse struct {
	Status    string `json:"status"`
	MessageID string `json:"message_id"`
	Error     string `json:"error"`
}

// Gateway sends OTP codes through the SendSMSGate HTTP API.
type Gateway struct {
	client *resty.Client
	sender string
	log    *zap.Logger
}

// NewGateway creates an SMS gateway client with retries and a short
// timeout so a slow provider cannot stall verification issuance.
func NewGateway(cfg GatewayConfig, log *zap.Logger) *Gateway {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetAuthToken(cfg.APIKey).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Gateway{client: client, sender: cfg.Sender, log: log}
}

func (g *Gateway) AttemptSend(ctx context.Context, phone, code string) (DeliveryResult, error) {
	var parsed gatewayResponse
	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(gatewayRequest{
			Recipient: phone,
			Code:      code,
			Message:   fmt.Sprintf("Your verification code is %s", code),
			Sender:    g.sender,
		}).
		SetResult(&parsed).
		SetError(&parsed).
		Post("/send-otp")
	if err != nil {
		return DeliveryResult{}, fmt.Errorf("notify: gateway request: %w", err)
	}

	if resp.IsError() {
		g.log.Warn("sms gateway rejected delivery",
			zap.Int("status_code", resp.StatusCode()),
			zap.String("phone", phone),
			zap.String("error", parsed.Error),
		)
		return DeliveryResult{Delivered: false, Detail: parsed.Error}, nil
	}

	return DeliveryResult{
		MessageID: parsed.MessageID,
		Delivered: true,
	}, nil
}
