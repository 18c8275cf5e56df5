package gateways

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// LoggingGateway accepts every message and logs it. The dev-mode stand-in
// for real providers.
type LoggingGateway struct {
	channel Channel
	logger  *slog.Logger
}

func NewLoggingGateway(channel Channel, logger *slog.Logger) *LoggingGateway {
	return &LoggingGateway{
		channel: channel,
		logger:  logger.With("module", "gateway", "channel", string(channel)),
	}
}

func (g *LoggingGateway) Send(ctx context.Context, msg Message) (Receipt, error) {
	providerID := "log-" + uuid.New().String()[:8]

	g.logger.InfoContext(ctx, "Dispatching message",
		"entity_id", msg.EntityID,
		"provider_id", providerID,
		"payload", msg.Payload,
	)

	return Receipt{Accepted: true, ProviderID: providerID}, nil
}

// NewLoggingGateways builds a full logging bundle for all channels.
func NewLoggingGateways(logger *slog.Logger) Gateways {
	return Gateways{
		ChannelEmail:    NewLoggingGateway(ChannelEmail, logger),
		ChannelSMS:      NewLoggingGateway(ChannelSMS, logger),
		ChannelPush:     NewLoggingGateway(ChannelPush, logger),
		ChannelCall:     NewLoggingGateway(ChannelCall, logger),
		ChannelDiscount: NewLoggingGateway(ChannelDiscount, logger),
	}
}
