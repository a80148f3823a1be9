package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ticketshop/invoicing-gateway/internal/platform/messagebroker"
)

// NATSChannelNotifySubjectPrefix is the per-channel subject the chat
// front-end subscribes on; the channel id is appended as the last token.
const NATSChannelNotifySubjectPrefix = "chat.notify."

// channelMessageEvent is the payload consumed by the chat front-end worker.
type channelMessageEvent struct {
	MessageID string `json:"message_id"`
	ChannelID string `json:"channel_id"`
	Content   string `json:"content"`
}

// NATSNotifier delivers channel confirmations by publishing them to the
// message broker instead of calling the chat platform directly.
type NATSNotifier struct {
	natsClient *messagebroker.NATSClient
	logger     *slog.Logger
}

func NewNATSNotifier(natsClient *messagebroker.NATSClient, logger *slog.Logger) *NATSNotifier {
	return &NATSNotifier{
		natsClient: natsClient,
		logger:     logger.With("component", "nats_notifier"),
	}
}

func (n *NATSNotifier) Notify(ctx context.Context, channelID, message string) error {
	event := channelMessageEvent{
		MessageID: uuid.NewString(),
		ChannelID: channelID,
		Content:   message,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal channel message event: %w", err)
	}

	subject := NATSChannelNotifySubjectPrefix + channelID
	if err := n.natsClient.Publish(ctx, subject, payload); err != nil {
		return fmt.Errorf("failed to publish channel message to NATS subject %s: %w", subject, err)
	}
	n.logger.DebugContext(ctx, "Published channel message", "subject", subject, "message_id", event.MessageID)
	return nil
}
