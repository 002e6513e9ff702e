package lark

import (
	"context"
	"encoding/json"
	"fmt"

	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"

	"github.com/jm-sky/saasbase-approvals/internal/application/port"
)

// Notifier delivers approval notices as Lark text messages. User ids are
// Lark open ids.
type Notifier struct {
	client *Client
	logger *zap.Logger
}

// NewNotifier creates a Lark-backed port.Notifier
func NewNotifier(client *Client, logger *zap.Logger) port.Notifier {
	return &Notifier{
		client: client,
		logger: logger,
	}
}

// Notify sends one text message to a user
func (n *Notifier) Notify(ctx context.Context, userID, subject, body string) error {
	if userID == "" {
		return fmt.Errorf("userID cannot be empty")
	}

	content, err := textContent(fmt.Sprintf("%s\n%s", subject, body))
	if err != nil {
		return fmt.Errorf("failed to build message content: %w", err)
	}

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType("open_id").
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(userID).
			MsgType("text").
			Content(content).
			Build()).
		Build()

	resp, err := n.client.SDK().Im.Message.Create(ctx, req)
	if err != nil {
		n.logger.Error("Failed to send notification",
			zap.String("user_id", userID),
			zap.Error(err))
		return fmt.Errorf("failed to send notification: %w", err)
	}

	if !resp.Success() {
		n.logger.Error("API returned failure",
			zap.String("user_id", userID),
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return fmt.Errorf("API error: code=%d, msg=%s", resp.Code, resp.Msg)
	}

	messageID := ""
	if resp.Data != nil && resp.Data.MessageId != nil {
		messageID = *resp.Data.MessageId
	}
	n.logger.Info("Notification sent",
		zap.String("message_id", messageID),
		zap.String("user_id", userID))
	return nil
}

// textContent builds the Lark text message payload with proper escaping
func textContent(text string) (string, error) {
	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

// Verify interface compliance
var _ port.Notifier = (*Notifier)(nil)
