package memory

import (
	"context"

	"go.uber.org/zap"

	"github.com/jm-sky/saasbase-approvals/internal/application/port"
)

// LogNotifier writes notifications to the log instead of delivering them.
// Used when no delivery channel is configured.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a log-only notifier
func NewLogNotifier(logger *zap.Logger) port.Notifier {
	return &LogNotifier{logger: logger}
}

// Notify implements port.Notifier
func (n *LogNotifier) Notify(ctx context.Context, userID, subject, body string) error {
	n.logger.Info("Notification",
		zap.String("user_id", userID),
		zap.String("subject", subject),
		zap.String("body", body))
	return nil
}

// Verify interface compliance
var _ port.Notifier = (*LogNotifier)(nil)
