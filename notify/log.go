package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// LogNotifier writes notifications to the structured log. Used on its own
// in local mode and alongside the real channels in production so every
// notification leaves a trace even when delivery fails.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLog creates a log notifier.
func NewLog(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the message.
func (n *LogNotifier) Notify(ctx context.Context, msg Message) error {
	n.logger.Info().
		Str("event", string(msg.Event)).
		Str("bucket", msg.BucketName).
		Str("project", msg.DisplayName).
		Str("owner", msg.OwnerEmail).
		Str("subject", msg.Subject).
		Msg(msg.Body)
	return nil
}

// Close is a no-op.
func (n *LogNotifier) Close() error { return nil }
