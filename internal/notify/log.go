package notify

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"go.uber.org/zap"
)

// Log is a dry-run Notifier: it records messages instead of delivering them.
type Log struct {
	Logger *zap.Logger
	W      io.Writer

	mu sync.Mutex
}

func (l *Log) Send(ctx context.Context, channel string, msg Message) error {
	if l.Logger != nil {
		l.Logger.Info("notify_dry_run",
			zap.String("channel", channel),
			zap.String("headline", msg.Headline),
			zap.Int("fields", len(msg.Fields)),
		)
	}
	if l.W == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	enc := json.NewEncoder(l.W)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Channel string  `json:"channel"`
		Message Message `json:"message"`
	}{channel, msg})
}
