package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/sourcewatch/internal/domain"
)

type RouterConfig struct {
	Slack          map[string]string // channel -> webhook URL
	Telegram       map[string]int64  // channel -> chat id
	DefaultChannel string
	DedupWindow    time.Duration
	SendTimeout    time.Duration
}

// Router resolves a logical channel to its endpoints and delivers.
// Transports are built on first use and reused for the life of the process.
type Router struct {
	cfg      RouterConfig
	logger   *zap.Logger
	telegram *Telegram
	dedup    *Dedup

	// newSlack is swapped in tests.
	newSlack func(webhook string) Transport

	mu    sync.Mutex
	cache map[string]Transport
}

// NewRouter accepts a nil telegram when no bot is configured.
func NewRouter(cfg RouterConfig, tg *Telegram, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	r := &Router{
		cfg:      cfg,
		logger:   logger,
		telegram: tg,
		dedup:    NewDedup(cfg.DedupWindow),
		cache:    make(map[string]Transport),
	}
	r.cfg.Slack = normalizeKeys(cfg.Slack)
	r.cfg.Telegram = normalizeKeys(cfg.Telegram)
	r.newSlack = func(webhook string) Transport { return NewSlack(webhook) }
	return r
}

// NormalizeChannel strips a leading '#' and surrounding whitespace.
func NormalizeChannel(ch string) string {
	return strings.TrimPrefix(strings.TrimSpace(ch), "#")
}

func normalizeKeys[V any](in map[string]V) map[string]V {
	out := make(map[string]V, len(in))
	for k, v := range in {
		out[NormalizeChannel(k)] = v
	}
	return out
}

func (r *Router) has(ch string) bool {
	if _, ok := r.cfg.Slack[ch]; ok {
		return true
	}
	if _, ok := r.cfg.Telegram[ch]; ok && r.telegram != nil {
		return true
	}
	return false
}

// Resolve returns the channel that will actually receive messages for ch.
func (r *Router) Resolve(ch string) (string, bool) {
	if c := NormalizeChannel(ch); c != "" && r.has(c) {
		return c, true
	}
	if d := NormalizeChannel(r.cfg.DefaultChannel); d != "" && r.has(d) {
		return d, true
	}
	return "", false
}

// Channels lists every channel with at least one endpoint.
func (r *Router) Channels() []string {
	var out []string
	seen := map[string]bool{}
	for ch := range r.cfg.Slack {
		if !seen[ch] {
			seen[ch] = true
			out = append(out, ch)
		}
	}
	if r.telegram != nil {
		for ch := range r.cfg.Telegram {
			if !seen[ch] {
				seen[ch] = true
				out = append(out, ch)
			}
		}
	}
	return out
}

func (r *Router) transport(ch string) Transport {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.cache[ch]; ok {
		return t
	}
	var m Multi
	if url, ok := r.cfg.Slack[ch]; ok {
		m = append(m, r.newSlack(url))
	}
	if id, ok := r.cfg.Telegram[ch]; ok && r.telegram != nil {
		m = append(m, r.telegram.Chat(id))
	}
	var t Transport = m
	if len(m) == 1 {
		t = m[0]
	}
	r.cache[ch] = t
	return t
}

func (r *Router) Send(ctx context.Context, channel string, msg Message) error {
	ch, ok := r.Resolve(channel)
	if !ok {
		r.logger.Error("notify_no_endpoint",
			zap.String("channel", channel),
			zap.String("default_channel", r.cfg.DefaultChannel),
			zap.String("headline", msg.Headline),
		)
		return fmt.Errorf("%w: %q", domain.ErrNoEndpoint, channel)
	}
	if r.dedup.Seen(msg.IdempotencyKey) {
		r.logger.Info("notify_duplicate_suppressed",
			zap.String("channel", ch),
			zap.String("key", msg.IdempotencyKey),
		)
		return nil
	}

	sctx, cancel := context.WithTimeout(ctx, r.cfg.SendTimeout)
	defer cancel()
	if err := r.transport(ch).Deliver(sctx, msg); err != nil {
		r.logger.Warn("notify_send_error",
			zap.String("channel", ch),
			zap.String("headline", msg.Headline),
			zap.Error(err),
		)
		return fmt.Errorf("%w: channel %s: %w", domain.ErrDelivery, ch, err)
	}
	r.dedup.Mark(msg.IdempotencyKey)
	r.logger.Debug("notify_sent",
		zap.String("channel", ch),
		zap.String("headline", msg.Headline),
	)
	return nil
}
