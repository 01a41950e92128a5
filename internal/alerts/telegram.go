// Package alerts pushes high conviction institutional flow detections to Telegram.
package alerts

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/souhailsouid/adele/internal/model"
)

// DefaultCooldown is the minimum delay between two alerts for the same ticker
const DefaultCooldown = 4 * time.Hour

// Sender is the part of tgbotapi.BotAPI the notifier needs
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier sends HIGH_ALERT detections to a Telegram chat, at most once per cooldown per ticker
type Notifier struct {
	sender   Sender
	chatID   int64
	cooldown time.Duration
	logger   zerolog.Logger
	now      func() time.Time

	mu   sync.Mutex
	last map[string]time.Time
}

// NewNotifier creates a notifier. A zero cooldown uses DefaultCooldown.
func NewNotifier(sender Sender, chatID int64, cooldown time.Duration) *Notifier {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Notifier{
		sender:   sender,
		chatID:   chatID,
		cooldown: cooldown,
		logger:   log.With().Str("component", "telegram_alerts").Logger(),
		now:      time.Now,
		last:     make(map[string]time.Time),
	}
}

// NewTelegramNotifier connects to the Bot API with token
func NewTelegramNotifier(token string, chatID int64, cooldown time.Duration) (*Notifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Telegram bot: %w", err)
	}
	return NewNotifier(bot, chatID, cooldown), nil
}

// Notify sends the detection if it is a HIGH_ALERT outside the ticker's cooldown.
// It reports whether a message was sent.
func (n *Notifier) Notify(ctx context.Context, d *model.FlowDetection) (bool, error) {
	if d == nil || d.AlertLevel != model.AlertHigh {
		return false, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	now := n.now()
	n.mu.Lock()
	if last, ok := n.last[d.Ticker]; ok && now.Sub(last) < n.cooldown {
		n.mu.Unlock()
		n.logger.Debug().Str("ticker", d.Ticker).Msg("Alert suppressed by cooldown")
		return false, nil
	}
	n.last[d.Ticker] = now
	n.mu.Unlock()

	msg := tgbotapi.NewMessage(n.chatID, FormatDetection(d))
	msg.ParseMode = "Markdown"

	if _, err := n.sender.Send(msg); err != nil {
		// Allow a retry on the next scan
		n.mu.Lock()
		delete(n.last, d.Ticker)
		n.mu.Unlock()
		return false, fmt.Errorf("sending alert for %s: %w", d.Ticker, err)
	}

	n.logger.Info().
		Str("ticker", d.Ticker).
		Float64("composite", d.Composite).
		Str("direction", d.Direction).
		Msg("Alert sent")
	return true, nil
}

// FormatDetection renders a detection as a Telegram Markdown message
func FormatDetection(d *model.FlowDetection) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🚨 *%s* institutional flow: %s\n", d.Ticker, escapeMarkdown(d.AlertLevel))
	fmt.Fprintf(&b, "Score: %.0f/100 | Direction: %s\n", d.Composite*100, d.Direction)
	if len(d.Signals) > 0 {
		b.WriteString("\n")
		for _, s := range d.Signals {
			fmt.Fprintf(&b, "• %s\n", escapeMarkdown(s))
		}
	}
	if d.Anomaly != nil && d.Anomaly.IsAnomaly {
		fmt.Fprintf(&b, "\nAnomaly: %s\n", escapeMarkdown(d.Anomaly.AnomalyType))
	}
	return b.String()
}

var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
