package alerts

import (
	"context"
	"errors"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/souhailsouid/adele/internal/model"
)

type fakeSender struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.err != nil {
		return tgbotapi.Message{}, f.err
	}
	f.sent = append(f.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

func highAlert(ticker string) *model.FlowDetection {
	return &model.FlowDetection{
		Ticker:     ticker,
		Composite:  0.82,
		AlertLevel: model.AlertHigh,
		Direction:  model.DirectionBullish,
		Signals:    []string{"options 0.90: $6.0M premium", "darkpool 1.00: 5 blocks"},
		Anomaly:    &model.AnomalyDetection{IsAnomaly: true, AnomalyType: "VOLUME_SPIKE"},
	}
}

func TestNotifyCooldown(t *testing.T) {
	sender := &fakeSender{}
	n := NewNotifier(sender, 42, time.Hour)
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	n.now = func() time.Time { return now }
	ctx := context.Background()

	sent, err := n.Notify(ctx, highAlert("NVDA"))
	require.NoError(t, err)
	assert.True(t, sent)

	sent, err = n.Notify(ctx, highAlert("NVDA"))
	require.NoError(t, err)
	assert.False(t, sent)

	sent, err = n.Notify(ctx, highAlert("AMD"))
	require.NoError(t, err)
	assert.True(t, sent)

	now = now.Add(61 * time.Minute)
	sent, err = n.Notify(ctx, highAlert("NVDA"))
	require.NoError(t, err)
	assert.True(t, sent)

	require.Len(t, sender.sent, 3)
	assert.Equal(t, int64(42), sender.sent[0].ChatID)
	assert.Equal(t, "Markdown", sender.sent[0].ParseMode)
}

func TestNotifySkipsLowerLevels(t *testing.T) {
	sender := &fakeSender{}
	n := NewNotifier(sender, 1, 0)

	for _, level := range []string{model.AlertMonitor, model.AlertLow} {
		d := highAlert("AAPL")
		d.AlertLevel = level
		sent, err := n.Notify(context.Background(), d)
		require.NoError(t, err)
		assert.False(t, sent)
	}
	assert.Empty(t, sender.sent)
	assert.Equal(t, DefaultCooldown, n.cooldown)
}

func TestNotifyFailureDoesNotStartCooldown(t *testing.T) {
	sender := &fakeSender{err: errors.New("telegram down")}
	n := NewNotifier(sender, 1, time.Hour)

	_, err := n.Notify(context.Background(), highAlert("TSLA"))
	require.Error(t, err)

	sender.err = nil
	sent, err := n.Notify(context.Background(), highAlert("TSLA"))
	require.NoError(t, err)
	assert.True(t, sent)
}

func TestFormatDetection(t *testing.T) {
	text := FormatDetection(highAlert("NVDA"))

	assert.Contains(t, text, "*NVDA*")
	assert.Contains(t, text, "HIGH\\_ALERT")
	assert.Contains(t, text, "Score: 82/100")
	assert.Contains(t, text, "• darkpool 1.00: 5 blocks")
	assert.Contains(t, text, "VOLUME\\_SPIKE")
}
