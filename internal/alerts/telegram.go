package alerts

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"whalewatch/internal/adapters/config"
	"whalewatch/internal/domain/whaleorder"
	"whalewatch/pkg/logger"
)

// TelegramNotifier pushes a message to a chat when a whale order above the
// configured notional threshold appears or fills. Alerting is best effort.
type TelegramNotifier struct {
	bot         *tgbotapi.BotAPI
	chatID      int64
	minNotional float64
	log         *logger.Logger
}

// NewTelegramNotifier creates a notifier from config. Returns an error if the
// bot token is rejected by the Telegram API.
func NewTelegramNotifier(cfg config.TelegramConfig) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, err
	}

	return &TelegramNotifier{
		bot:         bot,
		chatID:      cfg.ChatID,
		minNotional: cfg.AlertNotionalUSD,
		log:         logger.Get().With("component", "telegram_alerts"),
	}, nil
}

// NotifyOrderCreated alerts on new whale orders above the threshold.
func (n *TelegramNotifier) NotifyOrderCreated(ctx context.Context, o *whaleorder.WhaleOrder) {
	if o.NotionalUSD() < n.minNotional {
		return
	}

	emoji := "🟢"
	if o.Direction == whaleorder.DirectionShort {
		emoji = "🔴"
	}

	n.send(fmt.Sprintf(
		"%s *New whale order*\nExchange: %s (%s)\nDirection: %s\nPrice: $%.2f\nSize: %.4f BTC\nNotional: $%.0f",
		emoji, o.Exchange, o.Market, o.Direction, o.PriceF(), o.SizeF(), o.NotionalUSD(),
	))
}

// NotifyOrderFilled alerts on fills above the threshold.
func (n *TelegramNotifier) NotifyOrderFilled(ctx context.Context, o *whaleorder.WhaleOrder) {
	if o.NotionalUSD() < n.minNotional {
		return
	}

	fillPrice := 0.0
	if o.FillPrice != nil {
		fillPrice = o.FillPrice.InexactFloat64()
	}

	n.send(fmt.Sprintf(
		"✅ *Whale order filled*\nExchange: %s (%s)\nDirection: %s\nLimit: $%.2f\nFill: $%.2f\nSize: %.4f BTC",
		o.Exchange, o.Market, o.Direction, o.PriceF(), fillPrice, o.SizeF(),
	))
}

func (n *TelegramNotifier) send(text string) {
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown

	if _, err := n.bot.Send(msg); err != nil {
		n.log.Warnw("Telegram alert failed", "error", err)
	}
}
