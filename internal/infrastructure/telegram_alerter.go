package infrastructure

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/loorksy/ERPwhatsapp/internal/entities"
)

type telegramBot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// TelegramAlerter mirrors error notifications into an operator chat and
// answers /status there.
type TelegramAlerter struct {
	bot    telegramBot
	chatID int64
	queue  chan entities.Notification
	status func() string
}

// NewTelegramAlerter returns nil when no token or chat is configured.
func NewTelegramAlerter(token string, chatID int64) (*TelegramAlerter, error) {
	if token == "" || chatID == 0 {
		return nil, nil
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("invalid telegram token: %w", err)
	}
	zap.L().Info("telegram: alert bot ready", zap.String("bot", bot.Self.UserName))
	return newTelegramAlerter(bot, chatID), nil
}

func newTelegramAlerter(bot telegramBot, chatID int64) *TelegramAlerter {
	return &TelegramAlerter{
		bot:    bot,
		chatID: chatID,
		queue:  make(chan entities.Notification, 64),
	}
}

// SetStatusFunc sets the text returned for /status.
func (a *TelegramAlerter) SetStatusFunc(fn func() string) {
	if a != nil {
		a.status = fn
	}
}

// Notify queues n; it never blocks the caller.
func (a *TelegramAlerter) Notify(n entities.Notification) {
	if a == nil {
		return
	}
	select {
	case a.queue <- n:
	default:
		zap.L().Warn("telegram: alert queue full, dropping", zap.Int("user_id", n.UserID))
	}
}

// Run drains the queue and polls operator commands until ctx is done.
func (a *TelegramAlerter) Run(ctx context.Context) {
	if a == nil {
		return
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := a.bot.GetUpdatesChan(u)
	defer a.bot.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return
		case n := <-a.queue:
			a.send(n)
		case update := <-updates:
			a.handleUpdate(update)
		}
	}
}

func formatAlert(n entities.Notification) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s\nuser: %d", strings.ToUpper(n.Type), n.Title, n.UserID)
	if n.Message != nil && *n.Message != "" {
		sb.WriteString("\n")
		sb.WriteString(*n.Message)
	}
	return sb.String()
}

func (a *TelegramAlerter) send(n entities.Notification) {
	msg := tgbotapi.NewMessage(a.chatID, formatAlert(n))
	if _, err := a.bot.Send(msg); err != nil {
		zap.L().Error("telegram: send alert failed", zap.Error(err))
	}
}

func (a *TelegramAlerter) handleUpdate(update tgbotapi.Update) {
	if update.Message == nil || update.Message.Chat == nil || update.Message.Chat.ID != a.chatID {
		return
	}
	if !update.Message.IsCommand() || update.Message.Command() != "status" {
		return
	}
	text := "no status available"
	if a.status != nil {
		text = a.status()
	}
	if _, err := a.bot.Send(tgbotapi.NewMessage(a.chatID, text)); err != nil {
		zap.L().Error("telegram: reply failed", zap.Error(err))
	}
}
