package telegram

import (
	"context"
	"fmt"
	"log"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"

	"numpay/internal/notify"
)

// Notifier 通过机器人私聊推送用户消息
type Notifier struct {
	bot *tgbotapi.BotAPI
}

func NewNotifier(bot *tgbotapi.BotAPI) *Notifier {
	return &Notifier{bot: bot}
}

func (n *Notifier) send(userID int64, text string) error {
	msg := tgbotapi.NewMessage(userID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("发送消息失败: %w", err)
	}
	return nil
}

func (n *Notifier) DepositCredited(ctx context.Context, userID int64, amount decimal.Decimal) error {
	return n.send(userID, fmt.Sprintf("✅ Баланс пополнен на <b>%s ₽</b>", amount.String()))
}

func (n *Notifier) RetractPaymentMessage(ctx context.Context, userID int64, messageID int) {
	// 撤回失败不影响业务，仅记录日志
	del := tgbotapi.NewDeleteMessage(userID, messageID)
	if _, err := n.bot.Request(del); err != nil {
		log.Printf("[TelegramNotifier] 撤回消息失败 userID=%d messageID=%d: %v", userID, messageID, err)
	}
}

func (n *Notifier) SmsCodeDelivered(ctx context.Context, userID int64, phone, code string) error {
	return n.send(userID, fmt.Sprintf("📩 Номер <code>%s</code> получил код: <code>%s</code>", phone, code))
}

func (n *Notifier) SmsCancelled(ctx context.Context, userID int64, phone string, refund decimal.Decimal) error {
	return n.send(userID, fmt.Sprintf("❌ Активация номера <code>%s</code> отменена, возврат <b>%s ₽</b>", phone, refund.String()))
}

func (n *Notifier) RentSmsReceived(ctx context.Context, userID int64, phone string, sms []notify.RentMessage) error {
	var b strings.Builder
	fmt.Fprintf(&b, "📩 Новые сообщения на номер <code>%s</code>:\n", phone)
	for _, m := range sms {
		fmt.Fprintf(&b, "\nОт: <b>%s</b> (%s)\n<code>%s</code>\n", m.From, m.Date, m.Text)
	}
	return n.send(userID, b.String())
}

func (n *Notifier) RentFinished(ctx context.Context, userID int64, phone string) error {
	return n.send(userID, fmt.Sprintf("⌛ Срок аренды номера <code>%s</code> истёк", phone))
}

func (n *Notifier) RentCancelled(ctx context.Context, userID int64, phone string, refund decimal.Decimal) error {
	return n.send(userID, fmt.Sprintf("❌ Аренда номера <code>%s</code> отменена, возврат <b>%s ₽</b>", phone, refund.String()))
}

func (n *Notifier) TransferReceived(ctx context.Context, userID int64, fromUsername string, amount decimal.Decimal) error {
	return n.send(userID, fmt.Sprintf("💸 Пользователь @%s перевёл вам <b>%s ₽</b>", fromUsername, amount.String()))
}
