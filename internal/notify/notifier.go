package notify

import (
	"context"

	"github.com/shopspring/decimal"
)

// Notifier 面向用户的消息推送接口。实现方不应因单次
// 推送失败而影响调用方的事务结果。
type Notifier interface {
	// DepositCredited 通知充值已入账
	DepositCredited(ctx context.Context, userID int64, amount decimal.Decimal) error
	// RetractPaymentMessage 撤回此前发出的付款提示消息，失败可忽略
	RetractPaymentMessage(ctx context.Context, userID int64, messageID int)
	// SmsCodeDelivered 通知激活号码收到验证码
	SmsCodeDelivered(ctx context.Context, userID int64, phone, code string) error
	// SmsCancelled 通知激活被取消并已退款
	SmsCancelled(ctx context.Context, userID int64, phone string, refund decimal.Decimal) error
	// RentSmsReceived 通知租用号码收到新短信
	RentSmsReceived(ctx context.Context, userID int64, phone string, sms []RentMessage) error
	// RentFinished 通知租期结束
	RentFinished(ctx context.Context, userID int64, phone string) error
	// RentCancelled 通知租用被平台取消并已退款
	RentCancelled(ctx context.Context, userID int64, phone string, refund decimal.Decimal) error
	// TransferReceived 通知收到他人转账
	TransferReceived(ctx context.Context, userID int64, fromUsername string, amount decimal.Decimal) error
}

// RentMessage 推送给用户的租用短信内容
type RentMessage struct {
	From string
	Text string
	Date string
}
