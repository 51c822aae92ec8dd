package job

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"gorm.io/gorm"

	"numpay/internal/config"
	"numpay/internal/model"
	"numpay/internal/notify"
	"numpay/internal/provider/smsactivate"
	"numpay/internal/repository"
	"numpay/internal/service"
)

// RentSmsSeenStore 记录单个租用订单已推送的短信条数
type RentSmsSeenStore interface {
	Seen(ctx context.Context, orderID string) (int, error)
	MarkSeen(ctx context.Context, orderID string, count int, ttl time.Duration) error
}

// ActivationReconciler 号码平台对账任务
// 接码订单：轮询时间窗内的 active 订单，收到验证码则完结，
// 平台取消则退款；超窗的 active 订单视为已放弃，保持原状
// 租用订单：轮询租期未到的 active 订单，新短信只推送不改状态，
// 租期结束置为过期，平台撤销则退款
type ActivationReconciler struct {
	db       *gorm.DB
	cfg      *config.Config
	smsRepo  *repository.SmsOrderRepository
	rentRepo *repository.RentOrderRepository
	ledger   *service.LedgerService
	smsAPI   smsactivate.API
	notifier notify.Notifier
	seen     RentSmsSeenStore
	ready    <-chan struct{}
	stopCh   chan struct{}
	interval time.Duration
}

func NewActivationReconciler(
	db *gorm.DB,
	cfg *config.Config,
	smsRepo *repository.SmsOrderRepository,
	rentRepo *repository.RentOrderRepository,
	ledger *service.LedgerService,
	smsAPI smsactivate.API,
	notifier notify.Notifier,
	seen RentSmsSeenStore,
	ready <-chan struct{},
) *ActivationReconciler {
	interval := time.Duration(cfg.SmsActivate.PollIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &ActivationReconciler{
		db:       db,
		cfg:      cfg,
		smsRepo:  smsRepo,
		rentRepo: rentRepo,
		ledger:   ledger,
		smsAPI:   smsAPI,
		notifier: notifier,
		seen:     seen,
		ready:    ready,
		stopCh:   make(chan struct{}),
		interval: interval,
	}
}

func (r *ActivationReconciler) Start(ctx context.Context) {
	// 等待存储层就绪后再开始轮询
	select {
	case <-ctx.Done():
		return
	case <-r.stopCh:
		return
	case <-r.ready:
	}

	log.Println("[ActivationReconciler] 号码对账任务启动")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[ActivationReconciler] 收到停止信号，任务退出")
			return
		case <-r.stopCh:
			log.Println("[ActivationReconciler] 任务停止")
			return
		case <-ticker.C:
			r.reconcileSmsOrders(ctx)
			r.reconcileRentOrders(ctx)
		}
	}
}

func (r *ActivationReconciler) Stop() {
	close(r.stopCh)
}

func (r *ActivationReconciler) reconcileSmsOrders(ctx context.Context) {
	horizon := time.Duration(r.cfg.Business.OrderHorizonMinutes) * time.Minute
	orders, err := r.smsRepo.ListActive(ctx, horizon)
	if err != nil {
		log.Printf("[ActivationReconciler] 查询接码订单失败: %v", err)
		return
	}

	for _, order := range orders {
		if err := r.reconcileSmsOrder(ctx, order); err != nil {
			log.Printf("[ActivationReconciler] 对账接码订单失败: orderID=%s, err=%v", order.OrderID, err)
		}
	}
}

func (r *ActivationReconciler) reconcileSmsOrder(ctx context.Context, order *model.SmsOrder) error {
	activationID, err := strconv.ParseInt(order.OrderID, 10, 64)
	if err != nil {
		return fmt.Errorf("订单号格式异常: %w", err)
	}
	status, code, err := r.smsAPI.GetStatus(ctx, activationID)
	if err != nil {
		return err
	}

	switch status {
	case smsactivate.StatusOK:
		// 先完结订单，再通知；重复发现时状态条件更新会失败，不会重复通知
		err := r.db.Transaction(func(tx *gorm.DB) error {
			return r.smsRepo.Complete(ctx, tx, order.OrderID)
		})
		if err != nil {
			return err
		}
		if err := r.smsAPI.SetStatus(ctx, activationID, smsactivate.SetStatusConfirm); err != nil {
			log.Printf("[ActivationReconciler] 确认激活失败: orderID=%s, err=%v", order.OrderID, err)
		}
		if err := r.notifier.SmsCodeDelivered(ctx, order.UserID, order.Phone, code); err != nil {
			log.Printf("[ActivationReconciler] 验证码通知失败: orderID=%s, err=%v", order.OrderID, err)
		}
		log.Printf("[ActivationReconciler] 接码订单完结: orderID=%s", order.OrderID)

	case smsactivate.StatusCancel:
		err := r.db.Transaction(func(tx *gorm.DB) error {
			if err := r.smsRepo.Cancel(ctx, tx, order.OrderID); err != nil {
				return err
			}
			return r.ledger.TransferTx(ctx, tx, model.SystemUserID, order.UserID,
				order.Price, model.TransactionTypeRefund, order.OrderID, false)
		})
		if err != nil {
			return err
		}
		if err := r.notifier.SmsCancelled(ctx, order.UserID, order.Phone, order.Price); err != nil {
			log.Printf("[ActivationReconciler] 取消通知失败: orderID=%s, err=%v", order.OrderID, err)
		}
		log.Printf("[ActivationReconciler] 接码订单取消并退款: orderID=%s, refund=%s", order.OrderID, order.Price.String())

	case smsactivate.StatusWaitCode, smsactivate.StatusWaitRetry, smsactivate.StatusWaitResend:
		// 还在等码，下个周期再看

	default:
		log.Printf("[ActivationReconciler] 未识别的激活状态: orderID=%s, status=%s", order.OrderID, status)
	}
	return nil
}

func (r *ActivationReconciler) reconcileRentOrders(ctx context.Context) {
	rents, err := r.rentRepo.ListActive(ctx, time.Now())
	if err != nil {
		log.Printf("[ActivationReconciler] 查询租用订单失败: %v", err)
		return
	}

	for _, rent := range rents {
		if err := r.reconcileRentOrder(ctx, rent); err != nil {
			log.Printf("[ActivationReconciler] 对账租用订单失败: orderID=%s, err=%v", rent.OrderID, err)
		}
	}
}

func (r *ActivationReconciler) reconcileRentOrder(ctx context.Context, rent *model.RentOrder) error {
	rentID, err := strconv.ParseInt(rent.OrderID, 10, 64)
	if err != nil {
		return fmt.Errorf("订单号格式异常: %w", err)
	}
	status, err := r.smsAPI.GetRentStatus(ctx, rentID)
	if err != nil {
		return err
	}

	// 平台可能在 success 响应里同时带终结 message，
	// 先推送新短信，终结状态照常落地
	if status.Status == "success" {
		if err := r.notifyNewRentSms(ctx, rent, status); err != nil {
			log.Printf("[ActivationReconciler] 租用短信推送失败: orderID=%s, err=%v", rent.OrderID, err)
		}
	}

	switch status.Message {
	case smsactivate.StatusFinish:
		err := r.db.Transaction(func(tx *gorm.DB) error {
			return r.rentRepo.Expire(ctx, tx, rent.OrderID)
		})
		if err != nil {
			return err
		}
		if err := r.notifier.RentFinished(ctx, rent.UserID, rent.Phone); err != nil {
			log.Printf("[ActivationReconciler] 租期结束通知失败: orderID=%s, err=%v", rent.OrderID, err)
		}
		log.Printf("[ActivationReconciler] 租用订单过期: orderID=%s", rent.OrderID)

	case smsactivate.StatusCancel, smsactivate.StatusRevoke:
		err := r.db.Transaction(func(tx *gorm.DB) error {
			if err := r.rentRepo.Cancel(ctx, tx, rent.OrderID); err != nil {
				return err
			}
			return r.ledger.TransferTx(ctx, tx, model.SystemUserID, rent.UserID,
				rent.Price, model.TransactionTypeRefund, rent.OrderID, false)
		})
		if err != nil {
			return err
		}
		if err := r.notifier.RentCancelled(ctx, rent.UserID, rent.Phone, rent.Price); err != nil {
			log.Printf("[ActivationReconciler] 租用取消通知失败: orderID=%s, err=%v", rent.OrderID, err)
		}
		log.Printf("[ActivationReconciler] 租用订单取消并退款: orderID=%s, refund=%s", rent.OrderID, rent.Price.String())

	default:
		if status.Status != "success" {
			log.Printf("[ActivationReconciler] 未识别的租用状态: orderID=%s, message=%s", rent.OrderID, status.Message)
		}
	}
	return nil
}

// notifyNewRentSms 只推送比上次轮询新增的短信
// 已推送的条数记在 seen 存储里，随租期结束过期
func (r *ActivationReconciler) notifyNewRentSms(ctx context.Context, rent *model.RentOrder, status *smsactivate.RentStatus) error {
	if status.Quantity == 0 {
		return nil
	}
	seen, err := r.seen.Seen(ctx, rent.OrderID)
	if err != nil {
		return err
	}
	if status.Quantity <= seen {
		return nil
	}

	fresh := status.Values
	if len(fresh) > status.Quantity-seen {
		fresh = fresh[len(fresh)-(status.Quantity-seen):]
	}
	messages := make([]notify.RentMessage, 0, len(fresh))
	for _, sms := range fresh {
		messages = append(messages, notify.RentMessage{
			From: sms.Phone,
			Text: sms.Text,
			Date: sms.Date,
		})
	}
	if err := r.notifier.RentSmsReceived(ctx, rent.UserID, rent.Phone, messages); err != nil {
		return err
	}

	ttl := time.Until(rent.EndDate) + time.Hour
	return r.seen.MarkSeen(ctx, rent.OrderID, status.Quantity, ttl)
}
