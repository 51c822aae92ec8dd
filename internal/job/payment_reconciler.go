package job

import (
	"context"
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"numpay/internal/config"
	"numpay/internal/model"
	"numpay/internal/provider/cryptopay"
	"numpay/internal/repository"
	"numpay/internal/service"
	"numpay/pkg/exchange"
)

// PaymentReconciler 加密货币账单对账任务
// 周期性取出未超时的 active 账单，批量查询支付平台，
// 已支付的逐笔结算；结算的幂等由账单状态条件更新保证，
// 同一账单被重复发现只会入账一次
type PaymentReconciler struct {
	cfg         *config.Config
	invoiceRepo *repository.InvoiceRepository
	depositSvc  *service.DepositService
	cryptoAPI   cryptopay.API
	ready       <-chan struct{}
	stopCh      chan struct{}
	interval    time.Duration
}

func NewPaymentReconciler(
	cfg *config.Config,
	invoiceRepo *repository.InvoiceRepository,
	depositSvc *service.DepositService,
	cryptoAPI cryptopay.API,
	ready <-chan struct{},
) *PaymentReconciler {
	interval := time.Duration(cfg.CryptoPay.PollIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &PaymentReconciler{
		cfg:         cfg,
		invoiceRepo: invoiceRepo,
		depositSvc:  depositSvc,
		cryptoAPI:   cryptoAPI,
		ready:       ready,
		stopCh:      make(chan struct{}),
		interval:    interval,
	}
}

func (r *PaymentReconciler) Start(ctx context.Context) {
	// 等待存储层就绪后再开始轮询
	select {
	case <-ctx.Done():
		return
	case <-r.stopCh:
		return
	case <-r.ready:
	}

	log.Println("[PaymentReconciler] 账单对账任务启动")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[PaymentReconciler] 收到停止信号，任务退出")
			return
		case <-r.stopCh:
			log.Println("[PaymentReconciler] 任务停止")
			return
		case <-ticker.C:
			r.reconcileOnce(ctx)
		}
	}
}

func (r *PaymentReconciler) Stop() {
	close(r.stopCh)
}

func (r *PaymentReconciler) reconcileOnce(ctx context.Context) {
	timeout := time.Duration(r.cfg.Business.PaymentTimeoutMinutes) * time.Minute
	invoiceIDs, err := r.invoiceRepo.ListSettleable(ctx, timeout, model.ProviderCrypto)
	if err != nil {
		log.Printf("[PaymentReconciler] 查询待结算账单失败: %v", err)
		return
	}
	if len(invoiceIDs) == 0 {
		return
	}

	ids := make([]int64, 0, len(invoiceIDs))
	for _, raw := range invoiceIDs {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			log.Printf("[PaymentReconciler] 账单号格式异常: %s", raw)
			continue
		}
		ids = append(ids, id)
	}

	records, err := r.cryptoAPI.GetInvoices(ctx, ids)
	if err != nil {
		log.Printf("[PaymentReconciler] 查询支付平台失败: %v", err)
		return
	}

	for _, record := range records {
		if record.Status != cryptopay.InvoiceStatusPaid {
			continue
		}
		amount, err := decimal.NewFromString(record.Amount)
		if err != nil {
			log.Printf("[PaymentReconciler] 账单金额格式异常: invoiceID=%d amount=%s", record.InvoiceID, record.Amount)
			continue
		}
		fiat := exchange.ToFiat(amount, r.cfg.CryptoPay.UsdtRubRate)

		invoiceID := strconv.FormatInt(record.InvoiceID, 10)
		if err := r.depositSvc.ApplySettlement(ctx, invoiceID, fiat); err != nil {
			// 已结算过的账单静默跳过
			if errors.Is(err, repository.ErrInvoiceNotActive) {
				continue
			}
			log.Printf("[PaymentReconciler] 结算失败: invoiceID=%s, err=%v", invoiceID, err)
			continue
		}
		log.Printf("[PaymentReconciler] 账单结算成功: invoiceID=%s, amount=%s", invoiceID, fiat.String())
	}
}
