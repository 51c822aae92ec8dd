package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"numpay/internal/config"
	"numpay/internal/handler"
	"numpay/internal/infrastructure/cache"
	"numpay/internal/infrastructure/database"
	"numpay/internal/infrastructure/lock"
	"numpay/internal/infrastructure/mq"
	"numpay/internal/job"
	"numpay/internal/notify/telegram"
	"numpay/internal/provider/cryptopay"
	"numpay/internal/provider/smsactivate"
	"numpay/internal/repository"
	"numpay/internal/service"
	"numpay/pkg/idgen"
)

func main() {
	// 加载配置
	cfg := config.LoadConfig("config/config.yaml")

	// 初始化 ID 生成器
	idgen.Init(1)

	// 初始化 MySQL（含表结构迁移）
	db, err := database.NewMySQL(&cfg.MySQL)
	if err != nil {
		log.Fatalf("%v", err)
	}

	// 存储层就绪信号，后台任务等它关闭后才开始轮询
	ready := make(chan struct{})
	close(ready)

	// 初始化 Redis
	redisClient, err := cache.NewRedis(&cfg.Redis)
	if err != nil {
		log.Fatalf("%v", err)
	}

	// 初始化 Kafka
	producer, err := mq.NewProducer(&cfg.Kafka)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer producer.Close()

	// 上游平台客户端，启动时各探活一次
	cryptoAPI := cryptopay.NewClient(cfg.CryptoPay.BaseURL, cfg.CryptoPay.Token)
	smsAPI := smsactivate.NewClient(cfg.SmsActivate.BaseURL, cfg.SmsActivate.APIKey)

	probeCtx, probeCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if balance, err := cryptoAPI.GetBalance(probeCtx, cfg.CryptoPay.Asset); err != nil {
		log.Fatalf("支付平台探活失败: %v", err)
	} else {
		log.Printf("支付平台余额: %s %s", balance.String(), cfg.CryptoPay.Asset)
	}
	if balance, err := smsAPI.GetBalance(probeCtx); err != nil {
		log.Fatalf("号码平台探活失败: %v", err)
	} else {
		log.Printf("号码平台余额: %s", balance.String())
	}
	probeCancel()

	// Telegram 通知
	bot, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		log.Fatalf("初始化 Telegram Bot 失败: %v", err)
	}
	notifier := telegram.NewNotifier(bot)

	// 仓储与服务
	accountRepo := repository.NewAccountRepository(db)
	transRepo := repository.NewTransactionRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	smsOrderRepo := repository.NewSmsOrderRepository(db)
	rentOrderRepo := repository.NewRentOrderRepository(db)
	referralRepo := repository.NewReferralRepository(db)
	promoRepo := repository.NewPromoRepository(db)
	favoriteRepo := repository.NewFavoriteRepository(db)
	outboxRepo := repository.NewOutboxRepository(db)

	locker := lock.NewDistributedLock(redisClient)

	ledger := service.NewLedgerService(db, accountRepo, transRepo, outboxRepo, cfg.Kafka.Topic.LedgerEvents)
	accountSvc := service.NewAccountService(accountRepo, transRepo, ledger, locker, notifier)
	depositSvc := service.NewDepositService(db, cfg, invoiceRepo, referralRepo, ledger, cryptoAPI, notifier)
	purchaseSvc := service.NewPurchaseService(db, cfg, accountRepo, smsOrderRepo, rentOrderRepo, ledger, smsAPI)
	referralSvc := service.NewReferralService(referralRepo, accountRepo)
	promoSvc := service.NewPromoService(db, promoRepo, ledger)
	favoriteSvc := service.NewFavoriteService(favoriteRepo)

	// 创建上下文（用于优雅关闭）
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 启动后台任务
	paymentReconciler := job.NewPaymentReconciler(cfg, invoiceRepo, depositSvc, cryptoAPI, ready)
	go paymentReconciler.Start(ctx)

	activationReconciler := job.NewActivationReconciler(db, cfg, smsOrderRepo, rentOrderRepo, ledger, smsAPI, notifier,
		cache.NewRentSmsSeen(redisClient), ready)
	go activationReconciler.Start(ctx)

	outboxSender := job.NewOutboxSender(cfg, outboxRepo, producer, ready)
	go outboxSender.Start(ctx)

	// 设置路由
	h := handler.NewHandler(cfg, accountSvc, depositSvc, purchaseSvc, referralSvc, promoSvc, favoriteSvc, cryptoAPI, smsAPI)
	router := handler.SetupRouter(h)

	// 启动 HTTP 服务
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("服务启动，监听端口: %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("服务启动失败: %v", err)
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("正在关闭服务...")

	// 取消上下文，停止后台任务
	cancel()

	// 关闭 HTTP 服务（等待最多5秒）
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("服务关闭异常: %v", err)
	}

	log.Println("服务已关闭")
}
