package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"numpay/internal/config"
	"numpay/internal/provider/cryptopay"
	"numpay/internal/provider/smsactivate"
	"numpay/internal/repository"
	"numpay/internal/service"
	"numpay/pkg/exchange"
	"numpay/pkg/response"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	cfg         *config.Config
	accountSvc  *service.AccountService
	depositSvc  *service.DepositService
	purchaseSvc *service.PurchaseService
	referralSvc *service.ReferralService
	promoSvc    *service.PromoService
	favoriteSvc *service.FavoriteService
	cryptoAPI   cryptopay.API
	smsAPI      smsactivate.API
}

// NewHandler 创建处理器实例
func NewHandler(
	cfg *config.Config,
	accountSvc *service.AccountService,
	depositSvc *service.DepositService,
	purchaseSvc *service.PurchaseService,
	referralSvc *service.ReferralService,
	promoSvc *service.PromoService,
	favoriteSvc *service.FavoriteService,
	cryptoAPI cryptopay.API,
	smsAPI smsactivate.API,
) *Handler {
	return &Handler{
		cfg:         cfg,
		accountSvc:  accountSvc,
		depositSvc:  depositSvc,
		purchaseSvc: purchaseSvc,
		referralSvc: referralSvc,
		promoSvc:    promoSvc,
		favoriteSvc: favoriteSvc,
		cryptoAPI:   cryptoAPI,
		smsAPI:      smsAPI,
	}
}

func parseUserID(c *gin.Context) (int64, bool) {
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "user_id 参数错误")
		return 0, false
	}
	return userID, true
}

// ============================================================
// 账户相关接口
// ============================================================

// RegisterRequest 开户请求
type RegisterRequest struct {
	UserID   int64  `json:"user_id" binding:"required"`
	Username string `json:"username"`
	RefFrom  int64  `json:"ref_from"` // 邀请人，0 表示无
}

// Register 开户（幂等），可携带邀请人
// POST /api/v1/account/register
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	account, err := h.accountSvc.Register(c.Request.Context(), req.UserID, req.Username)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	registered := false
	if req.RefFrom != 0 {
		registered, err = h.referralSvc.AddReferral(c.Request.Context(), req.RefFrom, req.UserID)
		if err != nil {
			response.ServerError(c, err.Error())
			return
		}
	}

	response.Success(c, gin.H{
		"user_id":      account.UserID,
		"balance":      account.Balance,
		"ref_balance":  account.RefBalance,
		"referral_set": registered,
	})
}

// GetBalance 查询用户余额
// GET /api/v1/account/balance?user_id=xxx
func (h *Handler) GetBalance(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	account, err := h.accountSvc.GetBalance(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			response.BusinessError(c, response.CodeAccountNotFound, err.Error())
			return
		}
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"user_id":     account.UserID,
		"balance":     account.Balance,
		"ref_balance": account.RefBalance,
	})
}

// ListTransactions 分页查询账户流水
// GET /api/v1/account/transactions?user_id=xxx&page=1&page_size=20
func (h *Handler) ListTransactions(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	transactions, total, err := h.accountSvc.ListTransactions(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"total": total,
		"list":  transactions,
	})
}

// TransferRequest 用户间转账请求
type TransferRequest struct {
	FromUserID int64  `json:"from_user_id" binding:"required"`
	ToUsername string `json:"to_username" binding:"required"`
	Amount     string `json:"amount" binding:"required"`
}

// Transfer 按用户名转账
// POST /api/v1/account/transfer
func (h *Handler) Transfer(c *gin.Context) {
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		response.ParamError(c, "amount 参数错误")
		return
	}

	err = h.accountSvc.TransferToUser(c.Request.Context(), req.FromUserID, req.ToUsername, amount)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrBalanceNotEnough):
			response.BusinessError(c, response.CodeBalanceNotEnough, err.Error())
		case errors.Is(err, service.ErrReceiverNotFound):
			response.BusinessError(c, response.CodeAccountNotFound, err.Error())
		case errors.Is(err, service.ErrSelfTransfer), errors.Is(err, service.ErrInvalidAmount):
			response.ParamError(c, err.Error())
		default:
			response.ServerError(c, err.Error())
		}
		return
	}
	response.Success(c, nil)
}

// ReferralStats 查询邀请统计
// GET /api/v1/account/referrals?user_id=xxx
func (h *Handler) ReferralStats(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	invited, err := h.referralSvc.CountInvited(c.Request.Context(), userID)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, gin.H{"invited": invited})
}

// ============================================================
// 充值相关接口
// ============================================================

// CreateInvoiceRequest 创建充值账单请求
type CreateInvoiceRequest struct {
	UserID    int64  `json:"user_id" binding:"required"`
	Amount    string `json:"amount" binding:"required"` // 本币金额
	MessageID int    `json:"message_id"`
}

// CreateCryptoInvoice 创建加密货币充值账单
// POST /api/v1/deposit/crypto
func (h *Handler) CreateCryptoInvoice(c *gin.Context) {
	var req CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		response.ParamError(c, "amount 参数错误")
		return
	}

	invoiceID, payURL, err := h.depositSvc.CreateCryptoInvoice(c.Request.Context(), req.UserID, amount, req.MessageID)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, gin.H{
		"invoice_id": invoiceID,
		"pay_url":    payURL,
	})
}

// CreateStarsInvoice 创建 Stars 充值账单
// POST /api/v1/deposit/stars
func (h *Handler) CreateStarsInvoice(c *gin.Context) {
	var req CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		response.ParamError(c, "amount 参数错误")
		return
	}

	invoiceID, stars, err := h.depositSvc.CreateStarsInvoice(c.Request.Context(), req.UserID, amount, req.MessageID)
	if err != nil {
		if errors.Is(err, service.ErrStarsDisabled) || errors.Is(err, service.ErrStarsOverLimit) {
			response.ParamError(c, err.Error())
			return
		}
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, gin.H{
		"invoice_id": invoiceID,
		"stars":      stars,
	})
}

// PreCheckoutRequest 支付确认前校验请求
type PreCheckoutRequest struct {
	UserID    int64  `json:"user_id" binding:"required"`
	InvoiceID string `json:"invoice_id" binding:"required"`
}

// ValidatePreCheckout 支付确认前校验账单
// POST /api/v1/deposit/stars/precheckout
func (h *Handler) ValidatePreCheckout(c *gin.Context) {
	var req PreCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.depositSvc.ValidatePreCheckout(c.Request.Context(), req.UserID, req.InvoiceID); err != nil {
		if errors.Is(err, service.ErrInvoiceInvalid) {
			response.BusinessError(c, response.CodeNotFound, err.Error())
			return
		}
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, nil)
}

// StarsSettleRequest Stars 支付成功回调
type StarsSettleRequest struct {
	InvoiceID  string `json:"invoice_id" binding:"required"`
	TotalStars int    `json:"total_stars" binding:"required,gt=0"`
}

// SettleStarsInvoice 结算 Stars 账单
// POST /api/v1/deposit/stars/settle
func (h *Handler) SettleStarsInvoice(c *gin.Context) {
	var req StarsSettleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	fiat := exchange.FromStars(req.TotalStars, h.cfg.Stars.Stars, h.cfg.Stars.Rub)
	err := h.depositSvc.ApplySettlement(c.Request.Context(), req.InvoiceID, fiat)
	if err != nil {
		if errors.Is(err, repository.ErrInvoiceNotActive) {
			// 重复回调，视为成功
			response.Success(c, nil)
			return
		}
		if errors.Is(err, repository.ErrInvoiceNotFound) {
			response.BusinessError(c, response.CodeNotFound, err.Error())
			return
		}
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, gin.H{"amount": fiat})
}

// ============================================================
// 订单相关接口
// ============================================================

// BuyNumberRequest 购买号码请求
type BuyNumberRequest struct {
	UserID      int64  `json:"user_id" binding:"required"`
	Service     string `json:"service" binding:"required"`
	ServiceName string `json:"service_name"`
	CountryID   int    `json:"country_id"`
}

// BuyNumber 购买接码号码
// POST /api/v1/order/buy
func (h *Handler) BuyNumber(c *gin.Context) {
	var req BuyNumberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	order, err := h.purchaseSvc.BuyNumber(c.Request.Context(), req.UserID, req.Service, req.ServiceName, req.CountryID)
	if err != nil {
		if errors.Is(err, repository.ErrBalanceNotEnough) {
			response.BusinessError(c, response.CodeBalanceNotEnough, err.Error())
			return
		}
		if errors.Is(err, smsactivate.ErrNoNumbers) {
			response.BusinessError(c, response.CodeProviderError, err.Error())
			return
		}
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, order)
}

// OrderActionRequest 订单操作请求
type OrderActionRequest struct {
	UserID  int64  `json:"user_id" binding:"required"`
	OrderID string `json:"order_id" binding:"required"`
}

// CancelOrder 取消接码订单并退款
// POST /api/v1/order/cancel
func (h *Handler) CancelOrder(c *gin.Context) {
	var req OrderActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	err := h.purchaseSvc.CancelOrder(c.Request.Context(), req.UserID, req.OrderID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrOrderNotFound):
			response.BusinessError(c, response.CodeNotFound, err.Error())
		case errors.Is(err, service.ErrOrderNotOwned):
			response.BusinessError(c, response.CodeForbidden, err.Error())
		case errors.Is(err, repository.ErrOrderNotActive), errors.Is(err, service.ErrOrderTooYoung):
			response.ParamError(c, err.Error())
		default:
			response.ServerError(c, err.Error())
		}
		return
	}
	response.Success(c, nil)
}

// RequestNewCode 重新请求验证码
// POST /api/v1/order/newcode
func (h *Handler) RequestNewCode(c *gin.Context) {
	var req OrderActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.purchaseSvc.RequestNewCode(c.Request.Context(), req.UserID, req.OrderID); err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, nil)
}

// ListOrders 查询接码订单
// GET /api/v1/order/list?user_id=xxx
func (h *Handler) ListOrders(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}
	orders, err := h.purchaseSvc.ListOrders(c.Request.Context(), userID)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, orders)
}

// RentNumberRequest 租用号码请求
type RentNumberRequest struct {
	UserID    int64  `json:"user_id" binding:"required"`
	Service   string `json:"service" binding:"required"`
	Hours     int    `json:"hours" binding:"required"`
	CountryID int    `json:"country_id"`
}

// RentNumber 租用号码
// POST /api/v1/rent/create
func (h *Handler) RentNumber(c *gin.Context) {
	var req RentNumberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	order, err := h.purchaseSvc.RentNumber(c.Request.Context(), req.UserID, req.Service, req.Hours, req.CountryID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrBalanceNotEnough):
			response.BusinessError(c, response.CodeBalanceNotEnough, err.Error())
		case errors.Is(err, service.ErrRentHoursOutOfRange):
			response.ParamError(c, err.Error())
		default:
			response.ServerError(c, err.Error())
		}
		return
	}
	response.Success(c, order)
}

// CancelRent 取消租用并退款
// POST /api/v1/rent/cancel
func (h *Handler) CancelRent(c *gin.Context) {
	var req OrderActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.purchaseSvc.CancelRent(c.Request.Context(), req.UserID, req.OrderID); err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, nil)
}

// ListRents 查询租用订单
// GET /api/v1/rent/list?user_id=xxx
func (h *Handler) ListRents(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}
	rents, err := h.purchaseSvc.ListRents(c.Request.Context(), userID)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, rents)
}

// ============================================================
// 促销码相关接口
// ============================================================

// RedeemRequest 兑换促销码请求
type RedeemRequest struct {
	UserID int64  `json:"user_id" binding:"required"`
	Code   string `json:"code" binding:"required"`
}

// RedeemPromo 兑换促销码
// POST /api/v1/promo/redeem
func (h *Handler) RedeemPromo(c *gin.Context) {
	var req RedeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	amount, err := h.promoSvc.Redeem(c.Request.Context(), req.UserID, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrPromoNotFound):
			response.BusinessError(c, response.CodePromoNotFound, err.Error())
		case errors.Is(err, repository.ErrPromoAlreadyUsed), errors.Is(err, service.ErrPromoExhausted):
			response.BusinessError(c, response.CodePromoNotFound, err.Error())
		default:
			response.ServerError(c, err.Error())
		}
		return
	}
	response.Success(c, gin.H{"amount": amount})
}

// CreatePromoRequest 新建促销码请求
type CreatePromoRequest struct {
	Code      string `json:"code" binding:"required"`
	Activates int    `json:"activates" binding:"required,gt=0"`
	Amount    string `json:"amount" binding:"required"`
}

// CreatePromo 新建促销码（管理端）
// POST /api/v1/admin/promo/create
func (h *Handler) CreatePromo(c *gin.Context) {
	var req CreatePromoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		response.ParamError(c, "amount 参数错误")
		return
	}

	promo, err := h.promoSvc.CreatePromo(c.Request.Context(), req.Code, req.Activates, amount)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, promo)
}

// ListPromos 列出促销码（管理端）
// GET /api/v1/admin/promo/list
func (h *Handler) ListPromos(c *gin.Context) {
	promos, err := h.promoSvc.ListPromos(c.Request.Context())
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, promos)
}

// PromoInfo 查询促销码详情（管理端）
// GET /api/v1/admin/promo/info?promo_id=xxx
func (h *Handler) PromoInfo(c *gin.Context) {
	promoID, err := strconv.ParseInt(c.Query("promo_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "promo_id 参数错误")
		return
	}

	promo, used, err := h.promoSvc.PromoInfo(c.Request.Context(), promoID)
	if err != nil {
		if errors.Is(err, repository.ErrPromoNotFound) {
			response.BusinessError(c, response.CodePromoNotFound, err.Error())
			return
		}
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, gin.H{
		"promo": promo,
		"used":  used,
	})
}

// DeletePromo 删除促销码（管理端）
// POST /api/v1/admin/promo/delete
func (h *Handler) DeletePromo(c *gin.Context) {
	promoID, err := strconv.ParseInt(c.Query("promo_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "promo_id 参数错误")
		return
	}

	if err := h.promoSvc.DeletePromo(c.Request.Context(), promoID); err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, nil)
}

// ============================================================
// 收藏相关接口
// ============================================================

// AddFavoriteRequest 添加收藏请求
type AddFavoriteRequest struct {
	UserID      int64  `json:"user_id" binding:"required"`
	Service     string `json:"service" binding:"required"`
	ServiceName string `json:"service_name"`
	CountryID   int    `json:"country_id"`
}

// AddFavorite 收藏常用服务
// POST /api/v1/favorite/add
func (h *Handler) AddFavorite(c *gin.Context) {
	var req AddFavoriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	favorite, err := h.favoriteSvc.Add(c.Request.Context(), req.UserID, req.Service, req.ServiceName, req.CountryID)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, favorite)
}

// ListFavorites 查询收藏
// GET /api/v1/favorite/list?user_id=xxx
func (h *Handler) ListFavorites(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}
	favorites, err := h.favoriteSvc.List(c.Request.Context(), userID)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, favorites)
}

// RemoveFavorite 删除收藏
// POST /api/v1/favorite/remove?user_id=xxx&favorite_id=xxx
func (h *Handler) RemoveFavorite(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}
	favoriteID, err := strconv.ParseInt(c.Query("favorite_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "favorite_id 参数错误")
		return
	}

	if err := h.favoriteSvc.Remove(c.Request.Context(), userID, favoriteID); err != nil {
		if errors.Is(err, repository.ErrFavoriteNotFound) {
			response.BusinessError(c, response.CodeNotFound, err.Error())
			return
		}
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, nil)
}

// ============================================================
// 目录查询接口
// ============================================================

// ListServices 列出平台支持的业务服务
// GET /api/v1/catalog/services
func (h *Handler) ListServices(c *gin.Context) {
	services, err := h.smsAPI.GetServices(c.Request.Context())
	if err != nil {
		response.BusinessError(c, response.CodeProviderError, err.Error())
		return
	}
	response.Success(c, services)
}

// ListCountries 查询指定服务在各国的号源与单价
// GET /api/v1/catalog/countries?service=tg
func (h *Handler) ListCountries(c *gin.Context) {
	svc := c.Query("service")
	if svc == "" {
		response.ParamError(c, "service 参数错误")
		return
	}
	offers, err := h.smsAPI.GetTopCountries(c.Request.Context(), svc)
	if err != nil {
		response.BusinessError(c, response.CodeProviderError, err.Error())
		return
	}
	response.Success(c, offers)
}

// ============================================================
// 管理端运维接口
// ============================================================

// AdminCreditRequest 手工入账请求
type AdminCreditRequest struct {
	UserID int64  `json:"user_id" binding:"required"`
	Amount string `json:"amount" binding:"required"`
	Reason string `json:"reason" binding:"required"`
}

// AdminCredit 手工入账（管理端）
// POST /api/v1/admin/credit
func (h *Handler) AdminCredit(c *gin.Context) {
	var req AdminCreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		response.ParamError(c, "amount 参数错误")
		return
	}

	if err := h.accountSvc.AdminCredit(c.Request.Context(), req.UserID, amount, req.Reason); err != nil {
		switch {
		case errors.Is(err, repository.ErrAccountNotFound):
			response.BusinessError(c, response.CodeAccountNotFound, err.Error())
		case errors.Is(err, service.ErrInvalidAmount):
			response.ParamError(c, err.Error())
		default:
			response.ServerError(c, err.Error())
		}
		return
	}
	response.Success(c, nil)
}

// ProviderBalances 查询上游平台余额（管理端）
// GET /api/v1/admin/provider/balances
func (h *Handler) ProviderBalances(c *gin.Context) {
	cryptoBalance, err := h.cryptoAPI.GetBalance(c.Request.Context(), h.cfg.CryptoPay.Asset)
	if err != nil {
		response.BusinessError(c, response.CodeProviderError, err.Error())
		return
	}
	smsBalance, err := h.smsAPI.GetBalance(c.Request.Context())
	if err != nil {
		response.BusinessError(c, response.CodeProviderError, err.Error())
		return
	}
	response.Success(c, gin.H{
		"crypto": cryptoBalance,
		"sms":    smsBalance,
	})
}
