package handler

import (
	"github.com/gin-gonic/gin"
)

// SetupRouter 配置路由
func SetupRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())

	api := r.Group("/api/v1")
	{
		account := api.Group("/account")
		{
			account.POST("/register", h.Register)
			account.GET("/balance", h.GetBalance)
			account.GET("/transactions", h.ListTransactions)
			account.POST("/transfer", h.Transfer)
			account.GET("/referrals", h.ReferralStats)
		}

		deposit := api.Group("/deposit")
		{
			deposit.POST("/crypto", h.CreateCryptoInvoice)
			deposit.POST("/stars", h.CreateStarsInvoice)
			deposit.POST("/stars/precheckout", h.ValidatePreCheckout)
			deposit.POST("/stars/settle", h.SettleStarsInvoice)
		}

		order := api.Group("/order")
		{
			order.POST("/buy", h.BuyNumber)
			order.POST("/cancel", h.CancelOrder)
			order.POST("/newcode", h.RequestNewCode)
			order.GET("/list", h.ListOrders)
		}

		rent := api.Group("/rent")
		{
			rent.POST("/create", h.RentNumber)
			rent.POST("/cancel", h.CancelRent)
			rent.GET("/list", h.ListRents)
		}

		promo := api.Group("/promo")
		{
			promo.POST("/redeem", h.RedeemPromo)
		}

		catalog := api.Group("/catalog")
		{
			catalog.GET("/services", h.ListServices)
			catalog.GET("/countries", h.ListCountries)
		}

		favorite := api.Group("/favorite")
		{
			favorite.POST("/add", h.AddFavorite)
			favorite.GET("/list", h.ListFavorites)
			favorite.POST("/remove", h.RemoveFavorite)
		}

		admin := api.Group("/admin")
		{
			admin.POST("/promo/create", h.CreatePromo)
			admin.GET("/promo/list", h.ListPromos)
			admin.GET("/promo/info", h.PromoInfo)
			admin.POST("/promo/delete", h.DeletePromo)
			admin.POST("/credit", h.AdminCredit)
			admin.GET("/provider/balances", h.ProviderBalances)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
