package handler

import (
	"marketledger/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// SetupRouter 配置路由
func SetupRouter(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *gin.Engine {
	// 设置 gin 为发布模式（减少日志输出）
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// 注册中间件
	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	// 创建处理器
	h := NewHandler(db, rdb, cfg)

	// API 路由组
	api := r.Group("/api/v1")
	{
		// 账本相关（归属方鉴权后调用）
		ledger := api.Group("/ledger")
		{
			ledger.GET("/account", h.GetAccount)
			ledger.POST("/deposit", h.RequestDeposit)
			ledger.POST("/withdraw", h.RequestWithdrawal)
			ledger.POST("/service-charge/pay", h.RequestServiceChargePayment)
			ledger.POST("/cancel", h.CancelTransaction)
			ledger.GET("/transactions", h.ListTransactions)
			ledger.POST("/transactions/hide", h.HideTransaction)
			ledger.POST("/transactions/restore", h.RestoreTransaction)
		}

		// 受信外部调用方回调（支付网关/运营操作）
		callback := api.Group("/callback", CallbackAuthMiddleware(cfg))
		{
			callback.POST("/complete", h.CompleteTransaction)
			callback.POST("/cancel", h.CancelTransaction)
			callback.POST("/service-charge/accrue", h.AccrueServiceCharge)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
