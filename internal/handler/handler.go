package handler

import (
	"errors"
	"strconv"

	"marketledger/internal/config"
	"marketledger/internal/model"
	"marketledger/internal/repository"
	"marketledger/internal/service"
	"marketledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	ledgerService *service.LedgerService
}

// NewHandler 创建处理器实例
func NewHandler(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *Handler {
	return &Handler{
		ledgerService: service.NewLedgerService(db, rdb, cfg),
	}
}

// writeError 把业务错误翻译成响应码
// 分类：校验类 / 不存在类 / 冲突类，其余一律按存储错误兜底
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidAmount):
		response.BusinessError(c, response.CodeInvalidAmount, err.Error())
	case errors.Is(err, service.ErrInvalidPaymentMethod):
		response.BusinessError(c, response.CodeInvalidPaymentMethod, err.Error())
	case errors.Is(err, service.ErrInvalidTxType), errors.Is(err, service.ErrInvalidOwnerKind):
		response.ParamError(c, err.Error())
	case errors.Is(err, service.ErrOwnerKindNotAllowed):
		response.BusinessError(c, response.CodeOwnerKindNotAllowed, err.Error())
	case errors.Is(err, repository.ErrAccountNotFound):
		response.BusinessError(c, response.CodeAccountNotFound, err.Error())
	case errors.Is(err, repository.ErrTransactionNotFound):
		response.BusinessError(c, response.CodeTransactionNotFound, err.Error())
	case errors.Is(err, repository.ErrBankAccountNotFound):
		response.BusinessError(c, response.CodeBankAccountNotFound, err.Error())
	case errors.Is(err, service.ErrPendingExists):
		response.BusinessError(c, response.CodePendingExists, err.Error())
	case errors.Is(err, repository.ErrBalanceNotEnough):
		response.BusinessError(c, response.CodeBalanceNotEnough, err.Error())
	case errors.Is(err, repository.ErrServiceChargeNotEnough):
		response.BusinessError(c, response.CodeServiceChargeNotEnough, err.Error())
	case errors.Is(err, service.ErrNoServiceCharge):
		response.BusinessError(c, response.CodeNoServiceCharge, err.Error())
	case errors.Is(err, service.ErrThresholdExceeded):
		response.BusinessError(c, response.CodeThresholdExceeded, err.Error())
	case errors.Is(err, repository.ErrTransactionStatusInvalid):
		response.BusinessError(c, response.CodeStatusInvalid, err.Error())
	default:
		response.ServerError(c, err.Error())
	}
}

// ============================================================
// 账户相关接口
// ============================================================

// GetAccount 查询余额和待缴服务费
// GET /api/v1/ledger/account?owner_kind=xxx&owner_id=xxx
func (h *Handler) GetAccount(c *gin.Context) {
	ownerKind := c.Query("owner_kind")
	ownerID, err := strconv.ParseInt(c.Query("owner_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "owner_id 参数错误")
		return
	}

	account, err := h.ledgerService.GetAccount(c.Request.Context(), ownerKind, ownerID)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{
		"owner_id":       account.OwnerID,
		"owner_kind":     account.OwnerKind,
		"balance":        account.Balance,
		"service_charge": account.ServiceCharge,
	})
}

// ============================================================
// 交易申请接口（归属方鉴权后调用）
// ============================================================

// DepositRequest 充值申请
type DepositRequest struct {
	OwnerKind     string `json:"owner_kind" binding:"required"`
	OwnerID       int64  `json:"owner_id" binding:"required"`
	Amount        int64  `json:"amount" binding:"required"`
	PaymentMethod string `json:"payment_method" binding:"required"`
}

// RequestDeposit 充值申请
// POST /api/v1/ledger/deposit
func (h *Handler) RequestDeposit(c *gin.Context) {
	var req DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.ledgerService.RequestDeposit(c.Request.Context(), req.OwnerKind, req.OwnerID, req.Amount, req.PaymentMethod)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, result)
}

// WithdrawalRequest 提现申请
type WithdrawalRequest struct {
	OwnerKind string `json:"owner_kind" binding:"required"`
	OwnerID   int64  `json:"owner_id" binding:"required"`
	Amount    int64  `json:"amount" binding:"required"`
}

// RequestWithdrawal 提现申请
// POST /api/v1/ledger/withdraw
//
// 【关键点】提现的前置校验最多：
// 余额充足、无挂起提现、待缴服务费未超阈值，全部通过才生成流水
func (h *Handler) RequestWithdrawal(c *gin.Context) {
	var req WithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.ledgerService.RequestWithdrawal(c.Request.Context(), req.OwnerKind, req.OwnerID, req.Amount)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, result)
}

// ServiceChargePaymentRequest 服务费缴纳申请（仅骑手）
type ServiceChargePaymentRequest struct {
	RiderID       int64  `json:"rider_id" binding:"required"`
	Amount        int64  `json:"amount" binding:"required"`
	PaymentMethod string `json:"payment_method" binding:"required"`
}

// RequestServiceChargePayment 服务费缴纳申请
// POST /api/v1/ledger/service-charge/pay
func (h *Handler) RequestServiceChargePayment(c *gin.Context) {
	var req ServiceChargePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.ledgerService.RequestServiceChargePayment(c.Request.Context(), req.RiderID, req.Amount, req.PaymentMethod)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, result)
}

// AccrueServiceChargeRequest 服务费累加请求体
type AccrueServiceChargeRequest struct {
	RiderID int64 `json:"rider_id" binding:"required"`
	Amount  int64 `json:"amount" binding:"required"`
}

// AccrueServiceCharge 累加骑手的待缴服务费
// POST /api/v1/callback/service-charge/accrue（订单结算侧调用）
func (h *Handler) AccrueServiceCharge(c *gin.Context) {
	var req AccrueServiceChargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.ledgerService.AccrueServiceCharge(c.Request.Context(), req.RiderID, req.Amount); err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{"rider_id": req.RiderID, "amount": req.Amount})
}

// ============================================================
// 交易收口接口
// ============================================================

// CloseTransactionRequest 取消/完成交易的公共请求体
type CloseTransactionRequest struct {
	OwnerKind     string `json:"owner_kind" binding:"required"`
	OwnerID       int64  `json:"owner_id" binding:"required"`
	TransactionNo string `json:"transaction_no" binding:"required"`
	Type          string `json:"type" binding:"required"`
}

// CancelTransaction 取消处理中的交易
// POST /api/v1/ledger/cancel（归属方）
// POST /api/v1/callback/cancel（受信外部调用方）
func (h *Handler) CancelTransaction(c *gin.Context) {
	var req CloseTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.ledgerService.Cancel(c.Request.Context(), req.OwnerKind, req.OwnerID, req.TransactionNo, req.Type); err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{
		"transaction_no": req.TransactionNo,
		"status":         model.TxStatusCancelled,
	})
}

// CompleteTransaction 完成处理中的交易
// POST /api/v1/callback/complete
//
// 【关键点】只开放给受信外部调用方（支付网关回调/运营操作），
// 它代表资金在账本之外已经实际划转，归属方自己不能调用
func (h *Handler) CompleteTransaction(c *gin.Context) {
	var req CloseTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.ledgerService.Complete(c.Request.Context(), req.OwnerKind, req.OwnerID, req.TransactionNo, req.Type); err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{
		"transaction_no": req.TransactionNo,
		"status":         model.TxStatusCompleted,
	})
}

// ============================================================
// 交易历史接口
// ============================================================

// ListTransactions 分页查询交易历史
// GET /api/v1/ledger/transactions?owner_kind=xxx&owner_id=xxx&page=1&page_size=10
func (h *Handler) ListTransactions(c *gin.Context) {
	ownerKind := c.Query("owner_kind")
	ownerID, err := strconv.ParseInt(c.Query("owner_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "owner_id 参数错误")
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	transactions, total, err := h.ledgerService.ListTransactions(c.Request.Context(), ownerKind, ownerID, page, pageSize)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{
		"list":      transactions,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// AuditToggleRequest 流水展示开关请求体
type AuditToggleRequest struct {
	OwnerKind     string `json:"owner_kind" binding:"required"`
	OwnerID       int64  `json:"owner_id" binding:"required"`
	TransactionNo string `json:"transaction_no" binding:"required"`
}

// HideTransaction 隐藏一笔流水
// POST /api/v1/ledger/transactions/hide
func (h *Handler) HideTransaction(c *gin.Context) {
	var req AuditToggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.ledgerService.HideTransaction(c.Request.Context(), req.OwnerKind, req.OwnerID, req.TransactionNo); err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{"message": "流水已隐藏"})
}

// RestoreTransaction 恢复展示一笔流水
// POST /api/v1/ledger/transactions/restore
func (h *Handler) RestoreTransaction(c *gin.Context) {
	var req AuditToggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.ledgerService.RestoreTransaction(c.Request.Context(), req.OwnerKind, req.OwnerID, req.TransactionNo); err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{"message": "流水已恢复展示"})
}
