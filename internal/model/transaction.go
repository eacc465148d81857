package model

import (
	"time"
)

// ============================================================================
// 交易类型常量
// ============================================================================

const (
	TxTypeDeposit       = "DEPOSIT"                // 充值
	TxTypeWithdrawal    = "WITHDRAWAL"             // 提现
	TxTypeServiceCharge = "SERVICE_CHARGE_PAYMENT" // 服务费缴纳（仅骑手）
)

// ValidTxType 校验交易类型是否合法
func ValidTxType(txType string) bool {
	switch txType {
	case TxTypeDeposit, TxTypeWithdrawal, TxTypeServiceCharge:
		return true
	}
	return false
}

// ============================================================================
// 交易状态机
// ============================================================================

const (
	TxStatusProcessing = "PROCESSING" // 处理中（两阶段的第一阶段）
	TxStatusCompleted  = "COMPLETED"  // 已完成（终态）
	TxStatusCancelled  = "CANCELLED"  // 已取消（终态）
)

// ValidStatusTransitions 合法的状态流转
// 终态（COMPLETED / CANCELLED）没有出边，状态一旦落定不可回退
var ValidStatusTransitions = map[string][]string{
	TxStatusProcessing: {TxStatusCompleted, TxStatusCancelled},
}

func CanTransitionTo(currentStatus, targetStatus string) bool {
	allowedStatuses, exists := ValidStatusTransitions[currentStatus]
	if !exists {
		return false
	}
	for _, s := range allowedStatuses {
		if s == targetStatus {
			return true
		}
	}
	return false
}

// ============================================================================
// 支付方式
// ============================================================================

const (
	PaymentMethodCard         = "CARD"          // 银行卡
	PaymentMethodWallet       = "WALLET"        // 钱包
	PaymentMethodTransfer     = "TRANSFER"      // 转账
	PaymentMethodBankTransfer = "BANK_TRANSFER" // 银行转账（提现专用）
)

// AllowedPaymentMethods 每种交易类型允许的支付方式
// 提现只能走银行转账，目标银行在申请时固化到 details
var AllowedPaymentMethods = map[string][]string{
	TxTypeDeposit:       {PaymentMethodCard, PaymentMethodWallet, PaymentMethodTransfer},
	TxTypeServiceCharge: {PaymentMethodCard, PaymentMethodWallet, PaymentMethodTransfer},
	TxTypeWithdrawal:    {PaymentMethodBankTransfer},
}

func PaymentMethodAllowed(txType, method string) bool {
	for _, m := range AllowedPaymentMethods[txType] {
		if m == method {
			return true
		}
	}
	return false
}

// ============================================================================
// 交易流水实体
// ============================================================================

// MaxDetailsLength details 字段的最大长度，超出部分截断
const MaxDetailsLength = 256

// LedgerTransaction 交易流水表
// 记录账户的每一笔资金变动申请，是对账的核心依据
//
// 【重要】流水表设计原则：
// 1. 只追加状态流转，不修改金额，不物理删除，保证审计可追溯
// 2. 每笔流水必须有全局唯一流水号，外部支付环节用它关联
// 3. audit_deleted 只是归属方的展示开关，与 status 完全正交
type LedgerTransaction struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionNo string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"transaction_no"` // 流水号（全局唯一）
	OwnerID       int64     `gorm:"index:idx_tx_owner;not null" json:"owner_id"`                 // 归属方ID
	OwnerKind     string    `gorm:"index:idx_tx_owner;type:varchar(20);not null" json:"owner_kind"`
	Type          string    `gorm:"type:varchar(32);index;not null" json:"type"`          // 交易类型
	Amount        int64     `gorm:"not null" json:"amount"`                               // 金额（恒为正数）
	Status        string    `gorm:"type:varchar(20);index;not null" json:"status"`        // 生命周期状态
	PaymentMethod string    `gorm:"type:varchar(32);not null" json:"payment_method"`      // 支付方式
	Details       string    `gorm:"type:varchar(256)" json:"details"`                     // 审计描述（含提现目标银行快照）
	AuditDeleted  bool      `gorm:"not null;default:false" json:"audit_deleted"`          // 归属方隐藏开关
	CreatedAt     time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (LedgerTransaction) TableName() string {
	return "ledger_transaction"
}

// TruncateDetails 截断超长的审计描述
func TruncateDetails(details string) string {
	runes := []rune(details)
	if len(runes) <= MaxDetailsLength {
		return details
	}
	return string(runes[:MaxDetailsLength])
}
