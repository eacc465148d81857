package model

import (
	"time"
)

// ============================================================================
// 账户归属方类型
// ============================================================================

const (
	OwnerKindCustomer = "CUSTOMER" // 买家用户
	OwnerKindRider    = "RIDER"    // 配送骑手
)

// ValidOwnerKind 校验归属方类型是否合法
func ValidOwnerKind(kind string) bool {
	return kind == OwnerKindCustomer || kind == OwnerKindRider
}

// Account 账户表
// 每个归属方（用户或骑手）一行，是整个账本系统的核心数据
//
// 【重要】余额约束：
// 1. balance 不允许因本子系统的操作变为负数
// 2. service_charge 仅骑手使用（平台服务费欠款），永远 >= 0
// 3. 余额只能由交易完成（Complete）这一条路径变更
type Account struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	OwnerID       int64     `gorm:"uniqueIndex:idx_owner;not null" json:"owner_id"`                    // 归属方ID，业务方传入
	OwnerKind     string    `gorm:"uniqueIndex:idx_owner;type:varchar(20);not null" json:"owner_kind"` // CUSTOMER / RIDER
	Balance       int64     `gorm:"not null;default:0" json:"balance"`                                 // 可用余额
	ServiceCharge int64     `gorm:"not null;default:0" json:"service_charge"`                          // 待缴服务费（仅骑手）
	Active        bool      `gorm:"not null;default:true" json:"active"`                               // 软删除标记
	Version       int       `gorm:"not null;default:0" json:"version"`                                 // 乐观锁版本号
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Account) TableName() string {
	return "ledger_account"
}
