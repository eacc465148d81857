package model

import (
	"time"
)

// BankAccount 银行账户表
// 由银行账户管理模块维护，本子系统只读：
// 提现申请时取归属方的默认银行账户，把展示字段快照进流水 details，
// 之后银行记录再怎么改都不会影响已生成的审计轨迹
type BankAccount struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	OwnerID     int64     `gorm:"index:idx_bank_owner;not null" json:"owner_id"`
	OwnerKind   string    `gorm:"index:idx_bank_owner;type:varchar(20);not null" json:"owner_kind"`
	BankCode    string    `gorm:"type:varchar(20);not null" json:"bank_code"`
	BankName    string    `gorm:"type:varchar(64);not null" json:"bank_name"`
	AccountNo   string    `gorm:"type:varchar(50);not null" json:"account_no"`
	AccountName string    `gorm:"type:varchar(100);not null" json:"account_name"`
	IsDefault   bool      `gorm:"not null;default:false" json:"is_default"`
	Active      bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (BankAccount) TableName() string {
	return "bank_account"
}
