package model

import (
	"time"
)

// CriteriaKeyMaxServiceChargeDebt 提现阈值：待缴服务费达到该值后禁止提现
const CriteriaKeyMaxServiceChargeDebt = "max_service_charge_debt"

// Criteria 运营配置表
// 由运营后台维护，本子系统只读（阈值策略从这里取数）
type Criteria struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Key       string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"key"`
	Value     string    `gorm:"type:varchar(256);not null" json:"value"`
	Remark    string    `gorm:"type:varchar(256)" json:"remark"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Criteria) TableName() string {
	return "criteria"
}
