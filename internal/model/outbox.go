package model

import (
	"time"
)

const (
	OutboxStatusPending = "PENDING"
	OutboxStatusSent    = "SENT"
	OutboxStatusFailed  = "FAILED"
)

// 通知事件类型，随流水生命周期写入 outbox
const (
	EventTransactionRequested = "transaction.requested"
	EventTransactionCompleted = "transaction.completed"
	EventTransactionCancelled = "transaction.cancelled"
)

// OutboxMessage 事务性消息表
// 通知投递对账本来说是 fire-and-forget：先和业务数据同事务落库，
// 再由后台任务异步发往 Kafka，发送失败绝不回滚账本数据
type OutboxMessage struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	MessageKey string    `gorm:"type:varchar(64);not null" json:"message_key"`
	Topic      string    `gorm:"type:varchar(64);not null" json:"topic"`
	Payload    string    `gorm:"type:text;not null" json:"payload"`
	Status     string    `gorm:"type:varchar(20);index;not null;default:PENDING" json:"status"`
	RetryCount int       `gorm:"not null;default:0" json:"retry_count"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (OutboxMessage) TableName() string {
	return "outbox_message"
}
