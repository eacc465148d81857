package service

import (
	"path/filepath"
	"testing"

	"marketledger/internal/config"
	"marketledger/internal/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB 基于 sqlite 的测试数据库
// 单连接串行化写入，规避文件锁竞争，并发用例只验证业务层的互斥
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "ledger.db")
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("打开测试数据库失败: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("获取底层 DB 失败: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&model.Account{},
		&model.LedgerTransaction{},
		&model.BankAccount{},
		&model.Criteria{},
		&model.OutboxMessage{},
	)
	if err != nil {
		t.Fatalf("迁移表结构失败: %v", err)
	}

	return db
}

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func newTestConfig() *config.Config {
	return &config.Config{
		Kafka: config.KafkaConfig{
			Topic: config.KafkaTopicConfig{LedgerEvents: "ledger_events"},
		},
		Ledger: config.LedgerConfig{
			TransactionTimeoutMinutes:   30,
			MaxRetryCount:               5,
			ThresholdCacheSeconds:       3600,
			DefaultMaxServiceChargeDebt: 5000,
		},
	}
}

func newTestService(t *testing.T) (*LedgerService, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	return NewLedgerService(db, newTestRedis(t), newTestConfig()), db
}

func seedAccount(t *testing.T, db *gorm.DB, ownerKind string, ownerID, balance, serviceCharge int64) {
	t.Helper()
	account := &model.Account{
		OwnerID:       ownerID,
		OwnerKind:     ownerKind,
		Balance:       balance,
		ServiceCharge: serviceCharge,
		Active:        true,
	}
	if err := db.Create(account).Error; err != nil {
		t.Fatalf("初始化账户失败: %v", err)
	}
}

func seedBankAccount(t *testing.T, db *gorm.DB, ownerKind string, ownerID int64) {
	t.Helper()
	bank := &model.BankAccount{
		OwnerID:     ownerID,
		OwnerKind:   ownerKind,
		BankCode:    "CMB",
		BankName:    "招商银行",
		AccountNo:   "6214850212345678",
		AccountName: "测试户名",
		IsDefault:   true,
		Active:      true,
	}
	if err := db.Create(bank).Error; err != nil {
		t.Fatalf("初始化银行账户失败: %v", err)
	}
}

func getAccount(t *testing.T, db *gorm.DB, ownerKind string, ownerID int64) *model.Account {
	t.Helper()
	var account model.Account
	if err := db.Where("owner_id = ? AND owner_kind = ?", ownerID, ownerKind).First(&account).Error; err != nil {
		t.Fatalf("查询账户失败: %v", err)
	}
	return &account
}

func getTransaction(t *testing.T, db *gorm.DB, transactionNo string) *model.LedgerTransaction {
	t.Helper()
	var trans model.LedgerTransaction
	if err := db.Where("transaction_no = ?", transactionNo).First(&trans).Error; err != nil {
		t.Fatalf("查询交易失败: %v", err)
	}
	return &trans
}

func countTransactions(t *testing.T, db *gorm.DB, ownerKind string, ownerID int64, status string) int64 {
	t.Helper()
	var count int64
	query := db.Model(&model.LedgerTransaction{}).
		Where("owner_id = ? AND owner_kind = ?", ownerID, ownerKind)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Count(&count).Error; err != nil {
		t.Fatalf("统计交易失败: %v", err)
	}
	return count
}

func countOutbox(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var count int64
	if err := db.Model(&model.OutboxMessage{}).Count(&count).Error; err != nil {
		t.Fatalf("统计消息失败: %v", err)
	}
	return count
}
