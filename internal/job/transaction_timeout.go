package job

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"marketledger/internal/config"
	"marketledger/internal/model"
	"marketledger/internal/repository"

	"gorm.io/gorm"
)

// TransactionTimeoutJob 交易超时任务
// 外部支付环节可能永远不回调（网关掉单、运营漏处理），
// 处理中的交易超过时限后由本任务自动取消，释放挂起互斥的占位。
// 取消只改状态不碰账户，所以超时收口是安全的
type TransactionTimeoutJob struct {
	db              *gorm.DB
	transactionRepo *repository.TransactionRepository
	outboxRepo      *repository.OutboxRepository
	cfg             *config.Config
	stopCh          chan struct{}
	interval        time.Duration
	batchSize       int
}

func NewTransactionTimeoutJob(db *gorm.DB, cfg *config.Config) *TransactionTimeoutJob {
	return &TransactionTimeoutJob{
		db:              db,
		transactionRepo: repository.NewTransactionRepository(db),
		outboxRepo:      repository.NewOutboxRepository(db),
		cfg:             cfg,
		stopCh:          make(chan struct{}),
		interval:        10 * time.Second,
		batchSize:       100,
	}
}

func (j *TransactionTimeoutJob) Start(ctx context.Context) {
	log.Println("[TransactionTimeoutJob] 交易超时任务启动")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[TransactionTimeoutJob] 收到停止信号，任务退出")
			return
		case <-j.stopCh:
			log.Println("[TransactionTimeoutJob] 任务停止")
			return
		case <-ticker.C:
			j.cancelStaleTransactions(ctx)
		}
	}
}

func (j *TransactionTimeoutJob) Stop() {
	close(j.stopCh)
}

func (j *TransactionTimeoutJob) cancelStaleTransactions(ctx context.Context) {
	timeout := time.Duration(j.cfg.Ledger.TransactionTimeoutMinutes) * time.Minute
	before := time.Now().Add(-timeout)

	transactions, err := j.transactionRepo.GetStaleProcessing(ctx, before, j.batchSize)
	if err != nil {
		log.Printf("[TransactionTimeoutJob] 查询超时交易失败: %v", err)
		return
	}

	if len(transactions) == 0 {
		return
	}

	log.Printf("[TransactionTimeoutJob] 发现 %d 笔超时交易", len(transactions))

	cancelledCount := 0
	for _, trans := range transactions {
		if err := j.cancelTransaction(ctx, trans); err != nil {
			// 状态冲突说明回调刚好赶在超时前到了，跳过即可
			if errors.Is(err, repository.ErrTransactionStatusInvalid) {
				continue
			}
			log.Printf("[TransactionTimeoutJob] 取消交易失败: txNo=%s, err=%v", trans.TransactionNo, err)
			continue
		}
		cancelledCount++
		log.Printf("[TransactionTimeoutJob] 交易已超时取消: txNo=%s, ownerKind=%s, ownerID=%d, type=%s, amount=%d",
			trans.TransactionNo, trans.OwnerKind, trans.OwnerID, trans.Type, trans.Amount)
	}

	log.Printf("[TransactionTimeoutJob] 本次取消 %d 笔超时交易", cancelledCount)
}

func (j *TransactionTimeoutJob) cancelTransaction(ctx context.Context, trans *model.LedgerTransaction) error {
	return j.db.Transaction(func(tx *gorm.DB) error {
		if err := j.transactionRepo.UpdateStatus(ctx, tx, trans.TransactionNo, model.TxStatusProcessing, model.TxStatusCancelled); err != nil {
			return err
		}

		payload := map[string]interface{}{
			"event":          model.EventTransactionCancelled,
			"transaction_no": trans.TransactionNo,
			"owner_id":       trans.OwnerID,
			"owner_kind":     trans.OwnerKind,
			"type":           trans.Type,
			"amount":         trans.Amount,
			"status":         model.TxStatusCancelled,
			"reason":         "timeout",
			"occurred_at":    time.Now().Format(time.RFC3339),
		}
		payloadBytes, err := json.Marshal(payload)
		if err != nil {
			return err
		}

		msg := &model.OutboxMessage{
			MessageKey: trans.TransactionNo,
			Topic:      j.cfg.Kafka.Topic.LedgerEvents,
			Payload:    string(payloadBytes),
			Status:     model.OutboxStatusPending,
		}
		return j.outboxRepo.Create(ctx, tx, msg)
	})
}
