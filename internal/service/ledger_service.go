package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"marketledger/internal/config"
	"marketledger/internal/infrastructure/lock"
	"marketledger/internal/model"
	"marketledger/internal/repository"
	"marketledger/pkg/idgen"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LedgerService 交易状态机
// 用户侧和骑手侧共用这一份实现，归属方类型作为参数贯穿全程。
// 账户余额/服务费只有 Complete 这一条变更路径
type LedgerService struct {
	db              *gorm.DB
	redisClient     *redis.Client
	cfg             *config.Config
	accountRepo     *repository.AccountRepository
	transactionRepo *repository.TransactionRepository
	bankRepo        *repository.BankAccountRepository
	outboxRepo      *repository.OutboxRepository
	threshold       *ThresholdPolicy
	validator       *RequestValidator
}

func NewLedgerService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *LedgerService {
	transactionRepo := repository.NewTransactionRepository(db)
	threshold := NewThresholdPolicy(db, cfg)
	return &LedgerService{
		db:              db,
		redisClient:     redisClient,
		cfg:             cfg,
		accountRepo:     repository.NewAccountRepository(db),
		transactionRepo: transactionRepo,
		bankRepo:        repository.NewBankAccountRepository(db),
		outboxRepo:      repository.NewOutboxRepository(db),
		threshold:       threshold,
		validator:       NewRequestValidator(transactionRepo, threshold),
	}
}

// RequestResult 申请成功后的回执，流水号和金额原样回显供客户端对账
type RequestResult struct {
	TransactionNo string `json:"transaction_no"`
	Amount        int64  `json:"amount"`
	Status        string `json:"status"`
}

// RequestDeposit 充值申请
// 成功后交易停在 PROCESSING，等外部支付环节回调 Complete/Cancel 收口；
// 此时不动账户余额
func (s *LedgerService) RequestDeposit(ctx context.Context, ownerKind string, ownerID, amount int64, method string) (*RequestResult, error) {
	details := fmt.Sprintf("充值申请: 金额=%d, 方式=%s", amount, method)
	return s.request(ctx, ownerKind, ownerID, model.TxTypeDeposit, amount, method, details)
}

// RequestWithdrawal 提现申请
// 到账银行取归属方的默认银行账户，展示字段在申请时刻固化进 details，
// 银行记录后续变更不会改写已有审计轨迹
func (s *LedgerService) RequestWithdrawal(ctx context.Context, ownerKind string, ownerID, amount int64) (*RequestResult, error) {
	bank, err := s.bankRepo.GetDefaultByOwner(ctx, ownerKind, ownerID)
	if err != nil {
		return nil, err
	}

	details := fmt.Sprintf("提现申请: 金额=%d, 到账银行=%s(%s), 账号=%s, 户名=%s",
		amount, bank.BankName, bank.BankCode, bank.AccountNo, bank.AccountName)
	return s.request(ctx, ownerKind, ownerID, model.TxTypeWithdrawal, amount, model.PaymentMethodBankTransfer, details)
}

// RequestServiceChargePayment 服务费缴纳申请（仅骑手）
func (s *LedgerService) RequestServiceChargePayment(ctx context.Context, riderID, amount int64, method string) (*RequestResult, error) {
	details := fmt.Sprintf("服务费缴纳申请: 金额=%d, 方式=%s", amount, method)
	return s.request(ctx, model.OwnerKindRider, riderID, model.TxTypeServiceCharge, amount, method, details)
}

// request 三种申请共用的主流程
//
// 【关键点】挂起互斥和余额校验是 check-then-insert，必须整体串行化：
// 1. 按 (归属方, 交易类型) 获取分布式锁
// 2. 锁内重新读账户、重新校验（锁外读到的数据可能已经过期）
// 3. 单个数据库事务写入流水 + 通知消息
func (s *LedgerService) request(ctx context.Context, ownerKind string, ownerID int64, txType string, amount int64, method, details string) (*RequestResult, error) {
	if !model.ValidOwnerKind(ownerKind) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidOwnerKind, ownerKind)
	}

	// 锁外先确认账户存在，账户不存在没必要去抢锁
	if _, err := s.accountRepo.GetByOwner(ctx, ownerKind, ownerID); err != nil {
		return nil, err
	}

	requestLock := lock.NewRequestLock(s.redisClient, ownerKind, ownerID, txType, uuid.NewString())
	if err := requestLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
		return nil, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer requestLock.Unlock(ctx)

	account, err := s.accountRepo.GetByOwner(ctx, ownerKind, ownerID)
	if err != nil {
		return nil, err
	}

	if err := s.validator.Validate(ctx, account, txType, amount, method); err != nil {
		return nil, err
	}

	trans := &model.LedgerTransaction{
		TransactionNo: idgen.GenerateTransactionNo(txType),
		OwnerID:       ownerID,
		OwnerKind:     ownerKind,
		Type:          txType,
		Amount:        amount,
		Status:        model.TxStatusProcessing,
		PaymentMethod: method,
		Details:       model.TruncateDetails(details),
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.transactionRepo.Create(ctx, tx, trans); err != nil {
			return fmt.Errorf("创建交易失败: %w", err)
		}
		return s.createEvent(ctx, tx, model.EventTransactionRequested, trans)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("交易申请成功: txNo=%s, ownerKind=%s, ownerID=%d, type=%s, amount=%d",
		trans.TransactionNo, ownerKind, ownerID, txType, amount)

	return &RequestResult{
		TransactionNo: trans.TransactionNo,
		Amount:        trans.Amount,
		Status:        trans.Status,
	}, nil
}

// Cancel 取消处理中的交易
// 只改状态，不碰账户；对已终态的交易重复调用返回状态冲突错误，不产生任何变更
func (s *LedgerService) Cancel(ctx context.Context, ownerKind string, ownerID int64, transactionNo, txType string) error {
	if !model.ValidTxType(txType) {
		return fmt.Errorf("%w: %s", ErrInvalidTxType, txType)
	}

	trans, err := s.transactionRepo.GetForOwner(ctx, ownerKind, ownerID, transactionNo, txType)
	if err != nil {
		return err
	}
	if trans.Status != model.TxStatusProcessing {
		return fmt.Errorf("%w: 当前状态 %s", repository.ErrTransactionStatusInvalid, trans.Status)
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.transactionRepo.UpdateStatus(ctx, tx, transactionNo, model.TxStatusProcessing, model.TxStatusCancelled); err != nil {
			return err
		}
		trans.Status = model.TxStatusCancelled
		return s.createEvent(ctx, tx, model.EventTransactionCancelled, trans)
	})
	if err != nil {
		return err
	}

	log.Printf("交易已取消: txNo=%s, ownerKind=%s, ownerID=%d, type=%s", transactionNo, ownerKind, ownerID, txType)
	return nil
}

// Complete 完成处理中的交易
// 受信外部调用方（支付网关回调/运营操作）专用入口，代表资金在外部已实际划转。
//
// 【关键点】状态流转和记账必须同生共死：
// 同一个数据库事务里先把状态从 PROCESSING 推到 COMPLETED，
// 再按类型做唯一一种账户变更。任何一半失败整体回滚，
// 不存在"已完成但没记账"或"记了账但状态没动"的中间态。
//
// 条件 UPDATE 的守卫（status = PROCESSING / balance >= 金额）保证了：
// 1. 并发重复回调最多一次生效，其余拿到状态冲突
// 2. 即使申请后余额被并发消耗，完成时也不会把余额扣成负数
func (s *LedgerService) Complete(ctx context.Context, ownerKind string, ownerID int64, transactionNo, txType string) error {
	if !model.ValidTxType(txType) {
		return fmt.Errorf("%w: %s", ErrInvalidTxType, txType)
	}

	trans, err := s.transactionRepo.GetForOwner(ctx, ownerKind, ownerID, transactionNo, txType)
	if err != nil {
		return err
	}
	if trans.Status != model.TxStatusProcessing {
		return fmt.Errorf("%w: 当前状态 %s", repository.ErrTransactionStatusInvalid, trans.Status)
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.transactionRepo.UpdateStatus(ctx, tx, transactionNo, model.TxStatusProcessing, model.TxStatusCompleted); err != nil {
			return err
		}

		switch trans.Type {
		case model.TxTypeDeposit:
			if err := s.accountRepo.AddBalance(ctx, tx, ownerKind, ownerID, trans.Amount); err != nil {
				return fmt.Errorf("充值入账失败: %w", err)
			}
		case model.TxTypeWithdrawal:
			if err := s.accountRepo.DeductBalance(ctx, tx, ownerKind, ownerID, trans.Amount); err != nil {
				return fmt.Errorf("提现出账失败: %w", err)
			}
		case model.TxTypeServiceCharge:
			if err := s.accountRepo.DeductServiceCharge(ctx, tx, ownerKind, ownerID, trans.Amount); err != nil {
				return fmt.Errorf("服务费核销失败: %w", err)
			}
		}

		trans.Status = model.TxStatusCompleted
		return s.createEvent(ctx, tx, model.EventTransactionCompleted, trans)
	})
	if err != nil {
		return err
	}

	log.Printf("交易已完成: txNo=%s, ownerKind=%s, ownerID=%d, type=%s, amount=%d",
		transactionNo, ownerKind, ownerID, txType, trans.Amount)
	return nil
}

// AccrueServiceCharge 累加骑手的待缴服务费
// 订单结算等外部协作方调用，不走交易状态机，直接记债
func (s *LedgerService) AccrueServiceCharge(ctx context.Context, riderID, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: 金额必须为正数", ErrInvalidAmount)
	}
	if err := s.accountRepo.AddServiceCharge(ctx, model.OwnerKindRider, riderID, amount); err != nil {
		return err
	}
	log.Printf("服务费已累加: riderID=%d, amount=%d", riderID, amount)
	return nil
}

// GetAccount 查询账户（余额 + 待缴服务费）
func (s *LedgerService) GetAccount(ctx context.Context, ownerKind string, ownerID int64) (*model.Account, error) {
	if !model.ValidOwnerKind(ownerKind) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidOwnerKind, ownerKind)
	}
	return s.accountRepo.GetByOwner(ctx, ownerKind, ownerID)
}

// ListTransactions 分页查询交易历史，默认不含被归属方隐藏的流水
func (s *LedgerService) ListTransactions(ctx context.Context, ownerKind string, ownerID int64, page, pageSize int) ([]*model.LedgerTransaction, int64, error) {
	if !model.ValidOwnerKind(ownerKind) {
		return nil, 0, fmt.Errorf("%w: %s", ErrInvalidOwnerKind, ownerKind)
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 10
	}
	return s.transactionRepo.ListByOwner(ctx, ownerKind, ownerID, false, page, pageSize)
}

// HideTransaction 归属方隐藏一笔流水（审计可见性开关，不影响交易状态）
func (s *LedgerService) HideTransaction(ctx context.Context, ownerKind string, ownerID int64, transactionNo string) error {
	return s.transactionRepo.SetAuditDeleted(ctx, ownerKind, ownerID, transactionNo, true)
}

// RestoreTransaction 恢复展示
func (s *LedgerService) RestoreTransaction(ctx context.Context, ownerKind string, ownerID int64, transactionNo string) error {
	return s.transactionRepo.SetAuditDeleted(ctx, ownerKind, ownerID, transactionNo, false)
}

// createEvent 在业务事务内写入通知消息
// 真正的投递由 OutboxSender 异步完成，通知链路的故障不会影响账本
func (s *LedgerService) createEvent(ctx context.Context, tx *gorm.DB, event string, trans *model.LedgerTransaction) error {
	payload := map[string]interface{}{
		"event":          event,
		"transaction_no": trans.TransactionNo,
		"owner_id":       trans.OwnerID,
		"owner_kind":     trans.OwnerKind,
		"type":           trans.Type,
		"amount":         trans.Amount,
		"status":         trans.Status,
		"occurred_at":    time.Now().Format(time.RFC3339),
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("序列化通知消息失败: %w", err)
	}

	msg := &model.OutboxMessage{
		MessageKey: trans.TransactionNo,
		Topic:      s.cfg.Kafka.Topic.LedgerEvents,
		Payload:    string(payloadBytes),
		Status:     model.OutboxStatusPending,
	}
	if err := s.outboxRepo.Create(ctx, tx, msg); err != nil {
		return fmt.Errorf("写入通知消息失败: %w", err)
	}
	return nil
}
