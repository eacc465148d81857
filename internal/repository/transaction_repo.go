package repository

import (
	"context"
	"errors"
	"time"

	"marketledger/internal/model"

	"gorm.io/gorm"
)

var (
	ErrTransactionNotFound      = errors.New("交易不存在")
	ErrTransactionStatusInvalid = errors.New("交易状态不允许该操作")
)

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(ctx context.Context, tx *gorm.DB, trans *model.LedgerTransaction) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(trans).Error
}

func (r *TransactionRepository) GetByTransactionNo(ctx context.Context, transactionNo string) (*model.LedgerTransaction, error) {
	var trans model.LedgerTransaction
	err := r.db.WithContext(ctx).Where("transaction_no = ?", transactionNo).First(&trans).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &trans, nil
}

// GetForOwner 按归属方和类型取一笔交易
// Cancel / Complete 入口对 (transaction_no, owner, type) 三元组全部校验，
// 防止拿别人的流水号或拿错类型的流水号来关单
func (r *TransactionRepository) GetForOwner(ctx context.Context, ownerKind string, ownerID int64, transactionNo, txType string) (*model.LedgerTransaction, error) {
	var trans model.LedgerTransaction
	err := r.db.WithContext(ctx).
		Where("transaction_no = ? AND owner_id = ? AND owner_kind = ? AND type = ?",
			transactionNo, ownerID, ownerKind, txType).
		First(&trans).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &trans, nil
}

// ListPending 查询归属方某一类型的处理中交易
//
// 【关键点】返回切片，调用方必须用 len(...) == 0 判断"没有挂起交易"，
// 空切片本身不是"存在挂起交易"的信号（老系统在这里栽过跟头）
func (r *TransactionRepository) ListPending(ctx context.Context, ownerKind string, ownerID int64, txType string) ([]*model.LedgerTransaction, error) {
	var transactions []*model.LedgerTransaction
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND owner_kind = ? AND type = ? AND status = ?",
			ownerID, ownerKind, txType, model.TxStatusProcessing).
		Order("created_at DESC").
		Find(&transactions).Error
	return transactions, err
}

// UpdateStatus 条件更新状态
// WHERE 带上 fromStatus，RowsAffected == 0 即说明有人抢先改过状态，
// 并发的 Cancel/Complete 不可能对同一笔交易重复生效
func (r *TransactionRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, transactionNo string, fromStatus, toStatus string) error {
	if !model.CanTransitionTo(fromStatus, toStatus) {
		return ErrTransactionStatusInvalid
	}

	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.LedgerTransaction{}).
		Where("transaction_no = ? AND status = ?", transactionNo, fromStatus).
		Update("status", toStatus)

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrTransactionStatusInvalid
	}

	return nil
}

// ListByOwner 分页查询归属方的交易历史
// includeHidden 为 false 时过滤掉被归属方隐藏的流水
func (r *TransactionRepository) ListByOwner(ctx context.Context, ownerKind string, ownerID int64, includeHidden bool, page, pageSize int) ([]*model.LedgerTransaction, int64, error) {
	var transactions []*model.LedgerTransaction
	var total int64

	query := r.db.WithContext(ctx).
		Model(&model.LedgerTransaction{}).
		Where("owner_id = ? AND owner_kind = ?", ownerID, ownerKind)
	if !includeHidden {
		query = query.Where("audit_deleted = ?", false)
	}

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&transactions).Error

	return transactions, total, err
}

// SetAuditDeleted 切换归属方的流水展示开关，和交易状态互不影响
func (r *TransactionRepository) SetAuditDeleted(ctx context.Context, ownerKind string, ownerID int64, transactionNo string, deleted bool) error {
	result := r.db.WithContext(ctx).
		Model(&model.LedgerTransaction{}).
		Where("transaction_no = ? AND owner_id = ? AND owner_kind = ?", transactionNo, ownerID, ownerKind).
		Update("audit_deleted", deleted)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

// GetStaleProcessing 查询超过时限仍处于处理中的交易，供超时任务自动取消
func (r *TransactionRepository) GetStaleProcessing(ctx context.Context, before time.Time, limit int) ([]*model.LedgerTransaction, error) {
	var transactions []*model.LedgerTransaction
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", model.TxStatusProcessing, before).
		Limit(limit).
		Find(&transactions).Error
	return transactions, err
}
