package repository

import (
	"context"
	"errors"

	"marketledger/internal/model"

	"gorm.io/gorm"
)

var (
	ErrAccountNotFound        = errors.New("账户不存在")
	ErrBalanceNotEnough       = errors.New("余额不足")
	ErrServiceChargeNotEnough = errors.New("待缴服务费不足以扣减")
	ErrServiceChargeNegative  = errors.New("服务费不允许为负数")
)

type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) Create(ctx context.Context, account *model.Account) error {
	return r.db.WithContext(ctx).Create(account).Error
}

func (r *AccountRepository) GetByOwner(ctx context.Context, ownerKind string, ownerID int64) (*model.Account, error) {
	return r.getByOwner(ctx, r.db, ownerKind, ownerID)
}

func (r *AccountRepository) getByOwner(ctx context.Context, tx *gorm.DB, ownerKind string, ownerID int64) (*model.Account, error) {
	var account model.Account
	err := tx.WithContext(ctx).
		Where("owner_id = ? AND owner_kind = ? AND active = ?", ownerID, ownerKind, true).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// AddBalance 入账（充值完成时调用）
// 必须在 Complete 的数据库事务内执行
func (r *AccountRepository) AddBalance(ctx context.Context, tx *gorm.DB, ownerKind string, ownerID int64, amount int64) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.Account{}).
		Where("owner_id = ? AND owner_kind = ? AND active = ?", ownerID, ownerKind, true).
		Updates(map[string]interface{}{
			"balance": gorm.Expr("balance + ?", amount),
			"version": gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// DeductBalance 出账（提现完成时调用）
//
// 【关键点】余额校验放在 WHERE 条件里（balance >= ?），
// 和更新本身是同一条语句，并发完成也不可能把余额扣成负数。
// RowsAffected == 0 时回查账户区分"账户不存在"和"余额不足"，
// 回查必须走同一个 tx：既要读到事务内的最新数据，
// 也不能在事务持有连接时再去连接池要第二条连接。
func (r *AccountRepository) DeductBalance(ctx context.Context, tx *gorm.DB, ownerKind string, ownerID int64, amount int64) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.Account{}).
		Where("owner_id = ? AND owner_kind = ? AND active = ? AND balance >= ?", ownerID, ownerKind, true, amount).
		Updates(map[string]interface{}{
			"balance": gorm.Expr("balance - ?", amount),
			"version": gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		account, err := r.getByOwner(ctx, tx, ownerKind, ownerID)
		if err != nil {
			return err
		}
		if account.Balance < amount {
			return ErrBalanceNotEnough
		}
		return ErrAccountNotFound
	}

	return nil
}

// DeductServiceCharge 核销待缴服务费（服务费缴纳完成时调用）
// 同样用带守卫条件的单条 UPDATE，保证 service_charge 永远 >= 0
func (r *AccountRepository) DeductServiceCharge(ctx context.Context, tx *gorm.DB, ownerKind string, ownerID int64, amount int64) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.Account{}).
		Where("owner_id = ? AND owner_kind = ? AND active = ? AND service_charge >= ?", ownerID, ownerKind, true, amount).
		Updates(map[string]interface{}{
			"service_charge": gorm.Expr("service_charge - ?", amount),
			"version":        gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		account, err := r.getByOwner(ctx, tx, ownerKind, ownerID)
		if err != nil {
			return err
		}
		if account.ServiceCharge < amount {
			return ErrServiceChargeNotEnough
		}
		return ErrAccountNotFound
	}

	return nil
}

// AddServiceCharge 累加待缴服务费
// 由订单结算等外部协作方调用，不属于交易状态机的路径
func (r *AccountRepository) AddServiceCharge(ctx context.Context, ownerKind string, ownerID int64, amount int64) error {
	if amount < 0 {
		return ErrServiceChargeNegative
	}
	result := r.db.WithContext(ctx).
		Model(&model.Account{}).
		Where("owner_id = ? AND owner_kind = ? AND active = ?", ownerID, ownerKind, true).
		Updates(map[string]interface{}{
			"service_charge": gorm.Expr("service_charge + ?", amount),
			"version":        gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}
