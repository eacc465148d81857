package repository

import (
	"context"
	"errors"

	"marketledger/internal/model"

	"gorm.io/gorm"
)

var ErrBankAccountNotFound = errors.New("默认银行账户不存在")

// BankAccountRepository 银行账户只读仓储
// 账本只关心一件事：提现时归属方的默认到账银行是哪个
type BankAccountRepository struct {
	db *gorm.DB
}

func NewBankAccountRepository(db *gorm.DB) *BankAccountRepository {
	return &BankAccountRepository{db: db}
}

func (r *BankAccountRepository) GetDefaultByOwner(ctx context.Context, ownerKind string, ownerID int64) (*model.BankAccount, error) {
	var bank model.BankAccount
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND owner_kind = ? AND is_default = ? AND active = ?",
			ownerID, ownerKind, true, true).
		First(&bank).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBankAccountNotFound
		}
		return nil, err
	}
	return &bank, nil
}
