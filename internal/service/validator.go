package service

import (
	"context"
	"fmt"
	"strings"

	"marketledger/internal/model"
	"marketledger/internal/repository"
)

// 交易类型的展示名，拼进拒绝原因里
var txTypeNames = map[string]string{
	model.TxTypeDeposit:       "充值",
	model.TxTypeWithdrawal:    "提现",
	model.TxTypeServiceCharge: "服务费缴纳",
}

// RequestValidator 申请校验器
// 纯咨询性质的闸门：只读不写，校验结论由状态机消费。
// 状态机保证调用发生在归属方级别的锁内，这里的"查挂起 + 查余额"
// 才不会构成 check-then-act 竞态
type RequestValidator struct {
	transactionRepo *repository.TransactionRepository
	threshold       *ThresholdPolicy
}

func NewRequestValidator(transactionRepo *repository.TransactionRepository, threshold *ThresholdPolicy) *RequestValidator {
	return &RequestValidator{
		transactionRepo: transactionRepo,
		threshold:       threshold,
	}
}

// Validate 在交易记录产生之前执行全部前置校验
func (v *RequestValidator) Validate(ctx context.Context, account *model.Account, txType string, amount int64, method string) error {
	if amount <= 0 {
		return fmt.Errorf("%w: 金额必须为正数", ErrInvalidAmount)
	}

	allowed, ok := model.AllowedPaymentMethods[txType]
	if !ok {
		return fmt.Errorf("%w: %s", ErrInvalidTxType, txType)
	}
	if !model.PaymentMethodAllowed(txType, method) {
		return fmt.Errorf("%w: %s 不可用，可选方式为 %s", ErrInvalidPaymentMethod, method, strings.Join(allowed, "/"))
	}

	// 挂起互斥：同归属方同类型最多一笔处理中的交易
	//
	// 【关键点】必须用 len == 0 判定"没有挂起交易"。
	// 查询返回的是切片，空切片不是 nil 也不是"有记录"——
	// 老系统把空结果当真值用，互斥校验等于没开
	pending, err := v.transactionRepo.ListPending(ctx, account.OwnerKind, account.OwnerID, txType)
	if err != nil {
		return fmt.Errorf("查询挂起交易失败: %w", err)
	}
	if len(pending) > 0 {
		return fmt.Errorf("%w: 存在处理中的%s交易，请先完成或取消", ErrPendingExists, txTypeNames[txType])
	}

	switch txType {
	case model.TxTypeDeposit:
		// 充值没有额外前置条件

	case model.TxTypeWithdrawal:
		if amount > account.Balance {
			return fmt.Errorf("%w: 申请金额 %d 超过可用余额 %d", repository.ErrBalanceNotEnough, amount, account.Balance)
		}
		if max := v.threshold.MaxOutstandingCharge(ctx); account.ServiceCharge >= max {
			return fmt.Errorf("%w: 请先缴清待缴服务费（当前 %d，上限 %d）", ErrThresholdExceeded, account.ServiceCharge, max)
		}

	case model.TxTypeServiceCharge:
		if account.OwnerKind != model.OwnerKindRider {
			return fmt.Errorf("%w: 仅骑手账户可缴纳服务费", ErrOwnerKindNotAllowed)
		}
		if account.ServiceCharge == 0 {
			return ErrNoServiceCharge
		}
		if amount > account.ServiceCharge {
			return fmt.Errorf("%w: 申请金额 %d 超过待缴服务费 %d", repository.ErrServiceChargeNotEnough, amount, account.ServiceCharge)
		}
	}

	return nil
}
