package service

import "errors"

// 校验类业务错误
// 资金不足 / 交易状态类的哨兵错误定义在 repository 包，这里只补齐
// 状态机入口自己产生的那部分
var (
	ErrInvalidAmount        = errors.New("金额不合法")
	ErrInvalidPaymentMethod = errors.New("支付方式不支持")
	ErrInvalidTxType        = errors.New("交易类型不合法")
	ErrInvalidOwnerKind     = errors.New("归属方类型不合法")
	ErrOwnerKindNotAllowed  = errors.New("该归属方不允许此操作")
	ErrPendingExists        = errors.New("存在处理中的交易")
	ErrNoServiceCharge      = errors.New("当前没有待缴服务费")
	ErrThresholdExceeded    = errors.New("待缴服务费超过上限")
)
