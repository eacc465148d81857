package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"marketledger/internal/model"
	"marketledger/internal/repository"
)

// 场景：余额 100 提现 150，拒绝且不产生任何流水
func TestWithdrawalRejectedWhenInsufficient(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	seedAccount(t, db, model.OwnerKindCustomer, 1001, 100, 0)
	seedBankAccount(t, db, model.OwnerKindCustomer, 1001)

	_, err := svc.RequestWithdrawal(ctx, model.OwnerKindCustomer, 1001, 150)
	if !errors.Is(err, repository.ErrBalanceNotEnough) {
		t.Fatalf("应返回 ErrBalanceNotEnough，实际: %v", err)
	}

	if n := countTransactions(t, db, model.OwnerKindCustomer, 1001, ""); n != 0 {
		t.Fatalf("拒绝的申请不应产生流水，实际 %d 条", n)
	}
	if got := getAccount(t, db, model.OwnerKindCustomer, 1001).Balance; got != 100 {
		t.Fatalf("余额不应变化，实际 %d", got)
	}
}

// 场景：余额 100 提现 40，申请阶段不动余额，完成后余额 60
func TestWithdrawalLifecycle(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	seedAccount(t, db, model.OwnerKindCustomer, 1001, 100, 0)
	seedBankAccount(t, db, model.OwnerKindCustomer, 1001)

	result, err := svc.RequestWithdrawal(ctx, model.OwnerKindCustomer, 1001, 40)
	if err != nil {
		t.Fatalf("提现申请失败: %v", err)
	}
	if result.Amount != 40 {
		t.Fatalf("回执应回显金额 40，实际 %d", result.Amount)
	}
	if result.Status != model.TxStatusProcessing {
		t.Fatalf("申请后状态应为 PROCESSING，实际 %s", result.Status)
	}

	// 申请阶段余额不动
	if got := getAccount(t, db, model.OwnerKindCustomer, 1001).Balance; got != 100 {
		t.Fatalf("申请阶段余额不应变化，实际 %d", got)
	}

	// details 固化了银行快照
	trans := getTransaction(t, db, result.TransactionNo)
	if !strings.Contains(trans.Details, "招商银行") || !strings.Contains(trans.Details, "6214850212345678") {
		t.Fatalf("details 应包含银行快照: %s", trans.Details)
	}
	if trans.PaymentMethod != model.PaymentMethodBankTransfer {
		t.Fatalf("提现支付方式应为 BANK_TRANSFER，实际 %s", trans.PaymentMethod)
	}

	if err := svc.Complete(ctx, model.OwnerKindCustomer, 1001, result.TransactionNo, model.TxTypeWithdrawal); err != nil {
		t.Fatalf("完成交易失败: %v", err)
	}

	trans = getTransaction(t, db, result.TransactionNo)
	if trans.Status != model.TxStatusCompleted {
		t.Fatalf("完成后状态应为 COMPLETED，实际 %s", trans.Status)
	}
	if got := getAccount(t, db, model.OwnerKindCustomer, 1001).Balance; got != 60 {
		t.Fatalf("完成后余额应为 60，实际 %d", got)
	}
}

// 场景：挂起互斥 + 取消后恢复
func TestDepositPendingExclusivity(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	seedAccount(t, db, model.OwnerKindCustomer, 1001, 0, 0)

	tx1, err := svc.RequestDeposit(ctx, model.OwnerKindCustomer, 1001, 50, model.PaymentMethodCard)
	if err != nil {
		t.Fatalf("第一笔充值申请失败: %v", err)
	}

	_, err = svc.RequestDeposit(ctx, model.OwnerKindCustomer, 1001, 20, model.PaymentMethodCard)
	if !errors.Is(err, ErrPendingExists) {
		t.Fatalf("第二笔应被挂起互斥拒绝，实际: %v", err)
	}

	if err := svc.Cancel(ctx, model.OwnerKindCustomer, 1001, tx1.TransactionNo, model.TxTypeDeposit); err != nil {
		t.Fatalf("取消失败: %v", err)
	}
	if got := getTransaction(t, db, tx1.TransactionNo).Status; got != model.TxStatusCancelled {
		t.Fatalf("取消后状态应为 CANCELLED，实际 %s", got)
	}

	// 取消释放了挂起名额，重新申请成功
	if _, err := svc.RequestDeposit(ctx, model.OwnerKindCustomer, 1001, 20, model.PaymentMethodCard); err != nil {
		t.Fatalf("取消后重新申请应成功: %v", err)
	}
}

// 场景：骑手缴清服务费后再申请被拒
func TestServiceChargePaymentLifecycle(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	seedAccount(t, db, model.OwnerKindRider, 2001, 0, 30)

	result, err := svc.RequestServiceChargePayment(ctx, 2001, 30, model.PaymentMethodWallet)
	if err != nil {
		t.Fatalf("服务费缴纳申请失败: %v", err)
	}

	// 申请阶段服务费不动
	if got := getAccount(t, db, model.OwnerKindRider, 2001).ServiceCharge; got != 30 {
		t.Fatalf("申请阶段服务费不应变化，实际 %d", got)
	}

	if err := svc.Complete(ctx, model.OwnerKindRider, 2001, result.TransactionNo, model.TxTypeServiceCharge); err != nil {
		t.Fatalf("完成交易失败: %v", err)
	}
	if got := getAccount(t, db, model.OwnerKindRider, 2001).ServiceCharge; got != 0 {
		t.Fatalf("完成后服务费应为 0，实际 %d", got)
	}

	// 服务费已清零，再申请被拒
	_, err = svc.RequestServiceChargePayment(ctx, 2001, 10, model.PaymentMethodWallet)
	if !errors.Is(err, ErrNoServiceCharge) {
		t.Fatalf("服务费为零时应返回 ErrNoServiceCharge，实际: %v", err)
	}

	// 结算侧重新记债后可以再次缴纳
	if err := svc.AccrueServiceCharge(ctx, 2001, 20); err != nil {
		t.Fatalf("服务费累加失败: %v", err)
	}
	if got := getAccount(t, db, model.OwnerKindRider, 2001).ServiceCharge; got != 20 {
		t.Fatalf("累加后服务费应为 20，实际 %d", got)
	}
	if _, err := svc.RequestServiceChargePayment(ctx, 2001, 20, model.PaymentMethodWallet); err != nil {
		t.Fatalf("重新记债后缴纳申请应成功: %v", err)
	}
}

// 余额守恒：完成的充值和提现按金额累加，取消和处理中的贡献为零
func TestBalanceConservation(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	seedAccount(t, db, model.OwnerKindCustomer, 1001, 100, 0)
	seedBankAccount(t, db, model.OwnerKindCustomer, 1001)

	// 充值 50 完成
	dep1, err := svc.RequestDeposit(ctx, model.OwnerKindCustomer, 1001, 50, model.PaymentMethodCard)
	if err != nil {
		t.Fatalf("充值申请失败: %v", err)
	}
	if err := svc.Complete(ctx, model.OwnerKindCustomer, 1001, dep1.TransactionNo, model.TxTypeDeposit); err != nil {
		t.Fatalf("完成充值失败: %v", err)
	}

	// 充值 70 取消
	dep2, err := svc.RequestDeposit(ctx, model.OwnerKindCustomer, 1001, 70, model.PaymentMethodWallet)
	if err != nil {
		t.Fatalf("充值申请失败: %v", err)
	}
	if err := svc.Cancel(ctx, model.OwnerKindCustomer, 1001, dep2.TransactionNo, model.TxTypeDeposit); err != nil {
		t.Fatalf("取消充值失败: %v", err)
	}

	// 提现 30 完成
	wdr1, err := svc.RequestWithdrawal(ctx, model.OwnerKindCustomer, 1001, 30)
	if err != nil {
		t.Fatalf("提现申请失败: %v", err)
	}
	if err := svc.Complete(ctx, model.OwnerKindCustomer, 1001, wdr1.TransactionNo, model.TxTypeWithdrawal); err != nil {
		t.Fatalf("完成提现失败: %v", err)
	}

	// 提现 10 停在处理中
	if _, err := svc.RequestWithdrawal(ctx, model.OwnerKindCustomer, 1001, 10); err != nil {
		t.Fatalf("提现申请失败: %v", err)
	}

	// 100 + 50 - 30 = 120
	if got := getAccount(t, db, model.OwnerKindCustomer, 1001).Balance; got != 120 {
		t.Fatalf("余额守恒校验失败，期待 120，实际 %d", got)
	}
}

// 终态单调性：终态交易再收口必须失败且无任何副作用
func TestTerminalMonotonicity(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	seedAccount(t, db, model.OwnerKindCustomer, 1001, 0, 0)

	result, err := svc.RequestDeposit(ctx, model.OwnerKindCustomer, 1001, 50, model.PaymentMethodCard)
	if err != nil {
		t.Fatalf("充值申请失败: %v", err)
	}
	if err := svc.Complete(ctx, model.OwnerKindCustomer, 1001, result.TransactionNo, model.TxTypeDeposit); err != nil {
		t.Fatalf("完成充值失败: %v", err)
	}

	// 重复完成：拒绝且不重复入账
	err = svc.Complete(ctx, model.OwnerKindCustomer, 1001, result.TransactionNo, model.TxTypeDeposit)
	if !errors.Is(err, repository.ErrTransactionStatusInvalid) {
		t.Fatalf("重复完成应返回状态冲突，实际: %v", err)
	}
	if got := getAccount(t, db, model.OwnerKindCustomer, 1001).Balance; got != 50 {
		t.Fatalf("重复完成不应二次入账，余额应为 50，实际 %d", got)
	}

	// 完成后再取消：同样拒绝
	err = svc.Cancel(ctx, model.OwnerKindCustomer, 1001, result.TransactionNo, model.TxTypeDeposit)
	if !errors.Is(err, repository.ErrTransactionStatusInvalid) {
		t.Fatalf("终态交易取消应返回状态冲突，实际: %v", err)
	}
	if got := getTransaction(t, db, result.TransactionNo).Status; got != model.TxStatusCompleted {
		t.Fatalf("状态不应被改写，实际 %s", got)
	}
}

// 原子性：完成阶段记账失败时状态必须回滚到 PROCESSING
func TestCompleteRollbackOnGuardFailure(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	seedAccount(t, db, model.OwnerKindCustomer, 1001, 100, 0)
	seedBankAccount(t, db, model.OwnerKindCustomer, 1001)

	result, err := svc.RequestWithdrawal(ctx, model.OwnerKindCustomer, 1001, 80)
	if err != nil {
		t.Fatalf("提现申请失败: %v", err)
	}

	// 模拟申请之后、完成之前余额被外部消耗（并发超卖场景）
	err = db.Model(&model.Account{}).
		Where("owner_id = ? AND owner_kind = ?", int64(1001), model.OwnerKindCustomer).
		Update("balance", 50).Error
	if err != nil {
		t.Fatalf("修改余额失败: %v", err)
	}

	err = svc.Complete(ctx, model.OwnerKindCustomer, 1001, result.TransactionNo, model.TxTypeWithdrawal)
	if !errors.Is(err, repository.ErrBalanceNotEnough) {
		t.Fatalf("余额不足时完成应失败，实际: %v", err)
	}

	// 状态流转必须和记账一起回滚，不存在"已完成但没扣款"
	if got := getTransaction(t, db, result.TransactionNo).Status; got != model.TxStatusProcessing {
		t.Fatalf("完成失败后状态应回滚为 PROCESSING，实际 %s", got)
	}
	if got := getAccount(t, db, model.OwnerKindCustomer, 1001).Balance; got != 50 {
		t.Fatalf("完成失败后余额不应变化，实际 %d", got)
	}
}

// 并发申请：同归属方同类型任意并发下最多一笔处理中交易
func TestConcurrentRequestsSinglePending(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	seedAccount(t, db, model.OwnerKindCustomer, 1001, 0, 0)

	const workers = 5
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.RequestDeposit(ctx, model.OwnerKindCustomer, 1001, 50, model.PaymentMethodCard)
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Fatalf("并发申请应恰好一笔成功，实际 %d", successes)
	}
	if n := countTransactions(t, db, model.OwnerKindCustomer, 1001, model.TxStatusProcessing); n != 1 {
		t.Fatalf("处理中交易应恰好一笔，实际 %d", n)
	}
}

// 账户不存在时一律拒绝
func TestRequestUnknownAccount(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.RequestDeposit(ctx, model.OwnerKindCustomer, 9999, 50, model.PaymentMethodCard)
	if !errors.Is(err, repository.ErrAccountNotFound) {
		t.Fatalf("应返回 ErrAccountNotFound，实际: %v", err)
	}

	_, err = svc.RequestDeposit(ctx, "MERCHANT", 1001, 50, model.PaymentMethodCard)
	if !errors.Is(err, ErrInvalidOwnerKind) {
		t.Fatalf("非法归属方类型应返回 ErrInvalidOwnerKind，实际: %v", err)
	}
}

// 提现缺少默认银行账户时拒绝
func TestWithdrawalWithoutDefaultBank(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	seedAccount(t, db, model.OwnerKindCustomer, 1001, 100, 0)

	_, err := svc.RequestWithdrawal(ctx, model.OwnerKindCustomer, 1001, 50)
	if !errors.Is(err, repository.ErrBankAccountNotFound) {
		t.Fatalf("应返回 ErrBankAccountNotFound，实际: %v", err)
	}
}

// 每次生命周期变化都落一条通知消息，且通知和业务数据同事务
func TestOutboxEvents(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	seedAccount(t, db, model.OwnerKindCustomer, 1001, 0, 0)

	result, err := svc.RequestDeposit(ctx, model.OwnerKindCustomer, 1001, 50, model.PaymentMethodCard)
	if err != nil {
		t.Fatalf("充值申请失败: %v", err)
	}
	if n := countOutbox(t, db); n != 1 {
		t.Fatalf("申请后应有 1 条通知消息，实际 %d", n)
	}

	if err := svc.Complete(ctx, model.OwnerKindCustomer, 1001, result.TransactionNo, model.TxTypeDeposit); err != nil {
		t.Fatalf("完成充值失败: %v", err)
	}
	if n := countOutbox(t, db); n != 2 {
		t.Fatalf("完成后应有 2 条通知消息，实际 %d", n)
	}

	var msg model.OutboxMessage
	if err := db.Order("id DESC").First(&msg).Error; err != nil {
		t.Fatalf("查询消息失败: %v", err)
	}
	if msg.Topic != "ledger_events" || msg.MessageKey != result.TransactionNo {
		t.Fatalf("消息应按流水号写入 ledger_events，实际 topic=%s key=%s", msg.Topic, msg.MessageKey)
	}
	if !strings.Contains(msg.Payload, model.EventTransactionCompleted) {
		t.Fatalf("完成事件 payload 不正确: %s", msg.Payload)
	}
}

// 流水隐藏开关不影响交易状态，只影响历史列表
func TestHideAndRestoreTransaction(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	seedAccount(t, db, model.OwnerKindCustomer, 1001, 0, 0)

	result, err := svc.RequestDeposit(ctx, model.OwnerKindCustomer, 1001, 50, model.PaymentMethodCard)
	if err != nil {
		t.Fatalf("充值申请失败: %v", err)
	}

	list, total, err := svc.ListTransactions(ctx, model.OwnerKindCustomer, 1001, 1, 10)
	if err != nil {
		t.Fatalf("查询历史失败: %v", err)
	}
	if total != 1 || len(list) != 1 {
		t.Fatalf("历史应有 1 条记录，实际 total=%d len=%d", total, len(list))
	}

	if err := svc.HideTransaction(ctx, model.OwnerKindCustomer, 1001, result.TransactionNo); err != nil {
		t.Fatalf("隐藏失败: %v", err)
	}
	_, total, err = svc.ListTransactions(ctx, model.OwnerKindCustomer, 1001, 1, 10)
	if err != nil {
		t.Fatalf("查询历史失败: %v", err)
	}
	if total != 0 {
		t.Fatalf("隐藏后历史应为空，实际 total=%d", total)
	}

	// 隐藏不影响状态，交易仍可正常完成
	if err := svc.Complete(ctx, model.OwnerKindCustomer, 1001, result.TransactionNo, model.TxTypeDeposit); err != nil {
		t.Fatalf("隐藏的交易应仍可完成: %v", err)
	}

	if err := svc.RestoreTransaction(ctx, model.OwnerKindCustomer, 1001, result.TransactionNo); err != nil {
		t.Fatalf("恢复展示失败: %v", err)
	}
	_, total, err = svc.ListTransactions(ctx, model.OwnerKindCustomer, 1001, 1, 10)
	if err != nil {
		t.Fatalf("查询历史失败: %v", err)
	}
	if total != 1 {
		t.Fatalf("恢复后历史应有 1 条记录，实际 total=%d", total)
	}
}

// 收口接口校验 (流水号, 归属方, 类型) 三元组
func TestCloseValidatesOwnerAndType(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	seedAccount(t, db, model.OwnerKindCustomer, 1001, 0, 0)

	result, err := svc.RequestDeposit(ctx, model.OwnerKindCustomer, 1001, 50, model.PaymentMethodCard)
	if err != nil {
		t.Fatalf("充值申请失败: %v", err)
	}

	// 别人的流水号
	err = svc.Cancel(ctx, model.OwnerKindCustomer, 1002, result.TransactionNo, model.TxTypeDeposit)
	if !errors.Is(err, repository.ErrTransactionNotFound) {
		t.Fatalf("归属方不匹配应返回 ErrTransactionNotFound，实际: %v", err)
	}

	// 类型不匹配
	err = svc.Complete(ctx, model.OwnerKindCustomer, 1001, result.TransactionNo, model.TxTypeWithdrawal)
	if !errors.Is(err, repository.ErrTransactionNotFound) {
		t.Fatalf("类型不匹配应返回 ErrTransactionNotFound，实际: %v", err)
	}

	// 非法类型
	err = svc.Cancel(ctx, model.OwnerKindCustomer, 1001, result.TransactionNo, "NO_SUCH_TYPE")
	if !errors.Is(err, ErrInvalidTxType) {
		t.Fatalf("非法类型应返回 ErrInvalidTxType，实际: %v", err)
	}
}
