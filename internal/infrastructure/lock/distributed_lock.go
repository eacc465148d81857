package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ============================================================================
// 分布式锁实现
// ============================================================================
//
// 【为什么需要分布式锁？】
//
// 场景：同一归属方并发发起两笔同类型申请（网络抖动导致重复提交）
//
// 如果没有锁，"查挂起交易 + 插入新交易"是两步：
//   goroutine1: 查到没有挂起的提现 -> 插入提现A
//   goroutine2: 查到没有挂起的提现 -> 插入提现B   同类型出现两笔挂起！
//
// 余额校验同理：两笔提现都按申请时的余额通过校验，合计却超出余额。
//
// 按 (归属方, 交易类型) 加锁后，"校验 + 插入"整体串行化：
//   goroutine1: 获取锁 -> 校验通过 -> 插入 -> 释放锁
//   goroutine2: 等锁 -> 校验发现已有挂起交易 -> 拒绝
//
// 【Redis 分布式锁原理】
//
// 加锁：SET key value NX EX timeout
//   - NX: 只有 key 不存在时才设置（保证互斥）
//   - EX: 设置过期时间（防止死锁）
//   - value: 锁持有者标识（释放时验证，防止误删别人的锁）
//
// 释放锁：使用 Lua 脚本保证"检查+删除"的原子性
//
// ============================================================================

var ErrLockFailed = errors.New("获取分布式锁失败")

// DistributedLock 分布式锁
type DistributedLock struct {
	client     *redis.Client
	key        string        // 锁的 key
	value      string        // 锁的 value（用于验证锁的持有者）
	expiration time.Duration // 锁的过期时间
}

// NewDistributedLock 创建分布式锁
func NewDistributedLock(client *redis.Client, key, value string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		value:      value,
		expiration: expiration,
	}
}

// TryLock 尝试获取锁（非阻塞）
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	success, err := l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
	if err != nil {
		return false, err
	}
	return success, nil
}

// Lock 阻塞式获取锁（带重试）
func (l *DistributedLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		success, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if success {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
			// 继续重试
		}
	}
	return ErrLockFailed
}

// Unlock 释放锁
//
// 【关键点】只有 value 匹配才删除：
// A 持有锁超时自动过期后 B 拿到了锁，A 迟到的 Unlock 不能把 B 的锁删掉
func (l *DistributedLock) Unlock(ctx context.Context) error {
	script := `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`
	_, err := l.client.Eval(ctx, script, []string{l.key}, l.value).Result()
	return err
}

// ============================================================================
// 便捷函数：账本申请锁
// ============================================================================

// NewRequestLock 创建申请锁（按归属方 + 交易类型维度）
//
// 锁粒度选择 (owner_kind, owner_id, type)：
// 不同归属方完全并行，同一归属方的充值和提现也互不阻塞，
// 只有同一归属方同一类型的申请被串行化
func NewRequestLock(client *redis.Client, ownerKind string, ownerID int64, txType, holder string) *DistributedLock {
	key := fmt.Sprintf("ledger:lock:%s:%d:%s", ownerKind, ownerID, txType)
	return NewDistributedLock(client, key, holder, 30*time.Second)
}
