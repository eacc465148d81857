package service

import (
	"context"
	"errors"
	"log"
	"strconv"
	"sync"
	"time"

	"marketledger/internal/config"
	"marketledger/internal/model"
	"marketledger/internal/repository"

	"gorm.io/gorm"
)

// ThresholdPolicy 阈值策略
// 提现阈值由运营在 criteria 表维护，读取路径统一收口到这里：
// 带 TTL 的本地缓存 + 配置兜底值，避免每次校验都打一次数据库
type ThresholdPolicy struct {
	criteriaRepo *repository.CriteriaRepository
	defaultMax   int64
	ttl          time.Duration

	mu        sync.Mutex
	cached    int64
	expiresAt time.Time
}

func NewThresholdPolicy(db *gorm.DB, cfg *config.Config) *ThresholdPolicy {
	return &ThresholdPolicy{
		criteriaRepo: repository.NewCriteriaRepository(db),
		defaultMax:   cfg.Ledger.DefaultMaxServiceChargeDebt,
		ttl:          time.Duration(cfg.Ledger.ThresholdCacheSeconds) * time.Second,
	}
}

// MaxOutstandingCharge 返回待缴服务费上限
// 配置读不到或解析失败时落到兜底值，阈值查询永远不会让申请报错
func (p *ThresholdPolicy) MaxOutstandingCharge(ctx context.Context) int64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	if time.Now().Before(p.expiresAt) {
		return p.cached
	}

	max := p.defaultMax
	value, err := p.criteriaRepo.GetValue(ctx, model.CriteriaKeyMaxServiceChargeDebt)
	if err != nil {
		if !errors.Is(err, repository.ErrCriteriaNotFound) {
			log.Printf("[ThresholdPolicy] 读取配置失败，使用兜底值 %d: %v", max, err)
		}
	} else {
		parsed, perr := strconv.ParseInt(value, 10, 64)
		if perr != nil {
			log.Printf("[ThresholdPolicy] 配置值解析失败，使用兜底值 %d: key=%s, value=%s", max, model.CriteriaKeyMaxServiceChargeDebt, value)
		} else {
			max = parsed
		}
	}

	p.cached = max
	p.expiresAt = time.Now().Add(p.ttl)
	return max
}

// Refresh 使缓存立即失效，下次读取重新查库
func (p *ThresholdPolicy) Refresh() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expiresAt = time.Time{}
}
