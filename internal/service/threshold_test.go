package service

import (
	"context"
	"testing"

	"marketledger/internal/model"
)

func TestThresholdDefaultWhenCriteriaMissing(t *testing.T) {
	db := newTestDB(t)
	policy := NewThresholdPolicy(db, newTestConfig())

	if got := policy.MaxOutstandingCharge(context.Background()); got != 5000 {
		t.Fatalf("无配置时应返回兜底值 5000，实际 %d", got)
	}
}

func TestThresholdReadsCriteria(t *testing.T) {
	db := newTestDB(t)
	if err := db.Create(&model.Criteria{Key: model.CriteriaKeyMaxServiceChargeDebt, Value: "300"}).Error; err != nil {
		t.Fatalf("插入配置失败: %v", err)
	}

	policy := NewThresholdPolicy(db, newTestConfig())
	if got := policy.MaxOutstandingCharge(context.Background()); got != 300 {
		t.Fatalf("应读取 criteria 配置 300，实际 %d", got)
	}
}

func TestThresholdCacheAndRefresh(t *testing.T) {
	db := newTestDB(t)
	if err := db.Create(&model.Criteria{Key: model.CriteriaKeyMaxServiceChargeDebt, Value: "300"}).Error; err != nil {
		t.Fatalf("插入配置失败: %v", err)
	}

	policy := NewThresholdPolicy(db, newTestConfig())
	ctx := context.Background()

	if got := policy.MaxOutstandingCharge(ctx); got != 300 {
		t.Fatalf("首次读取应为 300，实际 %d", got)
	}

	// 运营改配置后，TTL 内仍返回缓存值
	err := db.Model(&model.Criteria{}).
		Where("`key` = ?", model.CriteriaKeyMaxServiceChargeDebt).
		Update("value", "800").Error
	if err != nil {
		t.Fatalf("更新配置失败: %v", err)
	}

	if got := policy.MaxOutstandingCharge(ctx); got != 300 {
		t.Fatalf("TTL 内应返回缓存值 300，实际 %d", got)
	}

	// 显式刷新后立即生效
	policy.Refresh()
	if got := policy.MaxOutstandingCharge(ctx); got != 800 {
		t.Fatalf("刷新后应返回 800，实际 %d", got)
	}
}

func TestThresholdFallbackOnBadValue(t *testing.T) {
	db := newTestDB(t)
	if err := db.Create(&model.Criteria{Key: model.CriteriaKeyMaxServiceChargeDebt, Value: "not-a-number"}).Error; err != nil {
		t.Fatalf("插入配置失败: %v", err)
	}

	policy := NewThresholdPolicy(db, newTestConfig())
	if got := policy.MaxOutstandingCharge(context.Background()); got != 5000 {
		t.Fatalf("配置值非法时应落到兜底值 5000，实际 %d", got)
	}
}
