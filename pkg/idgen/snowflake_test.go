package idgen

import (
	"strings"
	"testing"

	"marketledger/internal/model"
)

func TestGenerateTransactionNoPrefix(t *testing.T) {
	cases := map[string]string{
		model.TxTypeDeposit:       "DEP",
		model.TxTypeWithdrawal:    "WDR",
		model.TxTypeServiceCharge: "SCP",
	}
	for txType, prefix := range cases {
		txNo := GenerateTransactionNo(txType)
		if !strings.HasPrefix(txNo, prefix) {
			t.Fatalf("类型 %s 的流水号应以 %s 开头，实际: %s", txType, prefix, txNo)
		}
	}

	// 未知类型落到通用前缀
	if txNo := GenerateTransactionNo("NO_SUCH_TYPE"); !strings.HasPrefix(txNo, "TXN") {
		t.Fatalf("未知类型应以 TXN 开头，实际: %s", txNo)
	}
}

func TestGenerateTransactionNoUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		txNo := GenerateTransactionNo(model.TxTypeDeposit)
		if seen[txNo] {
			t.Fatalf("流水号重复: %s", txNo)
		}
		seen[txNo] = true
	}
}
