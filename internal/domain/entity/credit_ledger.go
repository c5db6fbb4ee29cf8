package entity

import (
	"time"
)

// CreditEntryType 积分流水类型
type CreditEntryType string

const (
	CreditEntryDeduct CreditEntryType = "deduct"
	CreditEntryGrant  CreditEntryType = "grant"
	CreditEntryRefund CreditEntryType = "refund"
)

// CreditLedgerEntry 租户积分流水
// 扣费以 RunID 为幂等键，同一次渲染执行至多产生一条扣费记录
type CreditLedgerEntry struct {
	ID       string          `json:"id" gorm:"primaryKey"`
	TenantID string          `json:"tenant_id" gorm:"index"`
	Type     CreditEntryType `json:"type"`
	// Amount 正数，方向由 Type 决定
	Amount int    `json:"amount"`
	RunID  string `json:"run_id,omitempty" gorm:"uniqueIndex:idx_credit_run,where:run_id <> ''"`
	Reason string `json:"reason,omitempty"`
	// BalanceAfter 记账后的租户余额快照
	BalanceAfter int       `json:"balance_after"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableName 指定表名
func (CreditLedgerEntry) TableName() string {
	return "credit_ledger"
}

// Delta 返回带符号的余额变化量
func (e *CreditLedgerEntry) Delta() int {
	if e.Type == CreditEntryDeduct {
		return -e.Amount
	}
	return e.Amount
}
