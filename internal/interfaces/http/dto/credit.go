package dto

import (
	"time"

	"adcraft-api/internal/domain/entity"
)

// BalanceResponse 积分余额响应
type BalanceResponse struct {
	TenantID string `json:"tenant_id"`
	Balance  int    `json:"balance"`
}

// GrantCreditsRequest 积分发放请求
type GrantCreditsRequest struct {
	Amount int    `json:"amount" binding:"required,gt=0"`
	Reason string `json:"reason" binding:"required,max=255"`
}

// LedgerEntryResponse 积分流水响应
type LedgerEntryResponse struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	Amount       int       `json:"amount"`
	RunID        string    `json:"run_id,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	BalanceAfter int       `json:"balance_after"`
	CreatedAt    time.Time `json:"created_at"`
}

// ToLedgerEntryResponse 转换积分流水为响应
func ToLedgerEntryResponse(e *entity.CreditLedgerEntry) *LedgerEntryResponse {
	return &LedgerEntryResponse{
		ID:           e.ID,
		Type:         string(e.Type),
		Amount:       e.Amount,
		RunID:        e.RunID,
		Reason:       e.Reason,
		BalanceAfter: e.BalanceAfter,
		CreatedAt:    e.CreatedAt,
	}
}

// LedgerListResponse 积分流水列表响应
type LedgerListResponse struct {
	Entries []*LedgerEntryResponse `json:"entries"`
}

// ToLedgerListResponse 转换积分流水列表
func ToLedgerListResponse(entries []*entity.CreditLedgerEntry) *LedgerListResponse {
	items := make([]*LedgerEntryResponse, 0, len(entries))
	for _, e := range entries {
		items = append(items, ToLedgerEntryResponse(e))
	}
	return &LedgerListResponse{Entries: items}
}
