package credit

import (
	"context"
	"errors"
	"testing"

	"adcraft-api/internal/domain/entity"
	"adcraft-api/internal/domain/repository"
	apperrors "adcraft-api/pkg/errors"
)

type memTenantRepo struct {
	tenants map[string]*entity.Tenant
	adjusts int
}

func newMemTenantRepo(id string, balance int) *memTenantRepo {
	return &memTenantRepo{tenants: map[string]*entity.Tenant{
		id: {ID: id, CreditBalance: balance},
	}}
}

func (r *memTenantRepo) Create(ctx context.Context, tenant *entity.Tenant) error {
	r.tenants[tenant.ID] = tenant
	return nil
}

func (r *memTenantRepo) GetByID(ctx context.Context, id string) (*entity.Tenant, error) {
	return r.tenants[id], nil
}

func (r *memTenantRepo) GetBySlug(ctx context.Context, slug string) (*entity.Tenant, error) {
	for _, t := range r.tenants {
		if t.Slug == slug {
			return t, nil
		}
	}
	return nil, nil
}

func (r *memTenantRepo) Update(ctx context.Context, tenant *entity.Tenant) error {
	r.tenants[tenant.ID] = tenant
	return nil
}

func (r *memTenantRepo) AdjustCredits(ctx context.Context, id string, delta int) (int, error) {
	r.adjusts++
	tenant, ok := r.tenants[id]
	if !ok {
		return 0, apperrors.ErrTenantNotFound
	}
	if tenant.CreditBalance+delta < 0 {
		return 0, apperrors.ErrCreditInsufficient
	}
	tenant.CreditBalance += delta
	return tenant.CreditBalance, nil
}

type memCreditRepo struct {
	entries []*entity.CreditLedgerEntry
}

func (r *memCreditRepo) Create(ctx context.Context, entry *entity.CreditLedgerEntry) error {
	r.entries = append(r.entries, entry)
	return nil
}

func (r *memCreditRepo) GetByRunID(ctx context.Context, runID string) (*entity.CreditLedgerEntry, error) {
	for _, e := range r.entries {
		if e.RunID == runID {
			return e, nil
		}
	}
	return nil, nil
}

func (r *memCreditRepo) ListByTenant(ctx context.Context, tenantID string, pagination repository.Pagination) (*repository.PagedResult[*entity.CreditLedgerEntry], error) {
	var items []*entity.CreditLedgerEntry
	for _, e := range r.entries {
		if e.TenantID == tenantID {
			items = append(items, e)
		}
	}
	return repository.NewPagedResult(items, int64(len(items)), pagination), nil
}

type passTx struct{}

func (t *passTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type recordingCache struct {
	balances     map[string]int
	invalidated  []string
	loaderCalls  int
}

func (c *recordingCache) GetTenantBalance(ctx context.Context, tenantID string, loader func() (int, error)) (int, error) {
	if v, ok := c.balances[tenantID]; ok {
		return v, nil
	}
	c.loaderCalls++
	return loader()
}

func (c *recordingCache) InvalidateTenant(ctx context.Context, tenantID string) error {
	c.invalidated = append(c.invalidated, tenantID)
	return nil
}

func TestDeductForRun_IsIdempotent(t *testing.T) {
	tenants := newMemTenantRepo("tenant-1", 10)
	ledger := &memCreditRepo{}
	svc := NewService(tenants, ledger, &passTx{}, nil)
	ctx := context.Background()

	if err := svc.DeductForRun(ctx, "tenant-1", "run-1", entity.TierFinal, 5); err != nil {
		t.Fatalf("DeductForRun returned error: %v", err)
	}
	// 回调重放触发的重复扣费是无操作
	if err := svc.DeductForRun(ctx, "tenant-1", "run-1", entity.TierFinal, 5); err != nil {
		t.Fatalf("replayed DeductForRun returned error: %v", err)
	}

	if got := tenants.tenants["tenant-1"].CreditBalance; got != 5 {
		t.Fatalf("balance = %d, want 5 after a single deduction", got)
	}
	if len(ledger.entries) != 1 {
		t.Fatalf("ledger entries = %d, want 1", len(ledger.entries))
	}
	entry := ledger.entries[0]
	if entry.Type != entity.CreditEntryDeduct || entry.Amount != 5 || entry.BalanceAfter != 5 {
		t.Fatalf("unexpected ledger entry: %+v", entry)
	}
	if entry.Reason != "render final" {
		t.Fatalf("reason = %q, want render final", entry.Reason)
	}
}

func TestDeductForRun_InsufficientBalance(t *testing.T) {
	tenants := newMemTenantRepo("tenant-1", 3)
	ledger := &memCreditRepo{}
	svc := NewService(tenants, ledger, &passTx{}, nil)

	err := svc.DeductForRun(context.Background(), "tenant-1", "run-1", entity.TierFinal, 5)
	if !errors.Is(err, apperrors.ErrCreditInsufficient) {
		t.Fatalf("err = %v, want ErrCreditInsufficient", err)
	}
	if len(ledger.entries) != 0 {
		t.Fatal("failed deduction must not write a ledger entry")
	}
}

func TestDeductForRun_ZeroAmountIsNoop(t *testing.T) {
	tenants := newMemTenantRepo("tenant-1", 3)
	svc := NewService(tenants, &memCreditRepo{}, &passTx{}, nil)

	if err := svc.DeductForRun(context.Background(), "tenant-1", "run-1", entity.TierPreview, 0); err != nil {
		t.Fatalf("DeductForRun returned error: %v", err)
	}
	if tenants.adjusts != 0 {
		t.Fatal("zero amount must not touch the tenant balance")
	}
}

func TestGrant_WritesLedgerAndInvalidatesCache(t *testing.T) {
	tenants := newMemTenantRepo("tenant-1", 0)
	ledger := &memCreditRepo{}
	cache := &recordingCache{balances: map[string]int{}}
	svc := NewService(tenants, ledger, &passTx{}, cache)

	if err := svc.Grant(context.Background(), "tenant-1", 100, "signup bonus"); err != nil {
		t.Fatalf("Grant returned error: %v", err)
	}
	if got := tenants.tenants["tenant-1"].CreditBalance; got != 100 {
		t.Fatalf("balance = %d, want 100", got)
	}
	if len(ledger.entries) != 1 || ledger.entries[0].Type != entity.CreditEntryGrant {
		t.Fatalf("unexpected ledger state: %+v", ledger.entries)
	}
	if len(cache.invalidated) != 1 || cache.invalidated[0] != "tenant-1" {
		t.Fatalf("cache invalidations = %v, want [tenant-1]", cache.invalidated)
	}
}

func TestBalance_PrefersCache(t *testing.T) {
	tenants := newMemTenantRepo("tenant-1", 40)
	cache := &recordingCache{balances: map[string]int{"tenant-1": 75}}
	svc := NewService(tenants, &memCreditRepo{}, &passTx{}, cache)

	got, err := svc.Balance(context.Background(), "tenant-1")
	if err != nil {
		t.Fatalf("Balance returned error: %v", err)
	}
	if got != 75 {
		t.Fatalf("balance = %d, want cached 75", got)
	}
	if cache.loaderCalls != 0 {
		t.Fatal("cache hit must not call the loader")
	}
}

func TestBalance_CacheMissLoadsFromRepo(t *testing.T) {
	tenants := newMemTenantRepo("tenant-1", 40)
	cache := &recordingCache{balances: map[string]int{}}
	svc := NewService(tenants, &memCreditRepo{}, &passTx{}, cache)

	got, err := svc.Balance(context.Background(), "tenant-1")
	if err != nil {
		t.Fatalf("Balance returned error: %v", err)
	}
	if got != 40 || cache.loaderCalls != 1 {
		t.Fatalf("balance = %d loaderCalls = %d, want 40/1", got, cache.loaderCalls)
	}
}

func TestBalance_UnknownTenant(t *testing.T) {
	svc := NewService(newMemTenantRepo("tenant-1", 40), &memCreditRepo{}, &passTx{}, nil)

	_, err := svc.Balance(context.Background(), "ghost")
	if !errors.Is(err, apperrors.ErrTenantNotFound) {
		t.Fatalf("err = %v, want ErrTenantNotFound", err)
	}
}

func TestHistory_ScopedToTenant(t *testing.T) {
	ledger := &memCreditRepo{entries: []*entity.CreditLedgerEntry{
		{ID: "e1", TenantID: "tenant-1", Type: entity.CreditEntryGrant, Amount: 10},
		{ID: "e2", TenantID: "tenant-2", Type: entity.CreditEntryGrant, Amount: 20},
		{ID: "e3", TenantID: "tenant-1", Type: entity.CreditEntryDeduct, Amount: 1},
	}}
	svc := NewService(newMemTenantRepo("tenant-1", 0), ledger, &passTx{}, nil)

	result, err := svc.History(context.Background(), "tenant-1", repository.NewPagination(1, 20))
	if err != nil {
		t.Fatalf("History returned error: %v", err)
	}
	if len(result.Items) != 2 {
		t.Fatalf("items = %d, want 2 entries for tenant-1", len(result.Items))
	}
}
