package app

import (
	"context"
	"errors"
	"testing"

	"github.com/ToyinB/batchpay/internal/domain"
)

func TestAdminOperations_RejectNonAdminCaller(t *testing.T) {
	svc, _, _, _ := newTestService(t,
		domain.EngineConfig{TreasuryAccount: "treasury"},
		map[string]int64{"custodial": 1000},
	)
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
	}{
		{"set operational", func() error { return svc.SetOperational(ctx, "mallory", false) }},
		{"set fee rate", func() error { return svc.SetFeeRate(ctx, "mallory", 10) }},
		{"set treasury", func() error { return svc.SetTreasury(ctx, "mallory", "new-treasury") }},
		{"restrict", func() error { return svc.Restrict(ctx, "mallory", "bob") }},
		{"unrestrict", func() error { return svc.Unrestrict(ctx, "mallory", "bob") }},
		{"grant privilege", func() error { return svc.GrantUnlimitedPrivilege(ctx, "mallory", "bob") }},
		{"emergency withdraw", func() error { return svc.EmergencyWithdraw(ctx, "mallory", 100) }},
		{"empty caller", func() error { return svc.SetOperational(ctx, "", false) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !errors.Is(err, ErrUnauthorized) {
				t.Fatalf("expected ErrUnauthorized, got %v", err)
			}
		})
	}
}

func TestSetOperational_PausesAndResumes(t *testing.T) {
	svc, repo, _, _ := newTestService(t,
		domain.EngineConfig{TreasuryAccount: "treasury"},
		map[string]int64{"alice": 1000},
	)
	ctx := context.Background()

	if err := svc.SetOperational(ctx, "admin", false); err != nil {
		t.Fatalf("SetOperational(false) returned error: %v", err)
	}
	cfg, err := repo.GetEngineConfig(ctx)
	if err != nil {
		t.Fatalf("GetEngineConfig returned error: %v", err)
	}
	if !cfg.Paused {
		t.Fatalf("expected engine paused")
	}

	// Pausing an already-paused engine is idempotent.
	if err := svc.SetOperational(ctx, "admin", false); err != nil {
		t.Fatalf("repeated SetOperational(false) returned error: %v", err)
	}

	if err := svc.SetOperational(ctx, "admin", true); err != nil {
		t.Fatalf("SetOperational(true) returned error: %v", err)
	}
	cfg, err = repo.GetEngineConfig(ctx)
	if err != nil {
		t.Fatalf("GetEngineConfig returned error: %v", err)
	}
	if cfg.Paused {
		t.Fatalf("expected engine resumed")
	}
}

func TestSetFeeRate_Bounds(t *testing.T) {
	svc, repo, _, _ := newTestService(t,
		domain.EngineConfig{TreasuryAccount: "treasury"},
		nil,
	)
	ctx := context.Background()

	if err := svc.SetFeeRate(ctx, "admin", -1); !errors.Is(err, ErrInvalidFeeRate) {
		t.Fatalf("expected ErrInvalidFeeRate for negative rate, got %v", err)
	}
	if err := svc.SetFeeRate(ctx, "admin", MaxFeeBasisPoints+1); !errors.Is(err, ErrInvalidFeeRate) {
		t.Fatalf("expected ErrInvalidFeeRate above the cap, got %v", err)
	}
	if err := svc.SetFeeRate(ctx, "admin", MaxFeeBasisPoints); err != nil {
		t.Fatalf("expected the cap itself to be accepted, got %v", err)
	}

	cfg, err := repo.GetEngineConfig(ctx)
	if err != nil {
		t.Fatalf("GetEngineConfig returned error: %v", err)
	}
	if cfg.FeeBasisPoints != MaxFeeBasisPoints {
		t.Fatalf("expected fee rate %d, got %d", MaxFeeBasisPoints, cfg.FeeBasisPoints)
	}
}

func TestSetTreasury_RedirectsFeeCollection(t *testing.T) {
	svc, _, ledger, _ := newTestService(t,
		domain.EngineConfig{FeeBasisPoints: 10, TreasuryAccount: "treasury"},
		map[string]int64{"alice": 10000},
	)
	ctx := context.Background()

	if err := svc.SetTreasury(ctx, "admin", "vault"); err != nil {
		t.Fatalf("SetTreasury returned error: %v", err)
	}

	if _, err := svc.ExecuteBatch(ctx, "alice", domain.BatchRequest{
		Recipients: []string{"bob"},
		Amounts:    []int64{1000},
		Nonce:      1,
	}); err != nil {
		t.Fatalf("ExecuteBatch returned error: %v", err)
	}

	if ledger.balances["vault"] != 10 {
		t.Fatalf("expected new treasury to collect 10, got %d", ledger.balances["vault"])
	}
	if ledger.balances["treasury"] != 0 {
		t.Fatalf("expected old treasury to collect nothing, got %d", ledger.balances["treasury"])
	}
}

func TestRestrictAndUnrestrict(t *testing.T) {
	svc, _, _, _ := newTestService(t,
		domain.EngineConfig{TreasuryAccount: "treasury"},
		nil,
	)
	ctx := context.Background()

	if err := svc.Restrict(ctx, "admin", "bob"); err != nil {
		t.Fatalf("Restrict returned error: %v", err)
	}
	restricted, err := svc.IsRestricted(ctx, "bob")
	if err != nil {
		t.Fatalf("IsRestricted returned error: %v", err)
	}
	if !restricted {
		t.Fatalf("expected bob restricted")
	}

	// Restricting twice keeps the account restricted.
	if err := svc.Restrict(ctx, "admin", "bob"); err != nil {
		t.Fatalf("repeated Restrict returned error: %v", err)
	}

	if err := svc.Unrestrict(ctx, "admin", "bob"); err != nil {
		t.Fatalf("Unrestrict returned error: %v", err)
	}
	restricted, err = svc.IsRestricted(ctx, "bob")
	if err != nil {
		t.Fatalf("IsRestricted returned error: %v", err)
	}
	if restricted {
		t.Fatalf("expected bob unrestricted")
	}
}

func TestEmergencyWithdraw(t *testing.T) {
	svc, _, ledger, _ := newTestService(t,
		domain.EngineConfig{TreasuryAccount: "treasury"},
		map[string]int64{"custodial": 500},
	)
	ctx := context.Background()

	if err := svc.EmergencyWithdraw(ctx, "admin", 0); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for zero amount, got %v", err)
	}
	if err := svc.EmergencyWithdraw(ctx, "admin", 600); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if err := svc.EmergencyWithdraw(ctx, "admin", 500); err != nil {
		t.Fatalf("EmergencyWithdraw returned error: %v", err)
	}
	if ledger.balances["custodial"] != 0 {
		t.Fatalf("expected custodial drained, got %d", ledger.balances["custodial"])
	}
	if ledger.balances["admin"] != 500 {
		t.Fatalf("expected admin to receive 500, got %d", ledger.balances["admin"])
	}
}

type fakeAssetContract struct {
	transferOK  bool
	transferErr error

	lastAmount int64
	lastFrom   string
	lastTo     string
}

func (f *fakeAssetContract) Name(ctx context.Context) (string, error)       { return "Test Asset", nil }
func (f *fakeAssetContract) Symbol(ctx context.Context) (string, error)     { return "TST", nil }
func (f *fakeAssetContract) Decimals(ctx context.Context) (uint8, error)    { return 2, nil }
func (f *fakeAssetContract) TotalSupply(ctx context.Context) (int64, error) { return 1000000, nil }
func (f *fakeAssetContract) TokenURI(ctx context.Context) (*string, error)  { return nil, nil }

func (f *fakeAssetContract) BalanceOf(ctx context.Context, account string) (int64, error) {
	return 0, nil
}

func (f *fakeAssetContract) Transfer(ctx context.Context, amount int64, from, to string, memo *string) (bool, error) {
	f.lastAmount = amount
	f.lastFrom = from
	f.lastTo = to
	return f.transferOK, f.transferErr
}

func TestRecoverForeignAsset(t *testing.T) {
	svc, _, _, _ := newTestService(t,
		domain.EngineConfig{TreasuryAccount: "treasury"},
		nil,
	)
	ctx := context.Background()

	if err := svc.RecoverForeignAsset(ctx, "mallory", &fakeAssetContract{transferOK: true}, 100); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := svc.RecoverForeignAsset(ctx, "admin", nil, 100); !errors.Is(err, ErrRecoveryFailed) {
		t.Fatalf("expected ErrRecoveryFailed for missing capability, got %v", err)
	}
	if err := svc.RecoverForeignAsset(ctx, "admin", &fakeAssetContract{transferOK: true}, 0); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}

	rejecting := &fakeAssetContract{transferOK: false}
	if err := svc.RecoverForeignAsset(ctx, "admin", rejecting, 100); !errors.Is(err, ErrRecoveryFailed) {
		t.Fatalf("expected ErrRecoveryFailed on rejected transfer, got %v", err)
	}

	failing := &fakeAssetContract{transferErr: errors.New("asset unreachable")}
	if err := svc.RecoverForeignAsset(ctx, "admin", failing, 100); !errors.Is(err, ErrRecoveryFailed) {
		t.Fatalf("expected ErrRecoveryFailed on transfer error, got %v", err)
	}

	asset := &fakeAssetContract{transferOK: true}
	if err := svc.RecoverForeignAsset(ctx, "admin", asset, 250); err != nil {
		t.Fatalf("RecoverForeignAsset returned error: %v", err)
	}
	if asset.lastAmount != 250 || asset.lastFrom != "custodial" || asset.lastTo != "admin" {
		t.Fatalf("expected recovery of 250 from custodial to admin, got %d from %q to %q",
			asset.lastAmount, asset.lastFrom, asset.lastTo)
	}
}
