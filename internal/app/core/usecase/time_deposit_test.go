package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
)

const day = 24 * time.Hour

func TestTimeDepositLifecycle(t *testing.T) {
	f := newFixture(t)
	number := f.open(t, 5000)
	ctx := context.Background()

	receipt, err := f.uc.OpenTimeDeposit(ctx, operator, number, 2000, 3)
	if err != nil {
		t.Fatal(err)
	}
	if receipt.Balance != 3000 || receipt.TimeDepositBalance != 2000 {
		t.Errorf("receipt = %+v", receipt)
	}
	if receipt.TimeDeposit == nil || receipt.TimeDeposit.ID == 0 {
		t.Fatalf("receipt time deposit = %+v", receipt.TimeDeposit)
	}
	wantMaturity := f.clock.Now().AddDate(0, 0, 90)
	if !receipt.TimeDeposit.MaturityDate.Equal(wantMaturity) {
		t.Errorf("maturity = %v, want %v", receipt.TimeDeposit.MaturityDate, wantMaturity)
	}

	snap, _ := f.uc.Inquire(ctx, operator, number)
	if snap.OpenTimeDeposit == nil || snap.OpenTimeDeposit.PrincipalAmount != 2000 {
		t.Errorf("open deposit = %+v", snap.OpenTimeDeposit)
	}

	// 未到期不結清
	f.clock.Advance(89 * day)
	if n, err := f.uc.SweepMaturedDeposits(ctx); err != nil || n != 0 {
		t.Fatalf("early sweep = %d, %v", n, err)
	}

	f.clock.Advance(day)
	if n, err := f.uc.SweepMaturedDeposits(ctx); err != nil || n != 1 {
		t.Fatalf("sweep = %d, %v", n, err)
	}
	if n, err := f.uc.SweepMaturedDeposits(ctx); err != nil || n != 0 {
		t.Fatalf("second sweep = %d, %v", n, err)
	}

	snap, _ = f.uc.Inquire(ctx, operator, number)
	if snap.Balance != 5140 || snap.TimeDepositBalance != 0 || snap.OpenTimeDeposit != nil {
		t.Errorf("snapshot after settlement = %+v", snap)
	}
	f.assertLedgerMatches(t, number)
	if f.pub.count(domain.EventTimeDepositSettled) != 1 {
		t.Error("expected one settlement event")
	}

	// 結清後可再開新的定存
	if _, err := f.uc.OpenTimeDeposit(ctx, operator, number, 1000, 12); err != nil {
		t.Errorf("reopen error = %v", err)
	}
}

func TestOpenTimeDepositRejects(t *testing.T) {
	f := newFixture(t)
	number := f.open(t, 5000)
	ctx := context.Background()

	if _, err := f.uc.OpenTimeDeposit(ctx, operator, number, 1000, 4); !errors.Is(err, domain.ErrInvalidDuration) {
		t.Errorf("invalid duration error = %v", err)
	}
	if _, err := f.uc.OpenTimeDeposit(ctx, operator, number, 6000, 3); !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Errorf("insufficient error = %v", err)
	}
	if _, err := f.uc.OpenTimeDeposit(ctx, operator, number, 1000, 6); err != nil {
		t.Fatal(err)
	}
	if _, err := f.uc.OpenTimeDeposit(ctx, operator, number, 1000, 6); !errors.Is(err, domain.ErrDuplicateTimeDeposit) {
		t.Errorf("duplicate error = %v", err)
	}
	if got := f.balance(t, number); got != 4000 {
		t.Errorf("balance = %d, want 4000", got)
	}
}

func TestSettlementWaitsForReactivation(t *testing.T) {
	f := newFixture(t)
	number := f.open(t, 5000)
	ctx := context.Background()

	if _, err := f.uc.OpenTimeDeposit(ctx, operator, number, 2000, 3); err != nil {
		t.Fatal(err)
	}
	if err := f.uc.DeactivateAccount(ctx, operator, number); err != nil {
		t.Fatal(err)
	}
	f.clock.Advance(100 * day)

	if n, err := f.uc.SweepMaturedDeposits(ctx); err != nil || n != 0 {
		t.Fatalf("sweep on deactivated account = %d, %v", n, err)
	}
	if err := f.uc.ActivateAccount(ctx, operator, number); err != nil {
		t.Fatal(err)
	}
	if n, err := f.uc.SweepMaturedDeposits(ctx); err != nil || n != 1 {
		t.Fatalf("sweep after activation = %d, %v", n, err)
	}
	if got := f.balance(t, number); got != 5140 {
		t.Errorf("balance = %d, want 5140", got)
	}
}

func TestConcurrentSweepsSettleOnce(t *testing.T) {
	f := newFixture(t)
	number := f.open(t, 10000)
	ctx := context.Background()
	if _, err := f.uc.OpenTimeDeposit(ctx, operator, number, 10000, 12); err != nil {
		t.Fatal(err)
	}
	f.clock.Advance(360 * day)

	results := make(chan int, 4)
	for i := 0; i < 4; i++ {
		go func() {
			n, err := f.uc.SweepMaturedDeposits(ctx)
			if err != nil {
				t.Error(err)
			}
			results <- n
		}()
	}
	total := 0
	for i := 0; i < 4; i++ {
		total += <-results
	}
	if total != 1 {
		t.Fatalf("settled %d times, want 1", total)
	}
	if got := f.balance(t, number); got != 10900 {
		t.Errorf("balance = %d, want 10900", got)
	}
}

func TestMaturitySweeperRun(t *testing.T) {
	f := newFixture(t)
	number := f.open(t, 5000)
	if _, err := f.uc.OpenTimeDeposit(context.Background(), operator, number, 2000, 3); err != nil {
		t.Fatal(err)
	}
	f.clock.Advance(90 * day)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- usecase.NewMaturitySweeper(f.uc, 10*time.Millisecond).Run(ctx)
	}()

	deadline := time.After(2 * time.Second)
	for f.balance(t, number) != 5140 {
		select {
		case <-deadline:
			t.Fatal("sweeper did not settle the matured deposit")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}
