package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

func TestOpenATMSession(t *testing.T) {
	f := newFixture(t)
	number := f.open(t, 1000)
	ctx := context.Background()

	if _, err := f.uc.OpenATMSession(ctx, number, "9999"); !errors.Is(err, domain.ErrInvalidPIN) {
		t.Errorf("wrong pin error = %v", err)
	}
	if _, err := f.uc.OpenATMSession(ctx, "9999999999", "1234"); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Errorf("missing account error = %v", err)
	}
	session, err := f.uc.OpenATMSession(ctx, number, "1234")
	if err != nil {
		t.Fatal(err)
	}
	if session.AccountNumber != number || session.OwnerUserID != 7 {
		t.Errorf("session = %+v", session)
	}
}

func TestATMDailyWithdrawLimit(t *testing.T) {
	f := newFixture(t)
	number := f.open(t, domain.FromUnits(30000))
	ctx := context.Background()

	session, err := f.uc.OpenATMSession(ctx, number, "1234")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.uc.ATMWithdraw(ctx, session, domain.FromUnits(24800)); err != nil {
		t.Fatal(err)
	}
	if _, err := f.uc.ATMWithdraw(ctx, session, domain.FromUnits(500)); !errors.Is(err, domain.ErrDailyLimitExceeded) {
		t.Fatalf("error = %v, want ErrDailyLimitExceeded", err)
	}
	if got := f.balance(t, number); got != domain.FromUnits(5200) {
		t.Errorf("balance = %d after rejected withdrawal", got)
	}

	// 剛好達到上限可以
	if _, err := f.uc.ATMWithdraw(ctx, session, domain.FromUnits(200)); err != nil {
		t.Fatalf("withdraw up to the limit error = %v", err)
	}
	// 臨櫃提款不計入 ATM 上限
	if _, err := f.uc.Withdraw(ctx, operator, number, domain.FromUnits(100)); err != nil {
		t.Fatalf("counter withdraw error = %v", err)
	}

	f.clock.Advance(day)
	if _, err := f.uc.ATMWithdraw(ctx, session, domain.FromUnits(500)); err != nil {
		t.Fatalf("next day withdraw error = %v", err)
	}
	f.assertLedgerMatches(t, number)
}

func TestATMDepositAndTransfer(t *testing.T) {
	f := newFixture(t)
	number := f.open(t, 1000)
	other := f.open(t, 0)
	ctx := context.Background()

	session, err := f.uc.OpenATMSession(ctx, number, "1234")
	if err != nil {
		t.Fatal(err)
	}
	receipt, err := f.uc.ATMDeposit(ctx, session, 500)
	if err != nil {
		t.Fatal(err)
	}
	if receipt.Transaction.Type != domain.TransactionTypeATMDeposit || receipt.Balance != 1500 {
		t.Errorf("receipt = %+v", receipt)
	}
	receipt, err = f.uc.ATMTransfer(ctx, session, other, 700)
	if err != nil {
		t.Fatal(err)
	}
	if receipt.Transaction.Type != domain.TransactionTypeATMFundTransfer || receipt.Transaction.ReferenceNumber != other {
		t.Errorf("receipt = %+v", receipt)
	}
	if _, err := f.uc.ATMTransfer(ctx, session, number, 1); !errors.Is(err, domain.ErrSelfTransfer) {
		t.Errorf("self transfer error = %v", err)
	}
	if f.balance(t, other) != 700 {
		t.Errorf("dest balance = %d", f.balance(t, other))
	}
	f.assertLedgerMatches(t, number)
	f.assertLedgerMatches(t, other)
}

func TestChangePIN(t *testing.T) {
	f := newFixture(t)
	number := f.open(t, 0)
	ctx := context.Background()

	session, err := f.uc.OpenATMSession(ctx, number, "1234")
	if err != nil {
		t.Fatal(err)
	}
	if err := f.uc.ChangePIN(ctx, session, "0000", "5678"); !errors.Is(err, domain.ErrInvalidPIN) {
		t.Errorf("wrong current pin error = %v", err)
	}
	if err := f.uc.ChangePIN(ctx, session, "1234", "56a8"); !errors.Is(err, domain.ErrInvalidPIN) {
		t.Errorf("malformed pin error = %v", err)
	}
	if err := f.uc.ChangePIN(ctx, session, "1234", "567890"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.uc.OpenATMSession(ctx, number, "1234"); !errors.Is(err, domain.ErrInvalidPIN) {
		t.Errorf("old pin still accepted: %v", err)
	}
	if _, err := f.uc.OpenATMSession(ctx, number, "567890"); err != nil {
		t.Errorf("new pin rejected: %v", err)
	}
}
