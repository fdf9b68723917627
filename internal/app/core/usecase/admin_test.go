package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
)

// failingCommitStore 執行 fn 後才回報儲存層錯誤，模擬 WAL 或 commit 失敗
type failingCommitStore struct {
	usecase.Store
	err error
}

func (s failingCommitStore) Atomic(ctx context.Context, accountNumbers []string, fn func(tx usecase.StoreTx) error) error {
	return s.Store.Atomic(ctx, accountNumbers, func(tx usecase.StoreTx) error {
		if err := fn(tx); err != nil {
			return err
		}
		return s.err
	})
}

func TestCreateAccountLeavesNothingOnStorageFailure(t *testing.T) {
	f := newFixture(t)
	store := failingCommitStore{
		Store: f.store,
		err:   fmt.Errorf("%w: wal write: no space left on device", domain.ErrStorageUnavailable),
	}
	uc := usecase.NewCoreUseCase(store,
		usecase.WithClock(f.clock.Now),
		usecase.WithPINCost(bcrypt.MinCost),
		usecase.WithAccountNumberGenerator(func() (string, error) { return "1000000001", nil }),
	)

	for _, opening := range []int64{0, 100000} {
		_, err := uc.CreateAccount(context.Background(), operator, 7, "1234", opening)
		if !errors.Is(err, domain.ErrStorageUnavailable) {
			t.Fatalf("opening %d: error = %v, want ErrStorageUnavailable", opening, err)
		}
		if _, err := f.store.GetAccount(context.Background(), "1000000001"); !errors.Is(err, domain.ErrAccountNotFound) {
			t.Errorf("opening %d: GetAccount() error = %v, want ErrAccountNotFound", opening, err)
		}
	}
	entries, err := f.store.ListAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("entries = %+v, want none", entries)
	}

	// 同一個帳號之後仍可正常開立
	a, err := usecase.NewCoreUseCase(f.store,
		usecase.WithClock(f.clock.Now),
		usecase.WithPINCost(bcrypt.MinCost),
		usecase.WithAccountNumberGenerator(func() (string, error) { return "1000000001", nil }),
	).CreateAccount(context.Background(), operator, 7, "1234", 100000)
	if err != nil {
		t.Fatalf("retry CreateAccount() error = %v", err)
	}
	if a.AccountNumber != "1000000001" || a.Balance != 100000 {
		t.Errorf("account = %+v", a)
	}
	f.assertLedgerMatches(t, "1000000001")
}

func TestCreateAccountStampsClockTime(t *testing.T) {
	f := newFixture(t)
	number := f.open(t, 1000)

	a, err := f.store.GetAccount(context.Background(), number)
	if err != nil {
		t.Fatal(err)
	}
	now := f.clock.Now()
	if !a.CreatedAt.Equal(now) || !a.UpdatedAt.Equal(now) {
		t.Errorf("created/updated = %v/%v, want %v", a.CreatedAt, a.UpdatedAt, now)
	}
	if a.ID == 0 {
		t.Error("account id was not assigned")
	}
}

func TestDeactivateStampsClockTime(t *testing.T) {
	f := newFixture(t)
	number := f.open(t, 1000)

	f.clock.Advance(3 * day)
	if err := f.uc.DeactivateAccount(context.Background(), operator, number); err != nil {
		t.Fatal(err)
	}
	a, err := f.store.GetAccount(context.Background(), number)
	if err != nil {
		t.Fatal(err)
	}
	if !a.IsDeleted || !a.UpdatedAt.Equal(f.clock.Now()) {
		t.Errorf("account = %+v, want deleted at %v", a, f.clock.Now())
	}
}
