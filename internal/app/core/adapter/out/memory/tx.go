package memory

import (
	"errors"
	"fmt"
	"time"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
)

// tx 是 Atomic 內的交易單位，所有修改先暫存在這裡，commit 時才寫入 Store
type tx struct {
	store  *Store
	locked map[string]struct{}

	accounts     map[string]*domain.Account
	dirty        []string
	entries      []domain.Transaction
	deposits     map[int64]*domain.TimeDeposit
	depositOrder []int64
}

func newTx(s *Store, locked []string) *tx {
	t := &tx{
		store:    s,
		locked:   make(map[string]struct{}, len(locked)),
		accounts: make(map[string]*domain.Account, len(locked)),
		deposits: make(map[int64]*domain.TimeDeposit),
	}
	for _, n := range locked {
		t.locked[n] = struct{}{}
	}
	return t
}

// account 回傳暫存中的帳戶 (第一次存取時自 Store 複製)
func (t *tx) account(accountNumber string) (*domain.Account, error) {
	if _, ok := t.locked[accountNumber]; !ok {
		return nil, fmt.Errorf("account %s is not locked in this unit of work", accountNumber)
	}
	if a, ok := t.accounts[accountNumber]; ok {
		return a, nil
	}
	t.store.mu.RLock()
	a, ok := t.store.accounts[accountNumber]
	var cp domain.Account
	if ok {
		cp = *a
	}
	t.store.mu.RUnlock()
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	t.accounts[accountNumber] = &cp
	return &cp, nil
}

func (t *tx) GetByNumber(accountNumber string) (*domain.Account, error) {
	a, err := t.account(accountNumber)
	if err != nil {
		return nil, err
	}
	if a.IsDeleted {
		return nil, domain.ErrAccountNotFound
	}
	cp := *a
	return &cp, nil
}

// CreateAccount 在交易單位內新增帳戶，帳號必須已在鎖定集合中
func (t *tx) CreateAccount(account *domain.Account) error {
	if _, ok := t.locked[account.AccountNumber]; !ok {
		return fmt.Errorf("account %s is not locked in this unit of work", account.AccountNumber)
	}
	if _, err := t.account(account.AccountNumber); err == nil {
		return domain.ErrAccountAlreadyExists
	} else if !errors.Is(err, domain.ErrAccountNotFound) {
		return err
	}
	cp := *account
	cp.ID = t.store.nextAccountID.Add(1)
	t.accounts[cp.AccountNumber] = &cp
	t.markDirty(cp.AccountNumber)
	account.ID = cp.ID
	return nil
}

func (t *tx) AdjustBalance(accountNumber string, delta int64, field domain.BalanceField, at time.Time) error {
	a, err := t.account(accountNumber)
	if err != nil {
		return err
	}
	if a.IsDeleted {
		return domain.ErrAccountNotFound
	}
	if err := a.Adjust(delta, field); err != nil {
		return err
	}
	a.UpdatedAt = at
	t.markDirty(accountNumber)
	return nil
}

func (t *tx) markDirty(accountNumber string) {
	for _, n := range t.dirty {
		if n == accountNumber {
			return
		}
	}
	t.dirty = append(t.dirty, accountNumber)
}

func (t *tx) Append(entry *domain.Transaction) (int64, error) {
	if entry.Amount <= 0 {
		return 0, domain.ErrAmountMustBePositive
	}
	cp := *entry
	cp.ID = t.store.nextEntryID.Add(1)
	t.entries = append(t.entries, cp)
	return cp.ID, nil
}

func (t *tx) SumByKind(accountNumber string, kind domain.TransactionType, from, to time.Time) (int64, error) {
	var sum int64
	match := func(e *domain.Transaction) {
		if e.AccountNumber == accountNumber && e.Type == kind && !e.CreatedAt.Before(from) && e.CreatedAt.Before(to) {
			sum += e.Amount
		}
	}
	t.store.mu.RLock()
	for i := range t.store.entries {
		match(&t.store.entries[i])
	}
	t.store.mu.RUnlock()
	for i := range t.entries {
		match(&t.entries[i])
	}
	return sum, nil
}

func (t *tx) FindOpenTimeDeposit(accountNumber string) (*domain.TimeDeposit, error) {
	for _, id := range t.depositOrder {
		d := t.deposits[id]
		if d.AccountNumber == accountNumber && !d.IsSettled {
			cp := *d
			return &cp, nil
		}
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	for id, d := range t.store.deposits {
		if _, staged := t.deposits[id]; staged {
			continue
		}
		if d.AccountNumber == accountNumber && !d.IsSettled {
			cp := *d
			return &cp, nil
		}
	}
	return nil, domain.ErrTimeDepositNotFound
}

func (t *tx) CreateTimeDeposit(deposit *domain.TimeDeposit) (int64, error) {
	cp := *deposit
	cp.ID = t.store.nextDepositID.Add(1)
	t.stageDeposit(&cp)
	return cp.ID, nil
}

func (t *tx) GetTimeDeposit(id int64) (*domain.TimeDeposit, error) {
	if d, ok := t.deposits[id]; ok {
		cp := *d
		return &cp, nil
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	d, ok := t.store.deposits[id]
	if !ok {
		return nil, domain.ErrTimeDepositNotFound
	}
	cp := *d
	return &cp, nil
}

func (t *tx) SettleTimeDeposit(id int64, settledAt time.Time) error {
	d, err := t.GetTimeDeposit(id)
	if err != nil {
		return err
	}
	if d.IsSettled {
		return domain.ErrTimeDepositSettled
	}
	d.IsSettled = true
	d.SettledAt = &settledAt
	t.stageDeposit(d)
	return nil
}

func (t *tx) stageDeposit(d *domain.TimeDeposit) {
	if _, ok := t.deposits[d.ID]; !ok {
		t.depositOrder = append(t.depositOrder, d.ID)
	}
	t.deposits[d.ID] = d
}

// record 將暫存的修改整理成 commitRecord
func (t *tx) record() *commitRecord {
	rec := &commitRecord{Entries: t.entries}
	for _, n := range t.dirty {
		rec.Accounts = append(rec.Accounts, *t.accounts[n])
	}
	for _, id := range t.depositOrder {
		rec.Deposits = append(rec.Deposits, *t.deposits[id])
	}
	return rec
}

var _ usecase.StoreTx = (*tx)(nil)
