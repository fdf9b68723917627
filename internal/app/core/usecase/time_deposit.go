package usecase

import (
	"context"
	"errors"
	"log"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

// errNotMature 掃描後到結清前定存狀態被改變，略過即可
var errNotMature = errors.New("time deposit not mature")

// OpenTimeDeposit 將活存轉入定存，每個帳戶同時只能有一筆未結清定存
func (c *CoreUseCase) OpenTimeDeposit(ctx context.Context, actor domain.Actor, accountNumber string, amount int64, durationMonths int) (*domain.Receipt, error) {
	receipt, err := c.openTimeDeposit(ctx, actor, accountNumber, amount, durationMonths)
	c.audit(actor, "open_time_deposit", accountNumber, amount, err)
	return receipt, err
}

func (c *CoreUseCase) openTimeDeposit(ctx context.Context, actor domain.Actor, accountNumber string, amount int64, durationMonths int) (*domain.Receipt, error) {
	if amount <= 0 {
		return nil, domain.ErrAmountMustBePositive
	}
	if _, err := domain.InterestRateFor(durationMonths); err != nil {
		return nil, err
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	var deposit *domain.TimeDeposit
	receipt := &domain.Receipt{}
	err := c.store.Atomic(ctx, domain.LockOrder(accountNumber), func(tx StoreTx) error {
		now := c.now()
		account, err := tx.GetByNumber(accountNumber)
		if err != nil {
			return err
		}
		if account.TimeDepositBalance != 0 {
			return domain.ErrDuplicateTimeDeposit
		}
		if _, err := tx.FindOpenTimeDeposit(accountNumber); err == nil {
			return domain.ErrDuplicateTimeDeposit
		} else if !errors.Is(err, domain.ErrTimeDepositNotFound) {
			return err
		}
		d, err := domain.NewTimeDeposit(accountNumber, amount, durationMonths, now)
		if err != nil {
			return err
		}
		if err := tx.AdjustBalance(accountNumber, -amount, domain.FieldBalance, now); err != nil {
			return err
		}
		if err := tx.AdjustBalance(accountNumber, amount, domain.FieldTimeDepositBalance, now); err != nil {
			return err
		}
		id, err := tx.CreateTimeDeposit(d)
		if err != nil {
			return err
		}
		d.ID = id
		deposit = d
		return c.appendEntry(tx, domain.NewTransaction(domain.TransactionTypeTimeDeposit, accountNumber, "", amount, actor, now), receipt)
	})
	if err != nil {
		return nil, storageError(err)
	}
	receipt.TimeDeposit = deposit
	c.publish(ctx, domain.Event{Type: domain.EventTimeDepositOpened, Actor: actor, Transaction: &receipt.Transaction, TimeDeposit: deposit})
	return receipt, nil
}

// SweepMaturedDeposits 結清所有已到期的定存並回傳本次結清筆數
//
// 每筆定存在持有帳戶鎖的單一交易單位內重新讀取、入帳並標記結清，
// 重複執行不會重複入帳。停用帳戶的定存保留到重新啟用後再結清。
func (c *CoreUseCase) SweepMaturedDeposits(ctx context.Context) (int, error) {
	now := c.now()
	listCtx, cancel := c.withTimeout(ctx)
	due, err := c.store.ListMaturedDeposits(listCtx, now)
	cancel()
	if err != nil {
		return 0, storageError(err)
	}

	settled := 0
	for i := range due {
		err := c.settle(ctx, &due[i])
		switch {
		case err == nil:
			settled++
		case errors.Is(err, domain.ErrTimeDepositSettled), errors.Is(err, errNotMature):
		case domain.IsBusinessError(err):
			log.Printf("Skip settlement of time deposit %d (account %s): %v", due[i].ID, due[i].AccountNumber, err)
		default:
			return settled, storageError(err)
		}
	}
	if settled > 0 {
		log.Printf("Maturity sweep settled %d time deposits", settled)
	}
	return settled, nil
}

func (c *CoreUseCase) settle(ctx context.Context, candidate *domain.TimeDeposit) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	var entry *domain.Transaction
	var deposit *domain.TimeDeposit
	err := c.store.Atomic(ctx, domain.LockOrder(candidate.AccountNumber), func(tx StoreTx) error {
		now := c.now()
		d, err := tx.GetTimeDeposit(candidate.ID)
		if err != nil {
			return err
		}
		if d.IsSettled {
			return domain.ErrTimeDepositSettled
		}
		if !d.IsMature(now) {
			return errNotMature
		}
		if _, err := tx.GetByNumber(d.AccountNumber); err != nil {
			return err
		}
		payout := d.Payout()
		if err := tx.AdjustBalance(d.AccountNumber, -d.PrincipalAmount, domain.FieldTimeDepositBalance, now); err != nil {
			return err
		}
		if err := tx.AdjustBalance(d.AccountNumber, payout, domain.FieldBalance, now); err != nil {
			return err
		}
		if err := tx.SettleTimeDeposit(d.ID, now); err != nil {
			return err
		}
		entry = domain.NewTransaction(domain.TransactionTypeTimeDepositSettlement, d.AccountNumber, "", payout, domain.SystemActor, now)
		id, err := tx.Append(entry)
		if err != nil {
			return err
		}
		entry.ID = id
		d.IsSettled = true
		d.SettledAt = &now
		deposit = d
		return nil
	})
	if err != nil {
		return err
	}
	c.audit(domain.SystemActor, "settle_time_deposit", deposit.AccountNumber, entry.Amount, nil)
	c.publish(ctx, domain.Event{Type: domain.EventTimeDepositSettled, Actor: domain.SystemActor, Transaction: entry, TimeDeposit: deposit})
	return nil
}
