package usecase

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

// maxAccountNumberAttempts 帳號碰撞時的重試次數
const maxAccountNumberAttempts = 10

var (
	accountNumberMin   = big.NewInt(1_000_000_000)
	accountNumberRange = big.NewInt(9_000_000_000)
)

// GenerateAccountNumber 產生隨機 10 位數帳號
func GenerateAccountNumber() (string, error) {
	n, err := rand.Int(rand.Reader, accountNumberRange)
	if err != nil {
		return "", err
	}
	return n.Add(n, accountNumberMin).String(), nil
}

// CreateAccount 開戶：產生唯一帳號、雜湊 PIN，並以 DEPOSIT 紀錄期初存款
//
// 帳戶列、期初入帳與 ledger 紀錄在同一個交易單位內完成，失敗時不留下任何帳戶。
func (c *CoreUseCase) CreateAccount(ctx context.Context, actor domain.Actor, ownerUserID int64, pin string, openingBalance int64) (*domain.Account, error) {
	if openingBalance < 0 {
		return nil, domain.ErrAmountMustBePositive
	}
	pinHash, err := c.hashPIN(pin)
	if err != nil {
		return nil, err
	}

	account, receipt, err := c.insertAccount(ctx, actor, ownerUserID, pinHash, openingBalance)
	if err != nil {
		c.audit(actor, "create_account", "-", openingBalance, err)
		return nil, err
	}
	c.audit(actor, "create_account", account.AccountNumber, openingBalance, nil)
	if receipt != nil {
		c.publish(ctx, domain.Event{Type: domain.EventTransactionAppended, Actor: actor, Transaction: &receipt.Transaction})
	}
	return account, nil
}

// insertAccount 帳號碰撞時換一個號碼重試，回傳的 receipt 在沒有期初存款時為 nil
func (c *CoreUseCase) insertAccount(ctx context.Context, actor domain.Actor, ownerUserID int64, pinHash string, openingBalance int64) (*domain.Account, *domain.Receipt, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	for attempt := 0; attempt < maxAccountNumberAttempts; attempt++ {
		number, err := c.newAccountNumber()
		if err != nil {
			return nil, nil, fmt.Errorf("generate account number: %w", err)
		}

		var account *domain.Account
		var receipt *domain.Receipt
		err = c.store.Atomic(ctx, domain.LockOrder(number), func(tx StoreTx) error {
			now := c.now()
			a := &domain.Account{
				OwnerUserID:   ownerUserID,
				AccountNumber: number,
				PINHash:       pinHash,
				CreatedAt:     now,
				UpdatedAt:     now,
			}
			if err := tx.CreateAccount(a); err != nil {
				return err
			}
			if openingBalance > 0 {
				if err := tx.AdjustBalance(number, openingBalance, domain.FieldBalance, now); err != nil {
					return err
				}
				receipt = &domain.Receipt{}
				entry := domain.NewTransaction(domain.TransactionTypeDeposit, number, "", openingBalance, actor, now)
				if err := c.appendEntry(tx, entry, receipt); err != nil {
					return err
				}
				a.Balance = receipt.Balance
			}
			account = a
			return nil
		})
		if err == nil {
			return account, receipt, nil
		}
		if !errors.Is(err, domain.ErrAccountAlreadyExists) {
			return nil, nil, storageError(err)
		}
	}
	return nil, nil, domain.ErrAccountAlreadyExists
}

// DeactivateAccount 停用帳戶，之後所有資金操作與查詢都視為不存在
func (c *CoreUseCase) DeactivateAccount(ctx context.Context, actor domain.Actor, accountNumber string) error {
	return c.setDeleted(ctx, actor, accountNumber, true)
}

// ActivateAccount 重新啟用帳戶
func (c *CoreUseCase) ActivateAccount(ctx context.Context, actor domain.Actor, accountNumber string) error {
	return c.setDeleted(ctx, actor, accountNumber, false)
}

func (c *CoreUseCase) setDeleted(ctx context.Context, actor domain.Actor, accountNumber string, deleted bool) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	action := "activate_account"
	if deleted {
		action = "deactivate_account"
	}
	err := storageError(c.store.SetAccountDeleted(ctx, accountNumber, deleted, c.now()))
	c.audit(actor, action, accountNumber, 0, err)
	if err != nil {
		return err
	}
	if account, err := c.store.GetAccount(ctx, accountNumber); err == nil {
		c.publish(ctx, domain.Event{Type: domain.EventAccountStatus, Actor: actor, Account: account.Snapshot(nil)})
	}
	return nil
}
