package usecase

import (
	"context"
	"errors"
	"regexp"

	"golang.org/x/crypto/bcrypt"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

var pinPattern = regexp.MustCompile(`^[0-9]{4,6}$`)

// OpenATMSession 以 PIN 驗證帳戶並回傳只能操作該帳戶的 ATM session
func (c *CoreUseCase) OpenATMSession(ctx context.Context, accountNumber, pin string) (*domain.ATMSession, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	account, err := c.activeAccount(ctx, accountNumber)
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PINHash), []byte(pin)); err != nil {
		return nil, domain.ErrInvalidPIN
	}
	return &domain.ATMSession{
		AccountNumber: account.AccountNumber,
		OwnerUserID:   account.OwnerUserID,
		OpenedAt:      c.now(),
	}, nil
}

// ATMDeposit ATM 存款
func (c *CoreUseCase) ATMDeposit(ctx context.Context, session *domain.ATMSession, amount int64) (*domain.Receipt, error) {
	actor := session.Actor()
	receipt, err := c.credit(ctx, actor, domain.TransactionTypeATMDeposit, session.AccountNumber, amount)
	c.audit(actor, "atm_deposit", session.AccountNumber, amount, err)
	return receipt, err
}

// ATMWithdraw ATM 提款，受每日累計上限限制
func (c *CoreUseCase) ATMWithdraw(ctx context.Context, session *domain.ATMSession, amount int64) (*domain.Receipt, error) {
	actor := session.Actor()
	receipt, err := c.debit(ctx, actor, domain.TransactionTypeATMWithdraw, session.AccountNumber, amount)
	c.audit(actor, "atm_withdraw", session.AccountNumber, amount, err)
	return receipt, err
}

// ATMTransfer ATM 轉帳
func (c *CoreUseCase) ATMTransfer(ctx context.Context, session *domain.ATMSession, destNumber string, amount int64) (*domain.Receipt, error) {
	actor := session.Actor()
	receipt, err := c.transfer(ctx, actor, domain.TransactionTypeATMFundTransfer, session.AccountNumber, destNumber, amount)
	c.audit(actor, "atm_transfer", session.AccountNumber+"->"+destNumber, amount, err)
	return receipt, err
}

// ChangePIN 變更 PIN，新 PIN 必須為 4-6 位數字
func (c *CoreUseCase) ChangePIN(ctx context.Context, session *domain.ATMSession, currentPIN, newPIN string) error {
	if !pinPattern.MatchString(newPIN) {
		return domain.ErrInvalidPIN
	}
	// 重新驗證目前 PIN，同時確認帳戶仍為啟用狀態
	if _, err := c.OpenATMSession(ctx, session.AccountNumber, currentPIN); err != nil {
		return err
	}
	hash, err := c.hashPIN(newPIN)
	if err != nil {
		return err
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	err = c.store.UpdatePINHash(ctx, session.AccountNumber, hash, c.now())
	c.audit(session.Actor(), "change_pin", session.AccountNumber, 0, err)
	return storageError(err)
}

func (c *CoreUseCase) hashPIN(pin string) (string, error) {
	if !pinPattern.MatchString(pin) {
		return "", domain.ErrInvalidPIN
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), c.pinCost)
	if err != nil {
		return "", errors.Join(domain.ErrInvalidPIN, err)
	}
	return string(hash), nil
}
