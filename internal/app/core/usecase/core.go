package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

const (
	// DefaultOperationTimeout 單一操作對儲存層的最長等待時間
	DefaultOperationTimeout = 5 * time.Second
	// DefaultATMDailyLimitUnits ATM 每帳戶每日提款上限 (貨幣單位)
	DefaultATMDailyLimitUnits = 25000
)

// CoreUseCase 是核心業務邏輯層
type CoreUseCase struct {
	store     Store
	publisher Publisher

	now              func() time.Time
	location         *time.Location
	operationTimeout time.Duration
	atmDailyLimit    int64
	pinCost          int
	newAccountNumber func() (string, error)
}

// Option 設定 CoreUseCase
type Option func(*CoreUseCase)

// WithClock 替換時間來源 (測試用)
func WithClock(now func() time.Time) Option {
	return func(c *CoreUseCase) {
		c.now = now
	}
}

// WithLocation 設定「一天」的時區，用於 ATM 每日上限
func WithLocation(loc *time.Location) Option {
	return func(c *CoreUseCase) {
		c.location = loc
	}
}

// WithOperationTimeout 設定每個操作的逾時
func WithOperationTimeout(d time.Duration) Option {
	return func(c *CoreUseCase) {
		c.operationTimeout = d
	}
}

// WithATMDailyLimit 設定 ATM 每日提款上限 (最小單位)
func WithATMDailyLimit(limit int64) Option {
	return func(c *CoreUseCase) {
		c.atmDailyLimit = limit
	}
}

// WithPublisher 設定事件發送器
func WithPublisher(p Publisher) Option {
	return func(c *CoreUseCase) {
		c.publisher = p
	}
}

// WithPINCost 設定 bcrypt cost
func WithPINCost(cost int) Option {
	return func(c *CoreUseCase) {
		c.pinCost = cost
	}
}

// WithAccountNumberGenerator 替換帳號產生器
func WithAccountNumberGenerator(gen func() (string, error)) Option {
	return func(c *CoreUseCase) {
		c.newAccountNumber = gen
	}
}

func NewCoreUseCase(store Store, opts ...Option) *CoreUseCase {
	c := &CoreUseCase{
		store:            store,
		now:              time.Now,
		location:         time.Local,
		operationTimeout: DefaultOperationTimeout,
		atmDailyLimit:    domain.FromUnits(DefaultATMDailyLimitUnits),
		pinCost:          bcrypt.DefaultCost,
		newAccountNumber: GenerateAccountNumber,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Deposit 臨櫃存款
func (c *CoreUseCase) Deposit(ctx context.Context, actor domain.Actor, accountNumber string, amount int64) (*domain.Receipt, error) {
	receipt, err := c.credit(ctx, actor, domain.TransactionTypeDeposit, accountNumber, amount)
	c.audit(actor, "deposit", accountNumber, amount, err)
	return receipt, err
}

// Withdraw 臨櫃提款
func (c *CoreUseCase) Withdraw(ctx context.Context, actor domain.Actor, accountNumber string, amount int64) (*domain.Receipt, error) {
	receipt, err := c.debit(ctx, actor, domain.TransactionTypeWithdraw, accountNumber, amount)
	c.audit(actor, "withdraw", accountNumber, amount, err)
	return receipt, err
}

// Transfer 轉帳，扣款與入帳在同一個交易單位內完成
func (c *CoreUseCase) Transfer(ctx context.Context, actor domain.Actor, sourceNumber, destNumber string, amount int64) (*domain.Receipt, error) {
	receipt, err := c.transfer(ctx, actor, domain.TransactionTypeFundTransfer, sourceNumber, destNumber, amount)
	c.audit(actor, "transfer", sourceNumber+"->"+destNumber, amount, err)
	return receipt, err
}

// Inquire 查詢帳戶餘額與未結清定存
//
// 兩者在持有帳戶鎖的同一個交易單位內讀取，不會與進行中的結清交錯。
func (c *CoreUseCase) Inquire(ctx context.Context, actor domain.Actor, accountNumber string) (*domain.AccountSnapshot, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	var snapshot *domain.AccountSnapshot
	err := c.store.Atomic(ctx, domain.LockOrder(accountNumber), func(tx StoreTx) error {
		account, err := tx.GetByNumber(accountNumber)
		if err != nil {
			return err
		}
		open, err := tx.FindOpenTimeDeposit(accountNumber)
		if err != nil && !errors.Is(err, domain.ErrTimeDepositNotFound) {
			return err
		}
		snapshot = account.Snapshot(open)
		return nil
	})
	if err != nil {
		return nil, storageError(err)
	}
	return snapshot, nil
}

// History 帳戶交易明細，由新到舊
func (c *CoreUseCase) History(ctx context.Context, actor domain.Actor, accountNumber string) ([]domain.Transaction, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if _, err := c.activeAccount(ctx, accountNumber); err != nil {
		return nil, err
	}
	entries, err := c.store.ListByAccount(ctx, accountNumber)
	if err != nil {
		return nil, storageError(err)
	}
	return entries, nil
}

// ListAllTransactions 管理者查詢全部 ledger 紀錄，由新到舊
func (c *CoreUseCase) ListAllTransactions(ctx context.Context, actor domain.Actor) ([]domain.Transaction, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	entries, err := c.store.ListAll(ctx)
	if err != nil {
		return nil, storageError(err)
	}
	return entries, nil
}

// credit 入帳到活存並寫入一筆 ledger 紀錄
func (c *CoreUseCase) credit(ctx context.Context, actor domain.Actor, kind domain.TransactionType, accountNumber string, amount int64) (*domain.Receipt, error) {
	if amount <= 0 {
		return nil, domain.ErrAmountMustBePositive
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	receipt := &domain.Receipt{}
	err := c.store.Atomic(ctx, domain.LockOrder(accountNumber), func(tx StoreTx) error {
		// 取得鎖之後才蓋時間戳，ledger 的先後與提交順序一致
		now := c.now()
		if err := tx.AdjustBalance(accountNumber, amount, domain.FieldBalance, now); err != nil {
			return err
		}
		return c.appendEntry(tx, domain.NewTransaction(kind, accountNumber, "", amount, actor, now), receipt)
	})
	if err != nil {
		return nil, storageError(err)
	}
	c.publish(ctx, domain.Event{Type: domain.EventTransactionAppended, Actor: actor, Transaction: &receipt.Transaction})
	return receipt, nil
}

// debit 自活存扣款；ATM 提款另外檢查當日累計上限
func (c *CoreUseCase) debit(ctx context.Context, actor domain.Actor, kind domain.TransactionType, accountNumber string, amount int64) (*domain.Receipt, error) {
	if amount <= 0 {
		return nil, domain.ErrAmountMustBePositive
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	receipt := &domain.Receipt{}
	err := c.store.Atomic(ctx, domain.LockOrder(accountNumber), func(tx StoreTx) error {
		now := c.now()
		if _, err := tx.GetByNumber(accountNumber); err != nil {
			return err
		}
		if kind == domain.TransactionTypeATMWithdraw {
			if err := c.checkDailyLimit(tx, accountNumber, amount, now); err != nil {
				return err
			}
		}
		if err := tx.AdjustBalance(accountNumber, -amount, domain.FieldBalance, now); err != nil {
			return err
		}
		return c.appendEntry(tx, domain.NewTransaction(kind, accountNumber, "", amount, actor, now), receipt)
	})
	if err != nil {
		return nil, storageError(err)
	}
	c.publish(ctx, domain.Event{Type: domain.EventTransactionAppended, Actor: actor, Transaction: &receipt.Transaction})
	return receipt, nil
}

// checkDailyLimit 以當日 ATM_WITHDRAW 紀錄加總判斷是否超過上限
func (c *CoreUseCase) checkDailyLimit(tx StoreTx, accountNumber string, amount int64, now time.Time) error {
	local := now.In(c.location)
	from := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.location)
	withdrawn, err := tx.SumByKind(accountNumber, domain.TransactionTypeATMWithdraw, from, from.AddDate(0, 0, 1))
	if err != nil {
		return err
	}
	if withdrawn+amount > c.atmDailyLimit {
		return domain.ErrDailyLimitExceeded
	}
	return nil
}

func (c *CoreUseCase) transfer(ctx context.Context, actor domain.Actor, kind domain.TransactionType, sourceNumber, destNumber string, amount int64) (*domain.Receipt, error) {
	if amount <= 0 {
		return nil, domain.ErrAmountMustBePositive
	}
	if sourceNumber == destNumber {
		return nil, domain.ErrSelfTransfer
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	receipt := &domain.Receipt{}
	err := c.store.Atomic(ctx, domain.LockOrder(sourceNumber, destNumber), func(tx StoreTx) error {
		now := c.now()
		if _, err := tx.GetByNumber(destNumber); err != nil {
			return err
		}
		if err := tx.AdjustBalance(sourceNumber, -amount, domain.FieldBalance, now); err != nil {
			return err
		}
		if err := tx.AdjustBalance(destNumber, amount, domain.FieldBalance, now); err != nil {
			return err
		}
		return c.appendEntry(tx, domain.NewTransaction(kind, sourceNumber, destNumber, amount, actor, now), receipt)
	})
	if err != nil {
		return nil, storageError(err)
	}
	c.publish(ctx, domain.Event{Type: domain.EventTransactionAppended, Actor: actor, Transaction: &receipt.Transaction})
	return receipt, nil
}

// appendEntry 寫入 ledger 並以來源帳戶的最新餘額填入 receipt
func (c *CoreUseCase) appendEntry(tx StoreTx, entry *domain.Transaction, receipt *domain.Receipt) error {
	id, err := tx.Append(entry)
	if err != nil {
		return err
	}
	entry.ID = id
	account, err := tx.GetByNumber(entry.AccountNumber)
	if err != nil {
		return err
	}
	receipt.Transaction = *entry
	receipt.Balance = account.Balance
	receipt.TimeDepositBalance = account.TimeDepositBalance
	return nil
}

// activeAccount 讀取帳戶並拒絕已停用的帳戶
func (c *CoreUseCase) activeAccount(ctx context.Context, accountNumber string) (*domain.Account, error) {
	account, err := c.store.GetAccount(ctx, accountNumber)
	if err != nil {
		return nil, storageError(err)
	}
	if account.IsDeleted {
		return nil, domain.ErrAccountNotFound
	}
	return account, nil
}

func (c *CoreUseCase) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.operationTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.operationTimeout)
}

func (c *CoreUseCase) publish(ctx context.Context, event domain.Event) {
	if c.publisher == nil {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = c.now()
	}
	if err := c.publisher.Publish(ctx, event); err != nil {
		log.Printf("Failed to publish %s event: %v", event.Type, err)
	}
}

// audit 紀錄每次資金操作的結果與操作者
func (c *CoreUseCase) audit(actor domain.Actor, action, target string, amount int64, err error) {
	if err != nil {
		log.Printf("[audit] %s %s account=%s amount=%s result=%s err=%v", actor, action, target, domain.FormatAmount(amount), domain.ErrorCode(err), err)
		return
	}
	log.Printf("[audit] %s %s account=%s amount=%s result=OK", actor, action, target, domain.FormatAmount(amount))
}

// storageError 保留業務錯誤，其餘一律視為儲存層錯誤
func storageError(err error) error {
	if err == nil || domain.IsBusinessError(err) || errors.Is(err, domain.ErrStorageUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
}
