package mysql

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
)

// tx 包裝一個已鎖定帳戶列的 gorm Transaction
// 餘額修改先在記憶體中累積，flush 時一次寫回。
type tx struct {
	db       *gorm.DB
	locked   map[string]struct{}
	accounts map[string]*sqlAccount
	dirty    []string
}

func newTx(db *gorm.DB, locked []string, rows []sqlAccount) *tx {
	t := &tx{
		db:       db,
		locked:   make(map[string]struct{}, len(locked)),
		accounts: make(map[string]*sqlAccount, len(rows)),
	}
	for _, n := range locked {
		t.locked[n] = struct{}{}
	}
	for i := range rows {
		t.accounts[rows[i].AccountNumber] = &rows[i]
	}
	return t
}

func (t *tx) account(accountNumber string) (*sqlAccount, error) {
	if _, ok := t.locked[accountNumber]; !ok {
		return nil, fmt.Errorf("account %s is not locked in this unit of work", accountNumber)
	}
	row, ok := t.accounts[accountNumber]
	if !ok || row.IsDeleted {
		return nil, domain.ErrAccountNotFound
	}
	return row, nil
}

func (t *tx) GetByNumber(accountNumber string) (*domain.Account, error) {
	row, err := t.account(accountNumber)
	if err != nil {
		return nil, err
	}
	return toDomainAccount(row), nil
}

// CreateAccount 在交易內新增帳戶列，帳號唯一鍵衝突時回傳 domain.ErrAccountAlreadyExists
func (t *tx) CreateAccount(account *domain.Account) error {
	if _, ok := t.locked[account.AccountNumber]; !ok {
		return fmt.Errorf("account %s is not locked in this unit of work", account.AccountNumber)
	}
	if _, ok := t.accounts[account.AccountNumber]; ok {
		return domain.ErrAccountAlreadyExists
	}
	row := fromDomainAccount(account)
	row.ID = 0
	err := t.db.Create(row).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.ErrAccountAlreadyExists
	}
	if err != nil {
		return storageErr(err)
	}
	t.accounts[row.AccountNumber] = row
	account.ID = row.ID
	return nil
}

func (t *tx) AdjustBalance(accountNumber string, delta int64, field domain.BalanceField, at time.Time) error {
	row, err := t.account(accountNumber)
	if err != nil {
		return err
	}
	a := toDomainAccount(row)
	if err := a.Adjust(delta, field); err != nil {
		return err
	}
	row.Balance = a.Balance
	row.TimeDepositBalance = a.TimeDepositBalance
	row.UpdatedAt = at.UTC()
	for _, n := range t.dirty {
		if n == accountNumber {
			return nil
		}
	}
	t.dirty = append(t.dirty, accountNumber)
	return nil
}

func (t *tx) Append(entry *domain.Transaction) (int64, error) {
	if entry.Amount <= 0 {
		return 0, domain.ErrAmountMustBePositive
	}
	row := fromDomainTransaction(entry)
	row.ID = 0
	if err := t.db.Create(row).Error; err != nil {
		return 0, storageErr(err)
	}
	return row.ID, nil
}

func (t *tx) SumByKind(accountNumber string, kind domain.TransactionType, from, to time.Time) (int64, error) {
	var sum int64
	err := t.db.Model(&sqlTransaction{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("account_number = ? AND type = ? AND created_at >= ? AND created_at < ?", accountNumber, uint8(kind), from.UTC(), to.UTC()).
		Scan(&sum).Error
	if err != nil {
		return 0, storageErr(err)
	}
	return sum, nil
}

func (t *tx) FindOpenTimeDeposit(accountNumber string) (*domain.TimeDeposit, error) {
	return findOpenTimeDeposit(t.db, accountNumber)
}

func (t *tx) CreateTimeDeposit(deposit *domain.TimeDeposit) (int64, error) {
	row := fromDomainTimeDeposit(deposit)
	row.ID = 0
	if err := t.db.Create(row).Error; err != nil {
		return 0, storageErr(err)
	}
	return row.ID, nil
}

func (t *tx) GetTimeDeposit(id int64) (*domain.TimeDeposit, error) {
	var row sqlTimeDeposit
	err := t.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrTimeDepositNotFound
	}
	if err != nil {
		return nil, storageErr(err)
	}
	return toDomainTimeDeposit(&row), nil
}

func (t *tx) SettleTimeDeposit(id int64, settledAt time.Time) error {
	at := settledAt.UTC()
	result := t.db.Model(&sqlTimeDeposit{}).
		Where("id = ? AND is_settled = ?", id, false).
		Updates(map[string]any{"is_settled": true, "settled_at": &at})
	if result.Error != nil {
		return storageErr(result.Error)
	}
	if result.RowsAffected == 0 {
		// 不存在或已被結清
		if _, err := t.GetTimeDeposit(id); err != nil {
			return err
		}
		return domain.ErrTimeDepositSettled
	}
	return nil
}

// flush 寫回有異動的帳戶餘額
func (t *tx) flush() error {
	for _, n := range t.dirty {
		row := t.accounts[n]
		err := t.db.Model(&sqlAccount{}).
			Where("id = ?", row.ID).
			Updates(map[string]any{
				"balance":              row.Balance,
				"time_deposit_balance": row.TimeDepositBalance,
				"updated_at":           row.UpdatedAt,
			}).Error
		if err != nil {
			return storageErr(err)
		}
	}
	return nil
}

var _ usecase.StoreTx = (*tx)(nil)
