package mysql

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

// sqlAccount 對應資料庫的 accounts 表
type sqlAccount struct {
	ID                 int64  `gorm:"primaryKey;autoIncrement"`
	OwnerUserID        int64  `gorm:"index"`
	AccountNumber      string `gorm:"type:char(10);uniqueIndex"`
	Balance            int64
	TimeDepositBalance int64
	PINHash            string `gorm:"column:pin_hash;type:varchar(72)"`
	IsDeleted          bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (*sqlAccount) TableName() string {
	return "accounts"
}

// sqlTransaction 對應資料庫的 transactions 表 (append-only)
type sqlTransaction struct {
	ID              int64  `gorm:"primaryKey;autoIncrement"`
	RefID           []byte `gorm:"column:ref_id;type:binary(16);uniqueIndex"`
	AccountNumber   string `gorm:"type:char(10);index:idx_account_type_created,priority:1"`
	ReferenceNumber string `gorm:"type:char(10);index"`
	Amount          int64
	Type            uint8     `gorm:"index:idx_account_type_created,priority:2"`
	ActorID         int64     `gorm:"index"`
	CreatedAt       time.Time `gorm:"index:idx_account_type_created,priority:3"`
}

func (*sqlTransaction) TableName() string {
	return "transactions"
}

// sqlTimeDeposit 對應資料庫的 time_deposits 表
type sqlTimeDeposit struct {
	ID              int64  `gorm:"primaryKey;autoIncrement"`
	AccountNumber   string `gorm:"type:char(10);index"`
	PrincipalAmount int64
	InterestRate    decimal.Decimal `gorm:"type:decimal(6,4)"`
	DurationMonths  int
	MaturityDate    time.Time `gorm:"index"`
	IsSettled       bool      `gorm:"index"`
	SettledAt       *time.Time
	CreatedAt       time.Time
}

func (*sqlTimeDeposit) TableName() string {
	return "time_deposits"
}

func toDomainAccount(row *sqlAccount) *domain.Account {
	return &domain.Account{
		ID:                 row.ID,
		OwnerUserID:        row.OwnerUserID,
		AccountNumber:      row.AccountNumber,
		Balance:            row.Balance,
		TimeDepositBalance: row.TimeDepositBalance,
		PINHash:            row.PINHash,
		IsDeleted:          row.IsDeleted,
		CreatedAt:          row.CreatedAt,
		UpdatedAt:          row.UpdatedAt,
	}
}

func fromDomainAccount(a *domain.Account) *sqlAccount {
	return &sqlAccount{
		ID:                 a.ID,
		OwnerUserID:        a.OwnerUserID,
		AccountNumber:      a.AccountNumber,
		Balance:            a.Balance,
		TimeDepositBalance: a.TimeDepositBalance,
		PINHash:            a.PINHash,
		IsDeleted:          a.IsDeleted,
		CreatedAt:          a.CreatedAt.UTC(),
		UpdatedAt:          a.UpdatedAt.UTC(),
	}
}

func fromDomainTransaction(t *domain.Transaction) *sqlTransaction {
	// uuid.UUID 是 [16]byte，直接存成 binary(16)
	refID := t.RefID
	return &sqlTransaction{
		ID:              t.ID,
		RefID:           refID[:],
		AccountNumber:   t.AccountNumber,
		ReferenceNumber: t.ReferenceNumber,
		Amount:          t.Amount,
		Type:            uint8(t.Type),
		ActorID:         t.ActorID,
		CreatedAt:       t.CreatedAt.UTC(),
	}
}

func toDomainTransaction(row *sqlTransaction) (domain.Transaction, error) {
	refID, err := uuid.FromBytes(row.RefID)
	if err != nil {
		return domain.Transaction{}, err
	}
	return domain.Transaction{
		ID:              row.ID,
		RefID:           refID,
		AccountNumber:   row.AccountNumber,
		ReferenceNumber: row.ReferenceNumber,
		Amount:          row.Amount,
		Type:            domain.TransactionType(row.Type),
		ActorID:         row.ActorID,
		CreatedAt:       row.CreatedAt,
	}, nil
}

func fromDomainTimeDeposit(d *domain.TimeDeposit) *sqlTimeDeposit {
	row := &sqlTimeDeposit{
		ID:              d.ID,
		AccountNumber:   d.AccountNumber,
		PrincipalAmount: d.PrincipalAmount,
		InterestRate:    d.InterestRate,
		DurationMonths:  d.DurationMonths,
		MaturityDate:    d.MaturityDate.UTC(),
		IsSettled:       d.IsSettled,
		CreatedAt:       d.CreatedAt.UTC(),
	}
	if d.SettledAt != nil {
		at := d.SettledAt.UTC()
		row.SettledAt = &at
	}
	return row
}

func toDomainTimeDeposit(row *sqlTimeDeposit) *domain.TimeDeposit {
	return &domain.TimeDeposit{
		ID:              row.ID,
		AccountNumber:   row.AccountNumber,
		PrincipalAmount: row.PrincipalAmount,
		InterestRate:    row.InterestRate,
		DurationMonths:  row.DurationMonths,
		MaturityDate:    row.MaturityDate,
		IsSettled:       row.IsSettled,
		SettledAt:       row.SettledAt,
		CreatedAt:       row.CreatedAt,
	}
}
