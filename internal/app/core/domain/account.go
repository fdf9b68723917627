package domain

import "time"

// BalanceField 指定要調整的餘額欄位
type BalanceField uint8

const (
	// 活存餘額
	FieldBalance BalanceField = iota
	// 定存餘額
	FieldTimeDepositBalance
)

func (f BalanceField) String() string {
	switch f {
	case FieldBalance:
		return "balance"
	case FieldTimeDepositBalance:
		return "time_deposit_balance"
	default:
		return "unknown"
	}
}

// Account 帳戶
//
// Balance 與 TimeDepositBalance 為 ledger 的衍生快取，
// 必須等於該帳戶所有 ledger 紀錄影響的總和。
type Account struct {
	ID                 int64
	OwnerUserID        int64
	AccountNumber      string
	Balance            int64
	TimeDepositBalance int64
	PINHash            string
	IsDeleted          bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Adjust 依 field 調整餘額，結果為負時回傳 ErrInsufficientFunds 且不做任何修改
func (a *Account) Adjust(delta int64, field BalanceField) error {
	switch field {
	case FieldBalance:
		if a.Balance+delta < 0 {
			return ErrInsufficientFunds
		}
		a.Balance += delta
	case FieldTimeDepositBalance:
		if a.TimeDepositBalance+delta < 0 {
			return ErrInsufficientFunds
		}
		a.TimeDepositBalance += delta
	}
	return nil
}

// Snapshot 回傳查詢用的帳戶快照
func (a *Account) Snapshot(open *TimeDeposit) *AccountSnapshot {
	return &AccountSnapshot{
		AccountNumber:      a.AccountNumber,
		OwnerUserID:        a.OwnerUserID,
		Balance:            a.Balance,
		TimeDepositBalance: a.TimeDepositBalance,
		OpenTimeDeposit:    open,
		IsDeleted:          a.IsDeleted,
	}
}

// AccountSnapshot 餘額查詢結果
type AccountSnapshot struct {
	AccountNumber      string
	OwnerUserID        int64
	Balance            int64
	TimeDepositBalance int64
	OpenTimeDeposit    *TimeDeposit
	IsDeleted          bool
}

// ATMSession PIN 驗證後的 ATM 作業範圍，只能操作單一帳戶
type ATMSession struct {
	AccountNumber string
	OwnerUserID   int64
	OpenedAt      time.Time
}

// Actor ATM 操作以帳戶持有人的身分記錄
func (s *ATMSession) Actor() Actor {
	return Actor{UserID: s.OwnerUserID, Role: RoleATM}
}
