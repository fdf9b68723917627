package domain

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// TransactionType 交易類型
type TransactionType uint8

const (
	// 臨櫃存款
	TransactionTypeDeposit TransactionType = iota + 1
	// 臨櫃提款
	TransactionTypeWithdraw
	// 轉帳
	TransactionTypeFundTransfer
	// 轉入定存
	TransactionTypeTimeDeposit
	// ATM 提款
	TransactionTypeATMWithdraw
	// ATM 存款
	TransactionTypeATMDeposit
	// ATM 轉帳
	TransactionTypeATMFundTransfer
	// 定存到期結清 (本金加利息回到活存)
	TransactionTypeTimeDepositSettlement
)

var transactionTypeNames = map[TransactionType]string{
	TransactionTypeDeposit:               "DEPOSIT",
	TransactionTypeWithdraw:              "WITHDRAW",
	TransactionTypeFundTransfer:          "FUND_TRANSFER",
	TransactionTypeTimeDeposit:           "TIME_DEPOSIT",
	TransactionTypeATMWithdraw:           "ATM_WITHDRAW",
	TransactionTypeATMDeposit:            "ATM_DEPOSIT",
	TransactionTypeATMFundTransfer:       "ATM_FUND_TRANSFER",
	TransactionTypeTimeDepositSettlement: "TIME_DEPOSIT_SETTLEMENT",
}

func (t TransactionType) String() string {
	if name, ok := transactionTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TransactionType(%d)", uint8(t))
}

// MarshalText 以名稱序列化，WAL 與 API 皆可直接閱讀
func (t TransactionType) MarshalText() ([]byte, error) {
	name, ok := transactionTypeNames[t]
	if !ok {
		return nil, fmt.Errorf("unknown transaction type %d", uint8(t))
	}
	return []byte(name), nil
}

func (t *TransactionType) UnmarshalText(text []byte) error {
	parsed, err := ParseTransactionType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseTransactionType 由名稱取得交易類型
func ParseTransactionType(name string) (TransactionType, error) {
	for t, n := range transactionTypeNames {
		if n == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown transaction type %q", name)
}

// Transaction 一筆 ledger 紀錄，寫入後不可修改
type Transaction struct {
	// ID: 由儲存層分配的遞增編號
	ID int64
	// RefID: 外部追蹤號
	RefID uuid.UUID
	// AccountNumber: 來源帳戶
	AccountNumber string
	// ReferenceNumber: 轉帳為對方帳戶，其餘等於來源帳戶
	ReferenceNumber string
	// Amount: 正數金額 (最小單位)
	Amount int64
	Type   TransactionType
	// ActorID: 執行此操作的使用者 (稽核用)
	ActorID   int64
	CreatedAt time.Time
}

// NewTransaction 建立一筆尚未寫入的 ledger 紀錄
func NewTransaction(kind TransactionType, source, reference string, amount int64, actor Actor, now time.Time) *Transaction {
	if reference == "" {
		reference = source
	}
	return &Transaction{
		RefID:           uuid.New(),
		AccountNumber:   source,
		ReferenceNumber: reference,
		Amount:          amount,
		Type:            kind,
		ActorID:         actor.UserID,
		CreatedAt:       now,
	}
}

// Involves 此紀錄是否涉及該帳戶
func (t *Transaction) Involves(accountNumber string) bool {
	return t.AccountNumber == accountNumber || t.ReferenceNumber == accountNumber
}

// BalanceEffect 回傳此紀錄對指定帳戶活存餘額的影響
func (t *Transaction) BalanceEffect(accountNumber string) int64 {
	switch t.Type {
	case TransactionTypeDeposit, TransactionTypeATMDeposit, TransactionTypeTimeDepositSettlement:
		if t.AccountNumber == accountNumber {
			return t.Amount
		}
	case TransactionTypeWithdraw, TransactionTypeATMWithdraw, TransactionTypeTimeDeposit:
		if t.AccountNumber == accountNumber {
			return -t.Amount
		}
	case TransactionTypeFundTransfer, TransactionTypeATMFundTransfer:
		switch accountNumber {
		case t.AccountNumber:
			return -t.Amount
		case t.ReferenceNumber:
			return t.Amount
		}
	}
	return 0
}

// LockOrder 將帳號去重並依遞增排序，所有多帳戶鎖定都必須照這個順序
func LockOrder(accountNumbers ...string) []string {
	ids := make([]string, 0, len(accountNumbers))
	seen := make(map[string]struct{}, len(accountNumbers))
	for _, n := range accountNumbers {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		ids = append(ids, n)
	}
	sort.Strings(ids)
	return ids
}

// SortNewestFirst 依建立時間 (再依 ID) 由新到舊排序
func SortNewestFirst(entries []Transaction) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.After(entries[j].CreatedAt)
		}
		return entries[i].ID > entries[j].ID
	})
}

// Receipt 成功的資金異動結果
type Receipt struct {
	Transaction        Transaction
	Balance            int64
	TimeDepositBalance int64
	// TimeDeposit: 僅開立定存時有值
	TimeDeposit *TimeDeposit
}
