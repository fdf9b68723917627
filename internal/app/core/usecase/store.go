package usecase

import (
	"context"
	"time"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

// Store 是帳務儲存層的介面 (Account Store + Transaction Ledger + 定存)
//
// 所有會改變餘額的操作都必須透過 Atomic 進行。
type Store interface {
	// Atomic 依遞增順序鎖定 accountNumbers 後，在同一個交易單位內執行 fn。
	// fn 回傳錯誤時全部回滾；儲存層錯誤 (含逾時) 以 domain.ErrStorageUnavailable 包裝。
	Atomic(ctx context.Context, accountNumbers []string, fn func(tx StoreTx) error) error

	// GetAccount 讀取帳戶原始資料 (包含已停用帳戶)，供管理用途
	GetAccount(ctx context.Context, accountNumber string) (*domain.Account, error)
	// SetAccountDeleted 停用或重新啟用帳戶 (會取得該帳戶的鎖)，at 寫入 updated_at
	SetAccountDeleted(ctx context.Context, accountNumber string, deleted bool, at time.Time) error
	// UpdatePINHash 更新 PIN 雜湊
	UpdatePINHash(ctx context.Context, accountNumber string, pinHash string, at time.Time) error

	// ListMaturedDeposits 列出 maturity_date <= now 且尚未結清的定存
	ListMaturedDeposits(ctx context.Context, now time.Time) ([]domain.TimeDeposit, error)

	// ListByAccount 列出與帳戶相關的 ledger 紀錄，由新到舊
	ListByAccount(ctx context.Context, accountNumber string) ([]domain.Transaction, error)
	// ListAll 列出全部 ledger 紀錄，由新到舊
	ListAll(ctx context.Context) ([]domain.Transaction, error)
}

// StoreTx 是 Atomic 內的交易單位，只能存取已鎖定的帳戶
type StoreTx interface {
	// GetByNumber 取得已鎖定的帳戶，已停用視為 domain.ErrAccountNotFound
	GetByNumber(accountNumber string) (*domain.Account, error)
	// CreateAccount 新增帳戶 (帳號須在鎖定集合內)，帳號重複時回傳 domain.ErrAccountAlreadyExists
	CreateAccount(account *domain.Account) error
	// AdjustBalance 調整餘額並以 at 更新 updated_at，結果為負時回傳 domain.ErrInsufficientFunds
	AdjustBalance(accountNumber string, delta int64, field domain.BalanceField, at time.Time) error

	// Append 寫入一筆 ledger 紀錄並回傳其 ID；不提供修改或刪除
	Append(entry *domain.Transaction) (int64, error)
	// SumByKind 加總 [from, to) 區間內來源帳戶為 accountNumber 的指定類型金額
	SumByKind(accountNumber string, kind domain.TransactionType, from, to time.Time) (int64, error)

	// FindOpenTimeDeposit 取得帳戶未結清的定存，沒有時回傳 domain.ErrTimeDepositNotFound
	FindOpenTimeDeposit(accountNumber string) (*domain.TimeDeposit, error)
	CreateTimeDeposit(deposit *domain.TimeDeposit) (int64, error)
	GetTimeDeposit(id int64) (*domain.TimeDeposit, error)
	// SettleTimeDeposit 標記定存已結清，已結清時回傳 domain.ErrTimeDepositSettled
	SettleTimeDeposit(id int64, settledAt time.Time) error
}

// Publisher 發送已提交的帳務事件 (best effort)
type Publisher interface {
	Publish(ctx context.Context, event domain.Event) error
}
