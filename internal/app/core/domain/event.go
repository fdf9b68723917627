package domain

import "time"

// Event types
const (
	EventTransactionAppended = "ledger.transaction.appended"
	EventTimeDepositOpened   = "ledger.time_deposit.opened"
	EventTimeDepositSettled  = "ledger.time_deposit.settled"
	EventAccountStatus       = "ledger.account.status"
)

// Event 已提交的帳務事件，僅在 commit 之後發送
type Event struct {
	Type        string
	Actor       Actor
	Transaction *Transaction
	TimeDeposit *TimeDeposit
	Account     *AccountSnapshot
	OccurredAt  time.Time
}
