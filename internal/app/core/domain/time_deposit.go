package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DaysPerMonth 定存期間以每月 30 天計算
const DaysPerMonth = 30

// interestTiers 依承諾月數查表的年利率，建立時決定，到期不再重新計算
var interestTiers = map[int]decimal.Decimal{
	3:  decimal.RequireFromString("0.07"),
	6:  decimal.RequireFromString("0.08"),
	12: decimal.RequireFromString("0.09"),
}

// InterestRateFor 回傳指定月數的利率，不支援的月數回傳 ErrInvalidDuration
func InterestRateFor(months int) (decimal.Decimal, error) {
	rate, ok := interestTiers[months]
	if !ok {
		return decimal.Zero, ErrInvalidDuration
	}
	return rate, nil
}

// TimeDeposit 定存
//
// 狀態: OPEN -> MATURED (IsSettled=true)，單向且只發生一次。
type TimeDeposit struct {
	ID              int64
	AccountNumber   string
	PrincipalAmount int64
	InterestRate    decimal.Decimal
	DurationMonths  int
	MaturityDate    time.Time
	IsSettled       bool
	SettledAt       *time.Time
	CreatedAt       time.Time
}

// NewTimeDeposit 依月數查表建立一筆定存
func NewTimeDeposit(accountNumber string, principal int64, months int, now time.Time) (*TimeDeposit, error) {
	if principal <= 0 {
		return nil, ErrAmountMustBePositive
	}
	rate, err := InterestRateFor(months)
	if err != nil {
		return nil, err
	}
	return &TimeDeposit{
		AccountNumber:   accountNumber,
		PrincipalAmount: principal,
		InterestRate:    rate,
		DurationMonths:  months,
		MaturityDate:    now.AddDate(0, 0, months*DaysPerMonth),
		CreatedAt:       now,
	}, nil
}

// IsMature 是否已到期且尚未結清
func (d *TimeDeposit) IsMature(now time.Time) bool {
	return !d.IsSettled && !now.Before(d.MaturityDate)
}

// Payout 到期應入帳金額 principal * (1 + rate)，四捨五入至最小單位
func (d *TimeDeposit) Payout() int64 {
	return decimal.NewFromInt(d.PrincipalAmount).
		Mul(decimal.NewFromInt(1).Add(d.InterestRate)).
		Round(0).
		IntPart()
}

// Interest 到期利息
func (d *TimeDeposit) Interest() int64 {
	return d.Payout() - d.PrincipalAmount
}
