package domain

import "github.com/shopspring/decimal"

// 金額使用 int64 最小貨幣單位 (分)，精度：小數點後 2 位
const (
	CurrencyScale    = 100
	currencyDecimals = 2
)

// FromUnits 將貨幣單位 (例如 25000 元) 轉成最小單位
func FromUnits(units int64) int64 {
	return units * CurrencyScale
}

// FromDecimal 將十進位金額轉成最小單位，超過精度的部分四捨五入
func FromDecimal(d decimal.Decimal) int64 {
	return d.Shift(currencyDecimals).Round(0).IntPart()
}

// ToDecimal 將最小單位轉回十進位金額
func ToDecimal(amount int64) decimal.Decimal {
	return decimal.New(amount, -currencyDecimals)
}

// FormatAmount 以固定兩位小數輸出金額
func FormatAmount(amount int64) string {
	return ToDecimal(amount).StringFixed(currencyDecimals)
}
