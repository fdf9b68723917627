package domain

import "errors"

var (
	// ErrAmountMustBePositive 金額必須為正數
	ErrAmountMustBePositive = errors.New("amount must be positive")

	// ErrInsufficientFunds 餘額不足
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrAccountNotFound 找不到帳戶 (或帳戶已停用)
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccountAlreadyExists 帳號已存在
	ErrAccountAlreadyExists = errors.New("account already exists")

	// ErrSelfTransfer 不可轉帳給自己
	ErrSelfTransfer = errors.New("cannot transfer to the same account")

	// ErrDailyLimitExceeded 超過 ATM 每日提款上限
	ErrDailyLimitExceeded = errors.New("daily withdrawal limit exceeded")

	// ErrDuplicateTimeDeposit 帳戶已有未到期的定存
	ErrDuplicateTimeDeposit = errors.New("account already holds an open time deposit")

	// ErrTimeDepositNotFound 找不到定存
	ErrTimeDepositNotFound = errors.New("time deposit not found")

	// ErrTimeDepositSettled 定存已結清
	ErrTimeDepositSettled = errors.New("time deposit already settled")

	// ErrInvalidDuration 不支援的定存期間
	ErrInvalidDuration = errors.New("unsupported time deposit duration")

	// ErrInvalidPIN PIN 錯誤或格式不符
	ErrInvalidPIN = errors.New("invalid pin")

	// ErrStorageUnavailable 儲存層無法使用 (含逾時)，屬於致命錯誤
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// 對外穩定的錯誤代碼
const (
	CodeOK                   = "OK"
	CodeNotFound             = "NOT_FOUND"
	CodeInsufficientFunds    = "INSUFFICIENT_FUNDS"
	CodeSelfTransfer         = "SELF_TRANSFER"
	CodeDailyLimitExceeded   = "DAILY_LIMIT_EXCEEDED"
	CodeDuplicateTimeDeposit = "DUPLICATE_TIME_DEPOSIT"
	CodeInvalidArgument      = "INVALID_ARGUMENT"
	CodeAlreadyExists        = "ALREADY_EXISTS"
	CodeInvalidPIN           = "INVALID_PIN"
	CodeStorageUnavailable   = "STORAGE_UNAVAILABLE"
	CodeTimeDepositSettled   = "TIME_DEPOSIT_SETTLED"
	CodeUnknown              = "UNKNOWN"
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrAccountNotFound, CodeNotFound},
	{ErrTimeDepositNotFound, CodeNotFound},
	{ErrInsufficientFunds, CodeInsufficientFunds},
	{ErrSelfTransfer, CodeSelfTransfer},
	{ErrDailyLimitExceeded, CodeDailyLimitExceeded},
	{ErrDuplicateTimeDeposit, CodeDuplicateTimeDeposit},
	{ErrAmountMustBePositive, CodeInvalidArgument},
	{ErrInvalidDuration, CodeInvalidArgument},
	{ErrAccountAlreadyExists, CodeAlreadyExists},
	{ErrInvalidPIN, CodeInvalidPIN},
	{ErrTimeDepositSettled, CodeTimeDepositSettled},
	{ErrStorageUnavailable, CodeStorageUnavailable},
}

// ErrorCode 將錯誤轉成對外的錯誤代碼，nil 回傳 CodeOK
func ErrorCode(err error) string {
	if err == nil {
		return CodeOK
	}
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeUnknown
}

// IsBusinessError 回傳 err 是否為可回報給呼叫端的業務錯誤 (非致命)
func IsBusinessError(err error) bool {
	code := ErrorCode(err)
	return code != CodeOK && code != CodeStorageUnavailable && code != CodeUnknown
}
