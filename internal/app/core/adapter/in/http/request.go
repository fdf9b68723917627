package http

import (
	"reflect"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

var validate = newValidator()

// newValidator 讓 validator 能以數值比較 decimal.Decimal (gte=500 等規則)
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	return v
}

// 櫃台的最低金額限制 (貨幣單位)
type CreateAccountRequest struct {
	OwnerUserID    int64           `json:"owner_user_id" validate:"required,gt=0"`
	PIN            string          `json:"pin" validate:"required,len=4,numeric"`
	OpeningBalance decimal.Decimal `json:"opening_balance" validate:"gte=1000"`
}

type AmountRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"gte=500"`
}

type TimeDepositRequest struct {
	Amount         decimal.Decimal `json:"amount" validate:"gte=500"`
	DurationMonths int             `json:"duration_months" validate:"required,oneof=3 6 12"`
}

type TransferRequest struct {
	SourceAccount string          `json:"source_account" validate:"required,len=10,numeric"`
	DestAccount   string          `json:"dest_account" validate:"required,len=10,numeric,nefield=SourceAccount"`
	Amount        decimal.Decimal `json:"amount" validate:"gte=500"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

type BadRequestErrorResponse struct {
	Message string            `json:"message"`
	Details []ValidationError `json:"details"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// validateRequest 回傳欄位驗證錯誤，沒有錯誤時回傳 nil
func validateRequest(obj any) []ValidationError {
	err := validate.Struct(obj)
	if err == nil {
		return nil
	}
	fieldErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return []ValidationError{{Message: err.Error(), Type: "invalid"}}
	}
	var out []ValidationError
	for _, fe := range fieldErrors {
		out = append(out, ValidationError{
			Field:   fe.Field(),
			Message: errorMessage(fe),
			Type:    fe.Tag(),
		})
	}
	return out
}

func validAccountNumber(number string) bool {
	return validate.Var(number, "len=10,numeric") == nil
}

func errorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "len":
		return "Length must be " + fe.Param()
	case "numeric":
		return "Must contain digits only"
	case "gt":
		return "Value must be greater than " + fe.Param()
	case "gte":
		return "Value must be greater than or equal to " + fe.Param()
	case "oneof":
		return "Value must be one of " + fe.Param()
	case "nefield":
		return "Must differ from " + fe.Param()
	default:
		return "Invalid value"
	}
}

type AccountResponse struct {
	AccountNumber      string               `json:"account_number"`
	OwnerUserID        int64                `json:"owner_user_id"`
	Balance            decimal.Decimal      `json:"balance"`
	TimeDepositBalance decimal.Decimal      `json:"time_deposit_balance"`
	Active             bool                 `json:"active"`
	OpenTimeDeposit    *TimeDepositResponse `json:"open_time_deposit,omitempty"`
}

type TimeDepositResponse struct {
	ID             int64           `json:"id"`
	Principal      decimal.Decimal `json:"principal"`
	InterestRate   decimal.Decimal `json:"interest_rate"`
	DurationMonths int             `json:"duration_months"`
	MaturityDate   time.Time       `json:"maturity_date"`
	Payout         decimal.Decimal `json:"payout"`
}

type TransactionResponse struct {
	ID              int64           `json:"id"`
	RefID           string          `json:"ref_id"`
	Type            string          `json:"type"`
	AccountNumber   string          `json:"account_number"`
	ReferenceNumber string          `json:"reference_number"`
	Amount          decimal.Decimal `json:"amount"`
	ActorID         int64           `json:"actor_id"`
	CreatedAt       time.Time       `json:"created_at"`
}

type ReceiptResponse struct {
	Transaction        TransactionResponse  `json:"transaction"`
	Balance            decimal.Decimal      `json:"balance"`
	TimeDepositBalance decimal.Decimal      `json:"time_deposit_balance"`
	TimeDeposit        *TimeDepositResponse `json:"time_deposit,omitempty"`
}

type ListTransactionsResponse struct {
	Transactions []TransactionResponse `json:"transactions"`
}

type SweepResponse struct {
	Settled int `json:"settled"`
}

func toAccountResponse(s *domain.AccountSnapshot) AccountResponse {
	return AccountResponse{
		AccountNumber:      s.AccountNumber,
		OwnerUserID:        s.OwnerUserID,
		Balance:            domain.ToDecimal(s.Balance),
		TimeDepositBalance: domain.ToDecimal(s.TimeDepositBalance),
		Active:             !s.IsDeleted,
		OpenTimeDeposit:    toTimeDepositResponse(s.OpenTimeDeposit),
	}
}

func toTimeDepositResponse(d *domain.TimeDeposit) *TimeDepositResponse {
	if d == nil {
		return nil
	}
	return &TimeDepositResponse{
		ID:             d.ID,
		Principal:      domain.ToDecimal(d.PrincipalAmount),
		InterestRate:   d.InterestRate,
		DurationMonths: d.DurationMonths,
		MaturityDate:   d.MaturityDate,
		Payout:         domain.ToDecimal(d.Payout()),
	}
}

func toTransactionResponse(t *domain.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:              t.ID,
		RefID:           t.RefID.String(),
		Type:            t.Type.String(),
		AccountNumber:   t.AccountNumber,
		ReferenceNumber: t.ReferenceNumber,
		Amount:          domain.ToDecimal(t.Amount),
		ActorID:         t.ActorID,
		CreatedAt:       t.CreatedAt,
	}
}

func toTransactionsResponse(entries []domain.Transaction) ListTransactionsResponse {
	out := make([]TransactionResponse, 0, len(entries))
	for i := range entries {
		out = append(out, toTransactionResponse(&entries[i]))
	}
	return ListTransactionsResponse{Transactions: out}
}

func toReceiptResponse(r *domain.Receipt) ReceiptResponse {
	return ReceiptResponse{
		Transaction:        toTransactionResponse(&r.Transaction),
		Balance:            domain.ToDecimal(r.Balance),
		TimeDepositBalance: domain.ToDecimal(r.TimeDepositBalance),
		TimeDeposit:        toTimeDepositResponse(r.TimeDeposit),
	}
}
