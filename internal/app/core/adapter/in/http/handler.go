package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

const (
	// ActorIDHeader 上游已驗證的操作者 ID
	ActorIDHeader = "X-Actor-ID"
	// ActorRoleHeader 操作者角色，未提供時視為 administrator
	ActorRoleHeader = "X-Actor-Role"

	actorKey = "actor"
)

// LedgerService 定義管理 API 使用的帳務操作
type LedgerService interface {
	CreateAccount(ctx context.Context, actor domain.Actor, ownerUserID int64, pin string, openingBalance int64) (*domain.Account, error)
	DeactivateAccount(ctx context.Context, actor domain.Actor, accountNumber string) error
	ActivateAccount(ctx context.Context, actor domain.Actor, accountNumber string) error
	Deposit(ctx context.Context, actor domain.Actor, accountNumber string, amount int64) (*domain.Receipt, error)
	Withdraw(ctx context.Context, actor domain.Actor, accountNumber string, amount int64) (*domain.Receipt, error)
	Transfer(ctx context.Context, actor domain.Actor, sourceNumber, destNumber string, amount int64) (*domain.Receipt, error)
	OpenTimeDeposit(ctx context.Context, actor domain.Actor, accountNumber string, amount int64, durationMonths int) (*domain.Receipt, error)
	Inquire(ctx context.Context, actor domain.Actor, accountNumber string) (*domain.AccountSnapshot, error)
	History(ctx context.Context, actor domain.Actor, accountNumber string) ([]domain.Transaction, error)
	ListAllTransactions(ctx context.Context, actor domain.Actor) ([]domain.Transaction, error)
	SweepMaturedDeposits(ctx context.Context) (int, error)
}

type Handler struct {
	ledger LedgerService
}

func NewHandler(ledger LedgerService) *Handler {
	return &Handler{ledger: ledger}
}

// Register 掛載所有路由
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/v1", RequireActor())
	v1.POST("/accounts", h.CreateAccount)
	v1.GET("/accounts/:accountNumber", h.GetAccount)
	v1.POST("/accounts/:accountNumber/deactivate", h.DeactivateAccount)
	v1.POST("/accounts/:accountNumber/activate", h.ActivateAccount)
	v1.POST("/accounts/:accountNumber/deposits", h.Deposit)
	v1.POST("/accounts/:accountNumber/withdrawals", h.Withdraw)
	v1.POST("/accounts/:accountNumber/time-deposits", h.OpenTimeDeposit)
	v1.GET("/accounts/:accountNumber/transactions", h.ListAccountTransactions)
	v1.POST("/transfers", h.Transfer)
	v1.GET("/transactions", h.ListTransactions)
	v1.POST("/time-deposits/sweep", h.SweepMaturedDeposits)
}

// RequireActor 自 header 取得操作者，缺少時回傳 401
func RequireActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.GetHeader(ActorIDHeader), 10, 64)
		if err != nil || id <= 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Code: "UNAUTHENTICATED", Message: "missing or invalid " + ActorIDHeader})
			return
		}
		role := domain.RoleAdministrator
		if r := c.GetHeader(ActorRoleHeader); r != "" {
			role = domain.Role(r)
		}
		c.Set(actorKey, domain.Actor{UserID: id, Role: role})
		c.Next()
	}
}

func actorFrom(c *gin.Context) domain.Actor {
	actor, _ := c.MustGet(actorKey).(domain.Actor)
	return actor
}

func (h *Handler) CreateAccount(c *gin.Context) {
	var req CreateAccountRequest
	if !bindAndValidate(c, &req) {
		return
	}
	opening, ok := amountOf(c, req.OpeningBalance)
	if !ok {
		return
	}
	account, err := h.ledger.CreateAccount(c.Request.Context(), actorFrom(c), req.OwnerUserID, req.PIN, opening)
	if err != nil {
		respondWithDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toAccountResponse(account.Snapshot(nil)))
}

func (h *Handler) GetAccount(c *gin.Context) {
	number, ok := accountParam(c)
	if !ok {
		return
	}
	snap, err := h.ledger.Inquire(c.Request.Context(), actorFrom(c), number)
	if err != nil {
		respondWithDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, toAccountResponse(snap))
}

func (h *Handler) DeactivateAccount(c *gin.Context) {
	h.setStatus(c, h.ledger.DeactivateAccount)
}

func (h *Handler) ActivateAccount(c *gin.Context) {
	h.setStatus(c, h.ledger.ActivateAccount)
}

func (h *Handler) setStatus(c *gin.Context, op func(context.Context, domain.Actor, string) error) {
	number, ok := accountParam(c)
	if !ok {
		return
	}
	if err := op(c.Request.Context(), actorFrom(c), number); err != nil {
		respondWithDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) Deposit(c *gin.Context) {
	h.moveMoney(c, h.ledger.Deposit)
}

func (h *Handler) Withdraw(c *gin.Context) {
	h.moveMoney(c, h.ledger.Withdraw)
}

func (h *Handler) moveMoney(c *gin.Context, op func(context.Context, domain.Actor, string, int64) (*domain.Receipt, error)) {
	number, ok := accountParam(c)
	if !ok {
		return
	}
	var req AmountRequest
	if !bindAndValidate(c, &req) {
		return
	}
	amount, ok := amountOf(c, req.Amount)
	if !ok {
		return
	}
	receipt, err := op(c.Request.Context(), actorFrom(c), number, amount)
	if err != nil {
		respondWithDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toReceiptResponse(receipt))
}

func (h *Handler) OpenTimeDeposit(c *gin.Context) {
	number, ok := accountParam(c)
	if !ok {
		return
	}
	var req TimeDepositRequest
	if !bindAndValidate(c, &req) {
		return
	}
	amount, ok := amountOf(c, req.Amount)
	if !ok {
		return
	}
	receipt, err := h.ledger.OpenTimeDeposit(c.Request.Context(), actorFrom(c), number, amount, req.DurationMonths)
	if err != nil {
		respondWithDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toReceiptResponse(receipt))
}

func (h *Handler) Transfer(c *gin.Context) {
	var req TransferRequest
	if !bindAndValidate(c, &req) {
		return
	}
	amount, ok := amountOf(c, req.Amount)
	if !ok {
		return
	}
	receipt, err := h.ledger.Transfer(c.Request.Context(), actorFrom(c), req.SourceAccount, req.DestAccount, amount)
	if err != nil {
		respondWithDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toReceiptResponse(receipt))
}

func (h *Handler) ListAccountTransactions(c *gin.Context) {
	number, ok := accountParam(c)
	if !ok {
		return
	}
	entries, err := h.ledger.History(c.Request.Context(), actorFrom(c), number)
	if err != nil {
		respondWithDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, toTransactionsResponse(entries))
}

func (h *Handler) ListTransactions(c *gin.Context) {
	entries, err := h.ledger.ListAllTransactions(c.Request.Context(), actorFrom(c))
	if err != nil {
		respondWithDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, toTransactionsResponse(entries))
}

// SweepMaturedDeposits 手動觸發一次到期結清 (排程以外的補跑)
func (h *Handler) SweepMaturedDeposits(c *gin.Context) {
	n, err := h.ledger.SweepMaturedDeposits(c.Request.Context())
	if err != nil {
		respondWithDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, SweepResponse{Settled: n})
}

func bindAndValidate(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		respondWithError(c, http.StatusBadRequest, domain.CodeInvalidArgument, "Invalid request body")
		return false
	}
	if validationErrors := validateRequest(req); validationErrors != nil {
		c.JSON(http.StatusBadRequest, BadRequestErrorResponse{
			Message: "Invalid request data",
			Details: validationErrors,
		})
		return false
	}
	return true
}

func accountParam(c *gin.Context) (string, bool) {
	number := c.Param("accountNumber")
	if !validAccountNumber(number) {
		respondWithError(c, http.StatusBadRequest, domain.CodeInvalidArgument, "Account number must be 10 digits")
		return "", false
	}
	return number, true
}

// amountOf 將十進位金額轉為最小單位，超過兩位小數回傳 400
func amountOf(c *gin.Context, d decimal.Decimal) (int64, bool) {
	amount := domain.FromDecimal(d)
	if !domain.ToDecimal(amount).Equal(d) {
		respondWithError(c, http.StatusBadRequest, domain.CodeInvalidArgument, "Amount must have at most 2 decimal places")
		return 0, false
	}
	return amount, true
}

func respondWithError(c *gin.Context, status int, code, message string) {
	c.JSON(status, ErrorResponse{Code: code, Message: message})
}

func respondWithDomainError(c *gin.Context, err error) {
	code := domain.ErrorCode(err)
	respondWithError(c, statusFor(code), code, messageFor(err))
}

func statusFor(code string) int {
	switch code {
	case domain.CodeNotFound:
		return http.StatusNotFound
	case domain.CodeInsufficientFunds, domain.CodeSelfTransfer, domain.CodeDailyLimitExceeded:
		return http.StatusUnprocessableEntity
	case domain.CodeDuplicateTimeDeposit, domain.CodeAlreadyExists, domain.CodeTimeDepositSettled:
		return http.StatusConflict
	case domain.CodeInvalidArgument, domain.CodeInvalidPIN:
		return http.StatusBadRequest
	case domain.CodeStorageUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// messageFor 儲存層與未知錯誤不回傳內部細節
func messageFor(err error) string {
	if domain.IsBusinessError(err) {
		return err.Error()
	}
	if errors.Is(err, domain.ErrStorageUnavailable) {
		return "Ledger storage is unavailable, please retry later"
	}
	return "Internal error"
}
