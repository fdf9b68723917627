package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

// ---- mock implementation ----

type mockLedger struct {
	createFn   func(ownerUserID int64, pin string, opening int64) (*domain.Account, error)
	depositFn  func(actor domain.Actor, number string, amount int64) (*domain.Receipt, error)
	transferFn func(src, dst string, amount int64) (*domain.Receipt, error)
	tdFn       func(number string, amount int64, months int) (*domain.Receipt, error)
	inquireFn  func(number string) (*domain.AccountSnapshot, error)
	statusFn   func(number string, deleted bool) error
	sweepFn    func() (int, error)
}

func (m *mockLedger) CreateAccount(_ context.Context, _ domain.Actor, ownerUserID int64, pin string, opening int64) (*domain.Account, error) {
	if m.createFn != nil {
		return m.createFn(ownerUserID, pin, opening)
	}
	return nil, fmt.Errorf("not configured")
}

func (m *mockLedger) DeactivateAccount(_ context.Context, _ domain.Actor, number string) error {
	if m.statusFn != nil {
		return m.statusFn(number, true)
	}
	return fmt.Errorf("not configured")
}

func (m *mockLedger) ActivateAccount(_ context.Context, _ domain.Actor, number string) error {
	if m.statusFn != nil {
		return m.statusFn(number, false)
	}
	return fmt.Errorf("not configured")
}

func (m *mockLedger) Deposit(_ context.Context, actor domain.Actor, number string, amount int64) (*domain.Receipt, error) {
	if m.depositFn != nil {
		return m.depositFn(actor, number, amount)
	}
	return nil, fmt.Errorf("not configured")
}

func (m *mockLedger) Withdraw(_ context.Context, actor domain.Actor, number string, amount int64) (*domain.Receipt, error) {
	return nil, domain.ErrInsufficientFunds
}

func (m *mockLedger) Transfer(_ context.Context, _ domain.Actor, src, dst string, amount int64) (*domain.Receipt, error) {
	if m.transferFn != nil {
		return m.transferFn(src, dst, amount)
	}
	return nil, fmt.Errorf("not configured")
}

func (m *mockLedger) OpenTimeDeposit(_ context.Context, _ domain.Actor, number string, amount int64, months int) (*domain.Receipt, error) {
	if m.tdFn != nil {
		return m.tdFn(number, amount, months)
	}
	return nil, fmt.Errorf("not configured")
}

func (m *mockLedger) Inquire(_ context.Context, _ domain.Actor, number string) (*domain.AccountSnapshot, error) {
	if m.inquireFn != nil {
		return m.inquireFn(number)
	}
	return nil, fmt.Errorf("not configured")
}

func (m *mockLedger) History(context.Context, domain.Actor, string) ([]domain.Transaction, error) {
	return []domain.Transaction{}, nil
}

func (m *mockLedger) ListAllTransactions(context.Context, domain.Actor) ([]domain.Transaction, error) {
	return nil, fmt.Errorf("%w: connection refused", domain.ErrStorageUnavailable)
}

func (m *mockLedger) SweepMaturedDeposits(context.Context) (int, error) {
	if m.sweepFn != nil {
		return m.sweepFn()
	}
	return 0, nil
}

// ---- helpers ----

const testAccount = "1000000001"

func newTestRouter(ledger LedgerService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(ledger).Register(r)
	return r
}

func doRequest(router *gin.Engine, method, url string, body any, actorID string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		b, _ := json.Marshal(body)
		req, _ = http.NewRequest(method, url, strings.NewReader(string(b)))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req, _ = http.NewRequest(method, url, nil)
	}
	if actorID != "" {
		req.Header.Set(ActorIDHeader, actorID)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func testReceipt(kind domain.TransactionType, amount, balance int64) *domain.Receipt {
	entry := domain.NewTransaction(kind, testAccount, "", amount, domain.Actor{UserID: 1}, time.Now())
	entry.ID = 1
	return &domain.Receipt{Transaction: *entry, Balance: balance}
}

// ---- tests ----

func TestRequireActor(t *testing.T) {
	router := newTestRouter(&mockLedger{})
	for _, actor := range []string{"", "abc", "-1"} {
		if w := doRequest(router, http.MethodGet, "/v1/transactions", nil, actor); w.Code != http.StatusUnauthorized {
			t.Errorf("actor %q: status = %d, want 401", actor, w.Code)
		}
	}
	if w := doRequest(router, http.MethodGet, "/healthz", nil, ""); w.Code != http.StatusOK {
		t.Errorf("healthz status = %d", w.Code)
	}
}

func TestDeposit(t *testing.T) {
	tests := []struct {
		name           string
		account        string
		body           any
		depositFn      func(domain.Actor, string, int64) (*domain.Receipt, error)
		expectedStatus int
	}{
		{
			name:    "success",
			account: testAccount,
			body:    map[string]any{"amount": "600.25"},
			depositFn: func(actor domain.Actor, number string, amount int64) (*domain.Receipt, error) {
				if actor.UserID != 42 || actor.Role != domain.RoleAdministrator || amount != 60025 {
					return nil, fmt.Errorf("unexpected call %v %d", actor, amount)
				}
				return testReceipt(domain.TransactionTypeDeposit, amount, 160025), nil
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "below counter minimum",
			account:        testAccount,
			body:           map[string]any{"amount": 499.99},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "too many decimals",
			account:        testAccount,
			body:           map[string]any{"amount": "600.001"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "bad account number",
			account:        "12ab",
			body:           map[string]any{"amount": 600},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:    "account not found",
			account: testAccount,
			body:    map[string]any{"amount": 600},
			depositFn: func(domain.Actor, string, int64) (*domain.Receipt, error) {
				return nil, domain.ErrAccountNotFound
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name:    "storage unavailable",
			account: testAccount,
			body:    map[string]any{"amount": 600},
			depositFn: func(domain.Actor, string, int64) (*domain.Receipt, error) {
				return nil, fmt.Errorf("%w: timeout", domain.ErrStorageUnavailable)
			},
			expectedStatus: http.StatusServiceUnavailable,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(&mockLedger{depositFn: tt.depositFn})
			w := doRequest(router, http.MethodPost, "/v1/accounts/"+tt.account+"/deposits", tt.body, "42")
			if w.Code != tt.expectedStatus {
				t.Fatalf("status = %d, want %d, body %s", w.Code, tt.expectedStatus, w.Body.String())
			}
		})
	}
}

func TestDepositResponseBody(t *testing.T) {
	router := newTestRouter(&mockLedger{depositFn: func(_ domain.Actor, _ string, amount int64) (*domain.Receipt, error) {
		return testReceipt(domain.TransactionTypeDeposit, amount, 160025), nil
	}})
	w := doRequest(router, http.MethodPost, "/v1/accounts/"+testAccount+"/deposits", map[string]any{"amount": "600.25"}, "42")
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d", w.Code)
	}
	var resp ReceiptResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Balance.String() != "1600.25" || resp.Transaction.Type != "DEPOSIT" || resp.Transaction.Amount.String() != "600.25" {
		t.Errorf("response = %+v", resp)
	}
}

func TestWithdrawInsufficientFunds(t *testing.T) {
	router := newTestRouter(&mockLedger{})
	w := doRequest(router, http.MethodPost, "/v1/accounts/"+testAccount+"/withdrawals", map[string]any{"amount": 600}, "42")
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", w.Code)
	}
	var resp ErrorResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Code != domain.CodeInsufficientFunds {
		t.Errorf("code = %s", resp.Code)
	}
}

func TestCreateAccount(t *testing.T) {
	var gotOpening int64
	ledger := &mockLedger{createFn: func(owner int64, pin string, opening int64) (*domain.Account, error) {
		gotOpening = opening
		return &domain.Account{OwnerUserID: owner, AccountNumber: testAccount, Balance: opening}, nil
	}}
	router := newTestRouter(ledger)

	tests := []struct {
		name           string
		body           map[string]any
		expectedStatus int
	}{
		{"success", map[string]any{"owner_user_id": 7, "pin": "1234", "opening_balance": "1500"}, http.StatusCreated},
		{"opening balance too low", map[string]any{"owner_user_id": 7, "pin": "1234", "opening_balance": 999}, http.StatusBadRequest},
		{"pin too short", map[string]any{"owner_user_id": 7, "pin": "12", "opening_balance": 1500}, http.StatusBadRequest},
		{"pin not numeric", map[string]any{"owner_user_id": 7, "pin": "12ab", "opening_balance": 1500}, http.StatusBadRequest},
		{"missing owner", map[string]any{"pin": "1234", "opening_balance": 1500}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(router, http.MethodPost, "/v1/accounts", tt.body, "1")
			if w.Code != tt.expectedStatus {
				t.Fatalf("status = %d, want %d, body %s", w.Code, tt.expectedStatus, w.Body.String())
			}
		})
	}
	if gotOpening != domain.FromUnits(1500) {
		t.Errorf("opening balance = %d", gotOpening)
	}
}

func TestTransferValidation(t *testing.T) {
	called := false
	router := newTestRouter(&mockLedger{transferFn: func(src, dst string, amount int64) (*domain.Receipt, error) {
		called = true
		return nil, domain.ErrSelfTransfer
	}})

	w := doRequest(router, http.MethodPost, "/v1/transfers", map[string]any{
		"source_account": testAccount, "dest_account": testAccount, "amount": 600,
	}, "1")
	if w.Code != http.StatusBadRequest || called {
		t.Errorf("same account: status = %d, called = %v", w.Code, called)
	}

	w = doRequest(router, http.MethodPost, "/v1/transfers", map[string]any{
		"source_account": testAccount, "dest_account": "1000000002", "amount": 600,
	}, "1")
	if w.Code != http.StatusUnprocessableEntity || !called {
		t.Errorf("status = %d, called = %v", w.Code, called)
	}
}

func TestOpenTimeDeposit(t *testing.T) {
	router := newTestRouter(&mockLedger{tdFn: func(number string, amount int64, months int) (*domain.Receipt, error) {
		return nil, domain.ErrDuplicateTimeDeposit
	}})
	w := doRequest(router, http.MethodPost, "/v1/accounts/"+testAccount+"/time-deposits", map[string]any{"amount": 2000, "duration_months": 4}, "1")
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid duration: status = %d", w.Code)
	}
	w = doRequest(router, http.MethodPost, "/v1/accounts/"+testAccount+"/time-deposits", map[string]any{"amount": 2000, "duration_months": 6}, "1")
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate: status = %d", w.Code)
	}
}

func TestGetAccountAndStatus(t *testing.T) {
	deleted := map[string]bool{}
	ledger := &mockLedger{
		inquireFn: func(number string) (*domain.AccountSnapshot, error) {
			if deleted[number] {
				return nil, domain.ErrAccountNotFound
			}
			return &domain.AccountSnapshot{AccountNumber: number, Balance: 150000}, nil
		},
		statusFn: func(number string, d bool) error {
			deleted[number] = d
			return nil
		},
	}
	router := newTestRouter(ledger)

	w := doRequest(router, http.MethodGet, "/v1/accounts/"+testAccount, nil, "1")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"balance":"1500"`) {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	if w := doRequest(router, http.MethodPost, "/v1/accounts/"+testAccount+"/deactivate", nil, "1"); w.Code != http.StatusNoContent {
		t.Fatalf("deactivate status = %d", w.Code)
	}
	if w := doRequest(router, http.MethodGet, "/v1/accounts/"+testAccount, nil, "1"); w.Code != http.StatusNotFound {
		t.Errorf("status after deactivate = %d", w.Code)
	}
	if w := doRequest(router, http.MethodPost, "/v1/accounts/"+testAccount+"/activate", nil, "1"); w.Code != http.StatusNoContent {
		t.Errorf("activate status = %d", w.Code)
	}
}

func TestListTransactionsHidesStorageDetails(t *testing.T) {
	router := newTestRouter(&mockLedger{})
	w := doRequest(router, http.MethodGet, "/v1/transactions", nil, "1")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "connection refused") {
		t.Errorf("body leaks storage error: %s", w.Body.String())
	}
}

func TestSweep(t *testing.T) {
	router := newTestRouter(&mockLedger{sweepFn: func() (int, error) { return 3, nil }})
	w := doRequest(router, http.MethodPost, "/v1/time-deposits/sweep", nil, "1")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"settled":3`) {
		t.Errorf("status = %d body = %s", w.Code, w.Body.String())
	}
}
