package grpc

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	grpccodec "github.com/JoeShih716/go-bank-ledger/pkg/grpc"
)

// ServiceName gRPC 服務全名
const ServiceName = "bank.ledger.v1.LedgerService"

// 線路上的訊息是 google.protobuf.Struct (proto/ledger.proto)，以 gRPC 預設的 proto codec 傳輸；
// 下列型別的 json tag 即 Struct 的欄位名稱，金額一律為十進位字串 (例如 "1500.50")

// Result 所有回應共用的結果欄位
// 業務錯誤回傳 Success=false 與穩定的 Code (Soft Failure)，不使用 gRPC status。
type Result struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

type MoneyRequest struct {
	AccountNumber string          `json:"account_number"`
	Amount        decimal.Decimal `json:"amount"`
}

type TransferRequest struct {
	SourceAccount string          `json:"source_account"`
	DestAccount   string          `json:"dest_account"`
	Amount        decimal.Decimal `json:"amount"`
}

type TimeDepositRequest struct {
	AccountNumber  string          `json:"account_number"`
	Amount         decimal.Decimal `json:"amount"`
	DurationMonths int             `json:"duration_months"`
}

type AccountRequest struct {
	AccountNumber string `json:"account_number"`
}

// ATMRequest 每次呼叫都附上 PIN，伺服器端不保存 session
type ATMRequest struct {
	AccountNumber string          `json:"account_number"`
	PIN           string          `json:"pin"`
	DestAccount   string          `json:"dest_account,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
}

type ChangePINRequest struct {
	AccountNumber string `json:"account_number"`
	CurrentPIN    string `json:"current_pin"`
	NewPIN        string `json:"new_pin"`
}

type ReceiptResponse struct {
	Result
	TransactionID      int64            `json:"transaction_id,omitempty"`
	RefID              string           `json:"ref_id,omitempty"`
	Type               string           `json:"type,omitempty"`
	Balance            decimal.Decimal  `json:"balance"`
	TimeDepositBalance decimal.Decimal  `json:"time_deposit_balance"`
	TimeDeposit        *TimeDepositView `json:"time_deposit,omitempty"`
}

type TimeDepositView struct {
	ID             int64           `json:"id"`
	Principal      decimal.Decimal `json:"principal"`
	InterestRate   decimal.Decimal `json:"interest_rate"`
	DurationMonths int             `json:"duration_months"`
	MaturityDate   time.Time       `json:"maturity_date"`
	Payout         decimal.Decimal `json:"payout"`
}

type InquireResponse struct {
	Result
	AccountNumber      string           `json:"account_number,omitempty"`
	Balance            decimal.Decimal  `json:"balance"`
	TimeDepositBalance decimal.Decimal  `json:"time_deposit_balance"`
	OpenTimeDeposit    *TimeDepositView `json:"open_time_deposit,omitempty"`
}

type TransactionView struct {
	ID              int64           `json:"id"`
	RefID           string          `json:"ref_id"`
	Type            string          `json:"type"`
	AccountNumber   string          `json:"account_number"`
	ReferenceNumber string          `json:"reference_number"`
	Amount          decimal.Decimal `json:"amount"`
	ActorID         int64           `json:"actor_id"`
	CreatedAt       time.Time       `json:"created_at"`
}

type HistoryResponse struct {
	Result
	Transactions []TransactionView `json:"transactions"`
}

type StatusResponse struct {
	Result
}

// LedgerServiceServer 是 LedgerService 的伺服器端介面
type LedgerServiceServer interface {
	Deposit(context.Context, *MoneyRequest) (*ReceiptResponse, error)
	Withdraw(context.Context, *MoneyRequest) (*ReceiptResponse, error)
	Transfer(context.Context, *TransferRequest) (*ReceiptResponse, error)
	OpenTimeDeposit(context.Context, *TimeDepositRequest) (*ReceiptResponse, error)
	Inquire(context.Context, *AccountRequest) (*InquireResponse, error)
	History(context.Context, *AccountRequest) (*HistoryResponse, error)
	ATMDeposit(context.Context, *ATMRequest) (*ReceiptResponse, error)
	ATMWithdraw(context.Context, *ATMRequest) (*ReceiptResponse, error)
	ATMTransfer(context.Context, *ATMRequest) (*ReceiptResponse, error)
	ChangePIN(context.Context, *ChangePINRequest) (*StatusResponse, error)
}

// RegisterLedgerServiceServer 註冊服務到 gRPC Server
func RegisterLedgerServiceServer(s grpc.ServiceRegistrar, srv LedgerServiceServer) {
	s.RegisterService(&serviceDesc, srv)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LedgerServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Deposit", Handler: unary("Deposit", LedgerServiceServer.Deposit)},
		{MethodName: "Withdraw", Handler: unary("Withdraw", LedgerServiceServer.Withdraw)},
		{MethodName: "Transfer", Handler: unary("Transfer", LedgerServiceServer.Transfer)},
		{MethodName: "OpenTimeDeposit", Handler: unary("OpenTimeDeposit", LedgerServiceServer.OpenTimeDeposit)},
		{MethodName: "Inquire", Handler: unary("Inquire", LedgerServiceServer.Inquire)},
		{MethodName: "History", Handler: unary("History", LedgerServiceServer.History)},
		{MethodName: "ATMDeposit", Handler: unary("ATMDeposit", LedgerServiceServer.ATMDeposit)},
		{MethodName: "ATMWithdraw", Handler: unary("ATMWithdraw", LedgerServiceServer.ATMWithdraw)},
		{MethodName: "ATMTransfer", Handler: unary("ATMTransfer", LedgerServiceServer.ATMTransfer)},
		{MethodName: "ChangePIN", Handler: unary("ChangePIN", LedgerServiceServer.ChangePIN)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "proto/ledger.proto",
}

func fullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// unary 將型別化的方法轉成 grpc.MethodHandler，並串接 interceptor
// 請求與回應在線路上都是 structpb.Struct，interceptor 看到的是轉換後的型別化請求。
func unary[Req, Resp any](method string, call func(LedgerServiceServer, context.Context, *Req) (*Resp, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		msg := new(structpb.Struct)
		if err := dec(msg); err != nil {
			return nil, err
		}
		in := new(Req)
		if err := grpccodec.FromStruct(msg, in); err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "malformed %s request: %v", method, err)
		}
		handler := func(ctx context.Context, req any) (any, error) {
			resp, err := call(srv.(LedgerServiceServer), ctx, req.(*Req))
			if err != nil {
				return nil, err
			}
			out, err := grpccodec.ToStruct(resp)
			if err != nil {
				return nil, status.Errorf(codes.Internal, "encode %s response: %v", method, err)
			}
			return out, nil
		}
		if interceptor == nil {
			return handler(ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod(method),
		}
		return interceptor(ctx, in, info, handler)
	}
}
