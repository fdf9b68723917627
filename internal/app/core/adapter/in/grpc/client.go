package grpc

import (
	"context"
	"strconv"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	grpccodec "github.com/JoeShih716/go-bank-ledger/pkg/grpc"
)

// LedgerClient 是 LedgerService 的客戶端，請求與回應在送出前後與 structpb.Struct 互轉
type LedgerClient struct {
	cc grpc.ClientConnInterface
}

func NewLedgerClient(cc grpc.ClientConnInterface) *LedgerClient {
	return &LedgerClient{cc: cc}
}

// WithActor 將操作者寫入 outgoing metadata
func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return metadata.AppendToOutgoingContext(ctx,
		ActorIDKey, strconv.FormatInt(actor.UserID, 10),
		ActorRoleKey, string(actor.Role),
	)
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	req, err := grpccodec.ToStruct(in)
	if err != nil {
		return nil, err
	}
	reply := new(structpb.Struct)
	if err := cc.Invoke(ctx, fullMethod(method), req, reply, opts...); err != nil {
		return nil, err
	}
	out := new(Resp)
	if err := grpccodec.FromStruct(reply, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *LedgerClient) Deposit(ctx context.Context, in *MoneyRequest, opts ...grpc.CallOption) (*ReceiptResponse, error) {
	return invoke[ReceiptResponse](ctx, c.cc, "Deposit", in, opts)
}

func (c *LedgerClient) Withdraw(ctx context.Context, in *MoneyRequest, opts ...grpc.CallOption) (*ReceiptResponse, error) {
	return invoke[ReceiptResponse](ctx, c.cc, "Withdraw", in, opts)
}

func (c *LedgerClient) Transfer(ctx context.Context, in *TransferRequest, opts ...grpc.CallOption) (*ReceiptResponse, error) {
	return invoke[ReceiptResponse](ctx, c.cc, "Transfer", in, opts)
}

func (c *LedgerClient) OpenTimeDeposit(ctx context.Context, in *TimeDepositRequest, opts ...grpc.CallOption) (*ReceiptResponse, error) {
	return invoke[ReceiptResponse](ctx, c.cc, "OpenTimeDeposit", in, opts)
}

func (c *LedgerClient) Inquire(ctx context.Context, in *AccountRequest, opts ...grpc.CallOption) (*InquireResponse, error) {
	return invoke[InquireResponse](ctx, c.cc, "Inquire", in, opts)
}

func (c *LedgerClient) History(ctx context.Context, in *AccountRequest, opts ...grpc.CallOption) (*HistoryResponse, error) {
	return invoke[HistoryResponse](ctx, c.cc, "History", in, opts)
}

func (c *LedgerClient) ATMDeposit(ctx context.Context, in *ATMRequest, opts ...grpc.CallOption) (*ReceiptResponse, error) {
	return invoke[ReceiptResponse](ctx, c.cc, "ATMDeposit", in, opts)
}

func (c *LedgerClient) ATMWithdraw(ctx context.Context, in *ATMRequest, opts ...grpc.CallOption) (*ReceiptResponse, error) {
	return invoke[ReceiptResponse](ctx, c.cc, "ATMWithdraw", in, opts)
}

func (c *LedgerClient) ATMTransfer(ctx context.Context, in *ATMRequest, opts ...grpc.CallOption) (*ReceiptResponse, error) {
	return invoke[ReceiptResponse](ctx, c.cc, "ATMTransfer", in, opts)
}

func (c *LedgerClient) ChangePIN(ctx context.Context, in *ChangePINRequest, opts ...grpc.CallOption) (*StatusResponse, error) {
	return invoke[StatusResponse](ctx, c.cc, "ChangePIN", in, opts)
}
