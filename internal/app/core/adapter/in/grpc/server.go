package grpc

import (
	"context"
	"errors"
	"strconv"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
)

const (
	// ActorIDKey 上游已驗證的操作者 ID
	ActorIDKey = "x-actor-id"
	// ActorRoleKey 操作者角色，未提供時視為 operator
	ActorRoleKey = "x-actor-role"
)

type GrpcServer struct {
	core *usecase.CoreUseCase
}

func NewGrpcServer(core *usecase.CoreUseCase) *GrpcServer {
	return &GrpcServer{
		core: core,
	}
}

func (s *GrpcServer) Deposit(ctx context.Context, req *MoneyRequest) (*ReceiptResponse, error) {
	actor, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	amount, err := toAmount(req.Amount)
	if err != nil {
		return nil, err
	}
	receipt, err := s.core.Deposit(ctx, actor, req.AccountNumber, amount)
	return receiptResponse(receipt, err)
}

func (s *GrpcServer) Withdraw(ctx context.Context, req *MoneyRequest) (*ReceiptResponse, error) {
	actor, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	amount, err := toAmount(req.Amount)
	if err != nil {
		return nil, err
	}
	receipt, err := s.core.Withdraw(ctx, actor, req.AccountNumber, amount)
	return receiptResponse(receipt, err)
}

func (s *GrpcServer) Transfer(ctx context.Context, req *TransferRequest) (*ReceiptResponse, error) {
	actor, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	amount, err := toAmount(req.Amount)
	if err != nil {
		return nil, err
	}
	receipt, err := s.core.Transfer(ctx, actor, req.SourceAccount, req.DestAccount, amount)
	return receiptResponse(receipt, err)
}

func (s *GrpcServer) OpenTimeDeposit(ctx context.Context, req *TimeDepositRequest) (*ReceiptResponse, error) {
	actor, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	amount, err := toAmount(req.Amount)
	if err != nil {
		return nil, err
	}
	receipt, err := s.core.OpenTimeDeposit(ctx, actor, req.AccountNumber, amount, req.DurationMonths)
	return receiptResponse(receipt, err)
}

// Inquire 帳戶不存在時回傳 codes.NotFound
func (s *GrpcServer) Inquire(ctx context.Context, req *AccountRequest) (*InquireResponse, error) {
	actor, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	snap, err := s.core.Inquire(ctx, actor, req.AccountNumber)
	if errors.Is(err, domain.ErrAccountNotFound) {
		return nil, status.Error(codes.NotFound, err.Error())
	}
	if err != nil {
		result, err := failure(err)
		if err != nil {
			return nil, err
		}
		return &InquireResponse{Result: result}, nil
	}
	return &InquireResponse{
		Result:             success(),
		AccountNumber:      snap.AccountNumber,
		Balance:            domain.ToDecimal(snap.Balance),
		TimeDepositBalance: domain.ToDecimal(snap.TimeDepositBalance),
		OpenTimeDeposit:    toTimeDepositView(snap.OpenTimeDeposit),
	}, nil
}

func (s *GrpcServer) History(ctx context.Context, req *AccountRequest) (*HistoryResponse, error) {
	actor, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := s.core.History(ctx, actor, req.AccountNumber)
	if err != nil {
		result, err := failure(err)
		if err != nil {
			return nil, err
		}
		return &HistoryResponse{Result: result}, nil
	}
	views := make([]TransactionView, 0, len(entries))
	for i := range entries {
		views = append(views, toTransactionView(&entries[i]))
	}
	return &HistoryResponse{Result: success(), Transactions: views}, nil
}

func (s *GrpcServer) ATMDeposit(ctx context.Context, req *ATMRequest) (*ReceiptResponse, error) {
	return s.atm(ctx, req, func(session *domain.ATMSession, amount int64) (*domain.Receipt, error) {
		return s.core.ATMDeposit(ctx, session, amount)
	})
}

func (s *GrpcServer) ATMWithdraw(ctx context.Context, req *ATMRequest) (*ReceiptResponse, error) {
	return s.atm(ctx, req, func(session *domain.ATMSession, amount int64) (*domain.Receipt, error) {
		return s.core.ATMWithdraw(ctx, session, amount)
	})
}

func (s *GrpcServer) ATMTransfer(ctx context.Context, req *ATMRequest) (*ReceiptResponse, error) {
	return s.atm(ctx, req, func(session *domain.ATMSession, amount int64) (*domain.Receipt, error) {
		return s.core.ATMTransfer(ctx, session, req.DestAccount, amount)
	})
}

// atm 驗證 PIN 後執行 ATM 操作
func (s *GrpcServer) atm(ctx context.Context, req *ATMRequest, op func(*domain.ATMSession, int64) (*domain.Receipt, error)) (*ReceiptResponse, error) {
	amount, err := toAmount(req.Amount)
	if err != nil {
		return nil, err
	}
	session, err := s.core.OpenATMSession(ctx, req.AccountNumber, req.PIN)
	if err != nil {
		return receiptResponse(nil, err)
	}
	receipt, err := op(session, amount)
	return receiptResponse(receipt, err)
}

func (s *GrpcServer) ChangePIN(ctx context.Context, req *ChangePINRequest) (*StatusResponse, error) {
	session, err := s.core.OpenATMSession(ctx, req.AccountNumber, req.CurrentPIN)
	if err == nil {
		err = s.core.ChangePIN(ctx, session, req.CurrentPIN, req.NewPIN)
	}
	if err != nil {
		result, err := failure(err)
		if err != nil {
			return nil, err
		}
		return &StatusResponse{Result: result}, nil
	}
	return &StatusResponse{Result: success()}, nil
}

// actorFromContext 自 metadata 取得操作者，缺少時回傳 codes.Unauthenticated
func actorFromContext(ctx context.Context) (domain.Actor, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	ids := md.Get(ActorIDKey)
	if len(ids) == 0 {
		return domain.Actor{}, status.Error(codes.Unauthenticated, "missing "+ActorIDKey)
	}
	id, err := strconv.ParseInt(ids[0], 10, 64)
	if err != nil || id <= 0 {
		return domain.Actor{}, status.Error(codes.Unauthenticated, "invalid "+ActorIDKey)
	}
	role := domain.RoleOperator
	if roles := md.Get(ActorRoleKey); len(roles) > 0 && roles[0] != "" {
		role = domain.Role(roles[0])
	}
	return domain.Actor{UserID: id, Role: role}, nil
}

// toAmount 將十進位金額轉為最小單位，小數超過兩位視為格式錯誤
func toAmount(d decimal.Decimal) (int64, error) {
	amount := domain.FromDecimal(d)
	if !domain.ToDecimal(amount).Equal(d) {
		return 0, status.Errorf(codes.InvalidArgument, "amount %s has more than 2 decimal places", d)
	}
	return amount, nil
}

func success() Result {
	return Result{Success: true, Code: domain.CodeOK}
}

// failure 業務錯誤轉為 Soft Failure，儲存層錯誤轉為 codes.Unavailable
func failure(err error) (Result, error) {
	switch {
	case domain.IsBusinessError(err):
		return Result{Success: false, Code: domain.ErrorCode(err), Message: err.Error()}, nil
	case errors.Is(err, domain.ErrStorageUnavailable):
		return Result{}, status.Error(codes.Unavailable, err.Error())
	default:
		return Result{}, status.Error(codes.Internal, err.Error())
	}
}

func receiptResponse(receipt *domain.Receipt, err error) (*ReceiptResponse, error) {
	if err != nil {
		result, err := failure(err)
		if err != nil {
			return nil, err
		}
		return &ReceiptResponse{Result: result}, nil
	}
	return &ReceiptResponse{
		Result:             success(),
		TransactionID:      receipt.Transaction.ID,
		RefID:              receipt.Transaction.RefID.String(),
		Type:               receipt.Transaction.Type.String(),
		Balance:            domain.ToDecimal(receipt.Balance),
		TimeDepositBalance: domain.ToDecimal(receipt.TimeDepositBalance),
		TimeDeposit:        toTimeDepositView(receipt.TimeDeposit),
	}, nil
}

func toTimeDepositView(d *domain.TimeDeposit) *TimeDepositView {
	if d == nil {
		return nil
	}
	return &TimeDepositView{
		ID:             d.ID,
		Principal:      domain.ToDecimal(d.PrincipalAmount),
		InterestRate:   d.InterestRate,
		DurationMonths: d.DurationMonths,
		MaturityDate:   d.MaturityDate,
		Payout:         domain.ToDecimal(d.Payout()),
	}
}

func toTransactionView(t *domain.Transaction) TransactionView {
	return TransactionView{
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

var _ LedgerServiceServer = (*GrpcServer)(nil)
