package grpc

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-bank-ledger/internal/auth"
)

// GrpcServer 將 ledger.v1.LedgerService 的呼叫轉給 CoreUseCase
// 呼叫者身分由 AuthInterceptor 放入 context
type GrpcServer struct {
	core *usecase.CoreUseCase
}

func NewGrpcServer(core *usecase.CoreUseCase) *GrpcServer {
	return &GrpcServer{
		core: core,
	}
}

func (s *GrpcServer) Deposit(ctx context.Context, req *DepositRequest) (*ReceiptResponse, error) {
	account, err := auth.AccountFromContext(ctx)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, err.Error())
	}
	refID, err := parseRefID(req.RefID)
	if err != nil {
		return nil, err
	}
	receipt, err := s.core.Deposit(ctx, usecase.DepositRequest{
		AccountNumber: account,
		Amount:        req.Amount,
		RefID:         refID,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return toReceiptResponse(receipt), nil
}

func (s *GrpcServer) Transfer(ctx context.Context, req *TransferRequest) (*ReceiptResponse, error) {
	account, err := auth.AccountFromContext(ctx)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, err.Error())
	}
	refID, err := parseRefID(req.RefID)
	if err != nil {
		return nil, err
	}
	receipt, err := s.core.Transfer(ctx, usecase.TransferRequest{
		AccountNumber:    account,
		RecipientAccount: req.RecipientAccount,
		Amount:           req.Amount,
		Pin:              req.Pin,
		RefID:            refID,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return toReceiptResponse(receipt), nil
}

func (s *GrpcServer) Summarize(ctx context.Context, _ *SummarizeRequest) (*SummaryResponse, error) {
	account, err := auth.AccountFromContext(ctx)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, err.Error())
	}
	summary, err := s.core.Summarize(ctx, account)
	if err != nil {
		return nil, toStatus(err)
	}
	return toSummaryResponse(summary), nil
}

func (s *GrpcServer) History(ctx context.Context, req *HistoryRequest) (*HistoryResponse, error) {
	account, err := auth.AccountFromContext(ctx)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, err.Error())
	}
	trans, err := s.core.History(ctx, account, req.Limit)
	if err != nil {
		return nil, toStatus(err)
	}
	return &HistoryResponse{Transactions: toTransactionMessages(trans)}, nil
}

func (s *GrpcServer) LookupRecipient(ctx context.Context, req *LookupRecipientRequest) (*LookupRecipientResponse, error) {
	name, err := s.core.LookupRecipient(ctx, req.AccountNumber)
	if err != nil {
		return nil, toStatus(err)
	}
	return &LookupRecipientResponse{
		AccountNumber: strings.TrimSpace(req.AccountNumber),
		HolderName:    name,
	}, nil
}

func (s *GrpcServer) CloseAccount(ctx context.Context, _ *CloseAccountRequest) (*CloseAccountResponse, error) {
	account, err := auth.AccountFromContext(ctx)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, err.Error())
	}
	if err := s.core.CloseAccount(ctx, account); err != nil {
		return nil, toStatus(err)
	}
	return &CloseAccountResponse{Success: true}, nil
}

func parseRefID(raw string) (uuid.UUID, error) {
	if strings.TrimSpace(raw) == "" {
		return uuid.Nil, nil
	}
	u, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, status.Error(codes.InvalidArgument, "invalid ref_id: "+err.Error())
	}
	return u, nil
}

// toStatus 帳務錯誤轉成 gRPC status，訊息格式為 "CODE: message"
// 非帳務錯誤不回傳內部細節
func toStatus(err error) error {
	code := domain.CodeOf(err)
	return status.Error(statusCode(code), string(code)+": "+domain.MessageOf(err))
}

func statusCode(code domain.Code) codes.Code {
	switch code {
	case domain.CodeInvalidAmount, domain.CodeMissingFields, domain.CodeSelfTransfer,
		domain.CodeInvalidAccount, domain.CodeInvalidPinFormat:
		return codes.InvalidArgument
	case domain.CodeLimitExceeded, domain.CodeInsufficientFunds:
		return codes.FailedPrecondition
	case domain.CodeRecipientNotFound, domain.CodeAccountNotFound:
		return codes.NotFound
	case domain.CodeInvalidPin:
		return codes.PermissionDenied
	case domain.CodeStoreUnavailable:
		return codes.Unavailable
	case domain.CodeAccountExists, domain.CodeDuplicateReference:
		return codes.AlreadyExists
	case domain.CodeStaleCredential:
		return codes.Unauthenticated
	default:
		return codes.Internal
	}
}

var _ LedgerServiceServer = (*GrpcServer)(nil)
