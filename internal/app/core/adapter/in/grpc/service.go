package grpc

import (
	"context"

	"google.golang.org/grpc"
)

const ServiceName = "ledger.v1.LedgerService"

// LedgerServiceServer ledger.v1.LedgerService 的伺服器介面
type LedgerServiceServer interface {
	Deposit(context.Context, *DepositRequest) (*ReceiptResponse, error)
	Transfer(context.Context, *TransferRequest) (*ReceiptResponse, error)
	Summarize(context.Context, *SummarizeRequest) (*SummaryResponse, error)
	History(context.Context, *HistoryRequest) (*HistoryResponse, error)
	LookupRecipient(context.Context, *LookupRecipientRequest) (*LookupRecipientResponse, error)
	CloseAccount(context.Context, *CloseAccountRequest) (*CloseAccountResponse, error)
}

// RegisterLedgerServiceServer 註冊服務
func RegisterLedgerServiceServer(s grpc.ServiceRegistrar, srv LedgerServiceServer) {
	s.RegisterService(&LedgerServiceDesc, srv)
}

// unaryHandler 將強型別的方法轉成 grpc.MethodDesc 需要的 handler
func unaryHandler[Req any, Resp any](method string, call func(LedgerServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(LedgerServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: "/" + ServiceName + "/" + method,
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(LedgerServiceServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// LedgerServiceDesc 手動宣告的 ServiceDesc，訊息以 JSON codec 編碼
var LedgerServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LedgerServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("Deposit", LedgerServiceServer.Deposit),
		unaryHandler("Transfer", LedgerServiceServer.Transfer),
		unaryHandler("Summarize", LedgerServiceServer.Summarize),
		unaryHandler("History", LedgerServiceServer.History),
		unaryHandler("LookupRecipient", LedgerServiceServer.LookupRecipient),
		unaryHandler("CloseAccount", LedgerServiceServer.CloseAccount),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ledger/v1/ledger.json",
}
