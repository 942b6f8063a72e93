package grpc

import (
	"context"

	"google.golang.org/grpc"

	rpc "github.com/JoeShih716/go-bank-ledger/pkg/grpc"
)

// LedgerServiceClient ledger.v1.LedgerService 的客戶端
// 身分以 rpc.WithBearer 附在 context 上
type LedgerServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewLedgerServiceClient(cc grpc.ClientConnInterface) *LedgerServiceClient {
	return &LedgerServiceClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(rpc.CodecName)}, opts...)
	if err := cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *LedgerServiceClient) Deposit(ctx context.Context, in *DepositRequest, opts ...grpc.CallOption) (*ReceiptResponse, error) {
	return invoke[ReceiptResponse](ctx, c.cc, "Deposit", in, opts)
}

func (c *LedgerServiceClient) Transfer(ctx context.Context, in *TransferRequest, opts ...grpc.CallOption) (*ReceiptResponse, error) {
	return invoke[ReceiptResponse](ctx, c.cc, "Transfer", in, opts)
}

func (c *LedgerServiceClient) Summarize(ctx context.Context, in *SummarizeRequest, opts ...grpc.CallOption) (*SummaryResponse, error) {
	return invoke[SummaryResponse](ctx, c.cc, "Summarize", in, opts)
}

func (c *LedgerServiceClient) History(ctx context.Context, in *HistoryRequest, opts ...grpc.CallOption) (*HistoryResponse, error) {
	return invoke[HistoryResponse](ctx, c.cc, "History", in, opts)
}

func (c *LedgerServiceClient) LookupRecipient(ctx context.Context, in *LookupRecipientRequest, opts ...grpc.CallOption) (*LookupRecipientResponse, error) {
	return invoke[LookupRecipientResponse](ctx, c.cc, "LookupRecipient", in, opts)
}

func (c *LedgerServiceClient) CloseAccount(ctx context.Context, in *CloseAccountRequest, opts ...grpc.CallOption) (*CloseAccountResponse, error) {
	return invoke[CloseAccountResponse](ctx, c.cc, "CloseAccount", in, opts)
}
