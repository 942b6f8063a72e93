package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/out/memory"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-bank-ledger/internal/auth"
	rpc "github.com/JoeShih716/go-bank-ledger/pkg/grpc"
)

type testEnv struct {
	client *LedgerServiceClient
	core   *usecase.CoreUseCase
	issuer *auth.Issuer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	ledger, err := memory.NewMutexLedger(nil, node)
	require.NoError(t, err)
	core := usecase.NewCoreUseCase(ledger, usecase.NewBcryptPins(bcrypt.MinCost), usecase.DefaultEngineOptions())
	issuer, err := auth.NewIssuer("test-secret", time.Hour)
	require.NoError(t, err)

	lis := bufconn.Listen(1 << 20)
	server := grpc.NewServer(grpc.ChainUnaryInterceptor(AuthInterceptor(issuer, core), LoggingInterceptor()))
	RegisterLedgerServiceServer(server, NewGrpcServer(core))
	go func() { _ = server.Serve(lis) }()
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return &testEnv{client: NewLedgerServiceClient(conn), core: core, issuer: issuer}
}

func (e *testEnv) open(t *testing.T, number, name, pin string) context.Context {
	t.Helper()
	_, err := e.core.OpenAccount(context.Background(), usecase.OpenAccountRequest{
		AccountNumber: number,
		HolderName:    name,
		Pin:           pin,
	})
	require.NoError(t, err)
	token, err := e.issuer.Issue(number)
	require.NoError(t, err)
	return rpc.WithBearer(context.Background(), token)
}

func TestGrpcServer_DepositTransferSummary(t *testing.T) {
	env := newTestEnv(t)
	alice := env.open(t, "1001", "Alice", "1234")
	bob := env.open(t, "2002", "Bob", "5678")

	dep, err := env.client.Deposit(alice, &DepositRequest{Amount: "100"})
	require.NoError(t, err)
	assert.Equal(t, "100.00", dep.Balance)
	assert.Equal(t, "deposit", dep.Transaction.Type)

	tr, err := env.client.Transfer(alice, &TransferRequest{RecipientAccount: "2002", Amount: "40", Pin: "1234"})
	require.NoError(t, err)
	assert.Equal(t, "60.00", tr.Balance)
	assert.Equal(t, "2002", tr.Transaction.RecipientAccount)

	summary, err := env.client.Summarize(bob, &SummarizeRequest{})
	require.NoError(t, err)
	assert.Equal(t, "40.00", summary.Balance)
	require.Len(t, summary.Recent, 1)

	aliceSummary, err := env.client.Summarize(alice, &SummarizeRequest{})
	require.NoError(t, err)
	assert.Equal(t, "100.00", aliceSummary.TotalDeposited)
	assert.Equal(t, "40.00", aliceSummary.TotalWithdrawn)
	assert.Equal(t, "28.57", aliceSummary.SpentPercent)
	assert.Equal(t, "71.43", aliceSummary.SavedPercent)

	history, err := env.client.History(alice, &HistoryRequest{})
	require.NoError(t, err)
	require.Len(t, history.Transactions, 2)
	assert.Equal(t, "transfer", history.Transactions[0].Type)
	assert.Equal(t, "deposit", history.Transactions[1].Type)
}

func TestGrpcServer_ErrorCodes(t *testing.T) {
	env := newTestEnv(t)
	alice := env.open(t, "1001", "Alice", "1234")
	env.open(t, "2002", "Bob", "5678")

	_, err := env.client.Deposit(alice, &DepositRequest{Amount: "100"})
	require.NoError(t, err)

	cases := []struct {
		name string
		req  *TransferRequest
		code codes.Code
		msg  domain.Code
	}{
		{"wrong pin", &TransferRequest{RecipientAccount: "2002", Amount: "10", Pin: "0000"}, codes.PermissionDenied, domain.CodeInvalidPin},
		{"insufficient", &TransferRequest{RecipientAccount: "2002", Amount: "1000", Pin: "1234"}, codes.FailedPrecondition, domain.CodeInsufficientFunds},
		{"unknown recipient", &TransferRequest{RecipientAccount: "9999", Amount: "10", Pin: "1234"}, codes.NotFound, domain.CodeRecipientNotFound},
		{"self", &TransferRequest{RecipientAccount: "1001", Amount: "10", Pin: "1234"}, codes.InvalidArgument, domain.CodeSelfTransfer},
		{"bad amount", &TransferRequest{RecipientAccount: "2002", Amount: "-1", Pin: "1234"}, codes.InvalidArgument, domain.CodeInvalidAmount},
		{"missing fields", &TransferRequest{RecipientAccount: "2002", Amount: "10"}, codes.InvalidArgument, domain.CodeMissingFields},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.client.Transfer(alice, tc.req)
			st, ok := status.FromError(err)
			require.True(t, ok)
			assert.Equal(t, tc.code, st.Code())
			assert.Contains(t, st.Message(), string(tc.msg))
		})
	}

	_, err = env.client.Deposit(alice, &DepositRequest{Amount: "100001"})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	_, err = env.client.Deposit(alice, &DepositRequest{Amount: "1", RefID: "not-a-uuid"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	summary, err := env.client.Summarize(alice, &SummarizeRequest{})
	require.NoError(t, err)
	assert.Equal(t, "100.00", summary.Balance)
}

func TestGrpcServer_Auth(t *testing.T) {
	env := newTestEnv(t)
	alice := env.open(t, "1001", "Alice", "1234")
	env.open(t, "2002", "Bob", "5678")

	_, err := env.client.Deposit(context.Background(), &DepositRequest{Amount: "10"})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = env.client.Deposit(rpc.WithBearer(context.Background(), "garbage"), &DepositRequest{Amount: "10"})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	// 未登入不能以帳號查詢戶名
	_, err = env.client.LookupRecipient(context.Background(), &LookupRecipientRequest{AccountNumber: "2002"})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	resp, err := env.client.LookupRecipient(alice, &LookupRecipientRequest{AccountNumber: "2002"})
	require.NoError(t, err)
	assert.Equal(t, "Bob", resp.HolderName)
}

func TestGrpcServer_RefIDReplay(t *testing.T) {
	env := newTestEnv(t)
	alice := env.open(t, "1001", "Alice", "1234")
	ref := uuid.NewString()

	first, err := env.client.Deposit(alice, &DepositRequest{Amount: "25", RefID: ref})
	require.NoError(t, err)
	again, err := env.client.Deposit(alice, &DepositRequest{Amount: "25", RefID: ref})
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, first.Transaction.ID, again.Transaction.ID)
	assert.Equal(t, "25.00", again.Balance)

	_, err = env.client.Deposit(alice, &DepositRequest{Amount: "26", RefID: ref})
	assert.Equal(t, codes.AlreadyExists, status.Code(err))
}

func TestGrpcServer_CloseAccount(t *testing.T) {
	env := newTestEnv(t)
	alice := env.open(t, "1001", "Alice", "1234")

	resp, err := env.client.CloseAccount(alice, &CloseAccountRequest{})
	require.NoError(t, err)
	assert.True(t, resp.Success)

	// 帳戶關閉後原本的 token 失效
	_, err = env.client.Summarize(alice, &SummarizeRequest{})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

// 同一個帳號重新開戶後，先前簽發的 token 不能操作新帳戶
func TestGrpcServer_TokenIssuedBeforeReopen(t *testing.T) {
	env := newTestEnv(t)
	earlier, err := auth.NewIssuer("test-secret", time.Hour, auth.WithClock(func() time.Time {
		return time.Now().Add(-time.Minute)
	}))
	require.NoError(t, err)
	stale, err := earlier.Issue("1001")
	require.NoError(t, err)

	fresh := env.open(t, "1001", "Mallory", "1234")

	_, err = env.client.Summarize(rpc.WithBearer(context.Background(), stale), &SummarizeRequest{})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
	_, err = env.client.CloseAccount(rpc.WithBearer(context.Background(), stale), &CloseAccountRequest{})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	summary, err := env.client.Summarize(fresh, &SummarizeRequest{})
	require.NoError(t, err)
	assert.Equal(t, "0.00", summary.Balance)
}

func TestStatusCode_Internal(t *testing.T) {
	err := toStatus(assert.AnError)
	st, _ := status.FromError(err)
	assert.Equal(t, codes.Internal, st.Code())
	assert.Equal(t, "INTERNAL: internal error", st.Message())
}
