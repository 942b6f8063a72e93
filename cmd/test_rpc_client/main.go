package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	grpc_adapter "github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/in/grpc"
	"github.com/JoeShih716/go-bank-ledger/internal/auth"
	rpc "github.com/JoeShih716/go-bank-ledger/pkg/grpc"
)

// loadOptions 壓測參數
type loadOptions struct {
	target      string
	secret      string
	accounts    []string
	pin         string
	seed        string
	amount      string
	count       int
	concurrency int
	timeout     time.Duration
}

func main() {
	opts := loadOptions{}
	cmd := &cobra.Command{
		Use:          "test_rpc_client",
		Short:        "Fire concurrent transfers at the ledger gRPC service and check money is conserved",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.secret == "" {
				opts.secret = os.Getenv("LEDGER_JWT_SECRET")
			}
			return run(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.target, "target", "localhost:50051", "gRPC server address")
	cmd.Flags().StringVar(&opts.secret, "secret", "", "jwt secret shared with the server (default $LEDGER_JWT_SECRET)")
	cmd.Flags().StringSliceVar(&opts.accounts, "accounts", []string{"1001", "1002"}, "existing accounts, all using --pin")
	cmd.Flags().StringVar(&opts.pin, "pin", "1234", "transaction pin of the accounts")
	cmd.Flags().StringVar(&opts.seed, "seed", "1000", "amount deposited into every account before the run")
	cmd.Flags().StringVar(&opts.amount, "amount", "1.25", "amount per transfer")
	cmd.Flags().IntVar(&opts.count, "count", 10000, "number of transfers")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 100, "in-flight requests")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 120*time.Second, "overall deadline")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, opts loadOptions) error {
	if len(opts.accounts) < 2 {
		return fmt.Errorf("need at least 2 accounts, got %d", len(opts.accounts))
	}
	issuer, err := auth.NewIssuer(opts.secret, time.Hour)
	if err != nil {
		return err
	}
	tokens := make(map[string]string, len(opts.accounts))
	for _, account := range opts.accounts {
		if tokens[account], err = issuer.Issue(account); err != nil {
			return err
		}
	}

	var stats latency
	pool := rpc.NewPool(rpc.WithInterceptor(stats.interceptor))
	defer pool.Close()
	conn, err := pool.GetConnection(opts.target)
	if err != nil {
		return err
	}
	client := grpc_adapter.NewLedgerServiceClient(conn)

	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	for _, account := range opts.accounts {
		_, err := client.Deposit(rpc.WithBearer(ctx, tokens[account]), &grpc_adapter.DepositRequest{
			Amount: opts.seed,
			RefID:  uuid.NewString(),
		})
		if err != nil {
			return fmt.Errorf("seed %s: %w", account, err)
		}
	}
	before, err := totalBalance(ctx, client, opts.accounts, tokens)
	if err != nil {
		return err
	}

	var ok atomic.Int64
	var failures sync.Map // status message prefix -> *atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.concurrency)
	start := time.Now()
	for i := 0; i < opts.count; i++ {
		from := opts.accounts[i%len(opts.accounts)]
		to := opts.accounts[(i+1+i/len(opts.accounts))%len(opts.accounts)]
		if from == to {
			to = opts.accounts[(i+1)%len(opts.accounts)]
		}
		g.Go(func() error {
			_, err := client.Transfer(rpc.WithBearer(gctx, tokens[from]), &grpc_adapter.TransferRequest{
				RecipientAccount: to,
				Amount:           opts.amount,
				Pin:              opts.pin,
				RefID:            uuid.NewString(),
			})
			if err != nil {
				code, _, _ := strings.Cut(status.Convert(err).Message(), ":")
				v, _ := failures.LoadOrStore(code, new(atomic.Int64))
				v.(*atomic.Int64).Add(1)
				return nil
			}
			ok.Add(1)
			return nil
		})
	}
	_ = g.Wait()
	elapsed := time.Since(start)

	after, err := totalBalance(ctx, client, opts.accounts, tokens)
	if err != nil {
		return err
	}

	fmt.Printf("Completed %d transfers in %v (ok %d)\n", opts.count, elapsed, ok.Load())
	fmt.Printf("TPS: %.2f, avg latency: %v\n", float64(opts.count)/elapsed.Seconds(), stats.average())
	failures.Range(func(k, v any) bool {
		fmt.Printf("  failed %-24s %d\n", k, v.(*atomic.Int64).Load())
		return true
	})
	if !before.Equal(after) {
		return fmt.Errorf("money not conserved: before %s, after %s", before.StringFixed(2), after.StringFixed(2))
	}
	fmt.Printf("Total balance conserved: %s\n", after.StringFixed(2))
	return nil
}

func totalBalance(ctx context.Context, client *grpc_adapter.LedgerServiceClient, accounts []string, tokens map[string]string) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, account := range accounts {
		summary, err := client.Summarize(rpc.WithBearer(ctx, tokens[account]), &grpc_adapter.SummarizeRequest{})
		if err != nil {
			return decimal.Zero, fmt.Errorf("summarize %s: %w", account, err)
		}
		balance, err := decimal.NewFromString(summary.Balance)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(balance)
	}
	return total, nil
}

// latency 以 client interceptor 統計平均延遲
type latency struct {
	calls atomic.Int64
	total atomic.Int64
}

func (l *latency) interceptor(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
	start := time.Now()
	err := invoker(ctx, method, req, reply, cc, opts...)
	l.calls.Add(1)
	l.total.Add(int64(time.Since(start)))
	return err
}

func (l *latency) average() time.Duration {
	n := l.calls.Load()
	if n == 0 {
		return 0
	}
	return time.Duration(l.total.Load() / n)
}
