package commands

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	grpc_adapter "github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/in/grpc"
	http_adapter "github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/in/http"
	"github.com/JoeShih716/go-bank-ledger/internal/logger"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the gRPC and HTTP servers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := load()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, a)
		},
	}
}

func runServe(ctx context.Context, a *app) error {
	issuer, err := a.issuer()
	if err != nil {
		return err
	}
	if a.cfg.Server.GRPCAddr == "" && a.cfg.Server.HTTPAddr == "" {
		return errors.New("nothing to serve: server.grpc_addr and server.http_addr are both empty")
	}

	g, ctx := errgroup.WithContext(ctx)

	if addr := a.cfg.Server.GRPCAddr; addr != "" {
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("listen grpc %s: %w", addr, err)
		}
		s := grpc.NewServer(grpc.ChainUnaryInterceptor(
			grpc_adapter.AuthInterceptor(issuer, a.core),
			grpc_adapter.LoggingInterceptor(),
		))
		grpc_adapter.RegisterLedgerServiceServer(s, grpc_adapter.NewGrpcServer(a.core))

		g.Go(func() error {
			logger.Info("starting grpc server", logger.Fields{"addr": addr})
			if err := s.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return fmt.Errorf("serve grpc: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			s.GracefulStop()
			return nil
		})
	}

	if addr := a.cfg.Server.HTTPAddr; addr != "" {
		httpApp := http_adapter.NewApp(http_adapter.NewHandler(a.core, issuer))
		g.Go(func() error {
			logger.Info("starting http server", logger.Fields{"addr": addr})
			if err := httpApp.Listen(addr); err != nil {
				return fmt.Errorf("serve http: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			return httpApp.ShutdownWithTimeout(shutdownTimeout)
		})
	}

	err = g.Wait()
	logger.Info("server exited", nil)
	return err
}
