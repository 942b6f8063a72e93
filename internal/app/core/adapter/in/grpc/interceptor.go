package grpc

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/auth"
	"github.com/JoeShih716/go-bank-ledger/internal/logger"
)

// Authorizer 確認 token 仍對應到目前存在的帳戶
type Authorizer interface {
	Authorize(ctx context.Context, accountNumber string, issuedAt time.Time) error
}

// AuthInterceptor 從 metadata 的 "authorization: Bearer <jwt>" 解析帳號並放入 context
//
// 所有方法都需要身分，包含 LookupRecipient；帳戶已關閉或 token 早於開戶時間都視為未驗證
func AuthInterceptor(issuer *auth.Issuer, authorizer Authorizer) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		md, _ := metadata.FromIncomingContext(ctx)
		values := md.Get("authorization")
		if len(values) == 0 {
			return nil, status.Error(codes.Unauthenticated, "missing bearer token")
		}
		claims, err := issuer.ParseHeader(values[0])
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "invalid bearer token")
		}
		if err := authorizer.Authorize(ctx, claims.AccountNumber, claims.IssuedAt); err != nil {
			if domain.IsRetryable(err) {
				return nil, toStatus(err)
			}
			return nil, status.Error(codes.Unauthenticated, "invalid bearer token")
		}
		return handler(auth.WithAccount(ctx, claims.AccountNumber), req)
	}
}

// LoggingInterceptor 記錄每個呼叫的結果與耗時
func LoggingInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		fields := logger.Fields{
			"method":  info.FullMethod,
			"code":    status.Code(err).String(),
			"elapsed": time.Since(start).String(),
		}
		if account, aerr := auth.AccountFromContext(ctx); aerr == nil {
			fields["accountNumber"] = account
		}
		switch status.Code(err) {
		case codes.OK:
			logger.Debug("grpc call", fields)
		case codes.Internal, codes.Unavailable:
			logger.Error("grpc call failed", err, fields)
		default:
			logger.Info("grpc call rejected", fields)
		}
		return resp, err
	}
}
