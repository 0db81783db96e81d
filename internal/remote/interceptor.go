// ABOUTME: gRPC server construction and interceptors for logging and panic recovery
// ABOUTME: Every call is logged with its method, peer, duration and status code

package remote

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// NewGRPCServer creates a gRPC server with keepalive settings and the logging
// and recovery interceptors. Extra options are appended.
func NewGRPCServer(logger *slog.Logger, opts ...grpc.ServerOption) *grpc.Server {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "grpc")

	opts = append([]grpc.ServerOption{
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    15 * time.Second,
			Timeout: 5 * time.Second,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             5 * time.Second,
			PermitWithoutStream: true,
		}),
		grpc.ChainUnaryInterceptor(
			UnaryLoggingInterceptor(logger),
			UnaryRecoveryInterceptor(logger),
		),
		grpc.ChainStreamInterceptor(
			StreamLoggingInterceptor(logger),
			StreamRecoveryInterceptor(logger),
		),
	}, opts...)

	return grpc.NewServer(opts...)
}

// callAttrs returns the structured context shared by every log line of a call.
func callAttrs(ctx context.Context, method string) []any {
	attrs := []any{"method", method}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		attrs = append(attrs, "peer_addr", p.Addr.String())
	}
	return attrs
}

func logCall(logger *slog.Logger, ctx context.Context, method string, start time.Time, err error) {
	code := status.Code(err)
	attrs := append(callAttrs(ctx, method), "code", code.String(), "duration", time.Since(start))

	switch code {
	case codes.OK, codes.Canceled:
		logger.Debug("grpc call", attrs...)
	case codes.Internal, codes.Unknown:
		logger.Error("grpc call failed", append(attrs, "error", err)...)
	default:
		logger.Warn("grpc call failed", append(attrs, "error", err)...)
	}
}

// UnaryLoggingInterceptor logs every unary call.
func UnaryLoggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logCall(logger, ctx, info.FullMethod, start, err)
		return resp, err
	}
}

// StreamLoggingInterceptor logs every streaming call when it ends.
func StreamLoggingInterceptor(logger *slog.Logger) grpc.StreamServerInterceptor {
	return func(
		srv any,
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		start := time.Now()
		err := handler(srv, ss)
		logCall(logger, ss.Context(), info.FullMethod, start, err)
		return err
	}
}

// UnaryRecoveryInterceptor turns a handler panic into codes.Internal.
func UnaryRecoveryInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic in grpc handler", append(callAttrs(ctx, info.FullMethod), "panic", r, "stack", string(debug.Stack()))...)
				err = status.Error(codes.Internal, "internal server error")
			}
		}()
		return handler(ctx, req)
	}
}

// StreamRecoveryInterceptor turns a streaming handler panic into codes.Internal.
func StreamRecoveryInterceptor(logger *slog.Logger) grpc.StreamServerInterceptor {
	return func(
		srv any,
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic in grpc stream handler", append(callAttrs(ss.Context(), info.FullMethod), "panic", r, "stack", string(debug.Stack()))...)
				err = status.Error(codes.Internal, "internal server error")
			}
		}()
		return handler(srv, ss)
	}
}
