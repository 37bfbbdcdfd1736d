package middleware

import (
	"context"

	"engagement-controlplane/pkg/errutil"

	"google.golang.org/grpc"
)

// ErrorInterceptor translates BaseErrors returned by handlers into gRPC statuses.
func ErrorInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		resp, err := handler(ctx, req)
		if err != nil {
			return resp, errutil.ToGRPCError(err)
		}
		return resp, nil
	}
}
