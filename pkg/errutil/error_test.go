package errutil

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var errSentinel = errors.New("sentinel")

func TestConstructorsKeepCause(t *testing.T) {
	err := Conflict("already pending", errSentinel)
	require.ErrorIs(t, err, errSentinel)
	require.Equal(t, StatusConflict, StatusOf(err))
	require.Equal(t, "[CONFLICT] already pending: sentinel", err.Error())

	plain := BadRequest("bad", nil)
	require.Equal(t, "[BAD_REQUEST] bad", plain.Error())
}

func TestStatusOfUnknown(t *testing.T) {
	require.Equal(t, StatusUnknown, StatusOf(errSentinel))
}

func TestHTTPStatus(t *testing.T) {
	cases := map[CoreStatus]int{
		StatusBadRequest:       http.StatusBadRequest,
		StatusValidationFailed: http.StatusUnprocessableEntity,
		StatusForbidden:        http.StatusForbidden,
		StatusConflict:         http.StatusConflict,
		StatusTooManyRequests:  http.StatusTooManyRequests,
		StatusInternal:         http.StatusInternalServerError,
		StatusUnknown:          http.StatusInternalServerError,
	}
	for code, want := range cases {
		require.Equal(t, want, code.HTTPStatus(), code)
	}
}

func TestToGRPCError(t *testing.T) {
	require.NoError(t, ToGRPCError(nil))

	st, ok := status.FromError(ToGRPCError(NotFound("order not found", errSentinel)))
	require.True(t, ok)
	require.Equal(t, codes.NotFound, st.Code())
	require.Equal(t, "order not found: sentinel", st.Message())

	st, _ = status.FromError(ToGRPCError(context.DeadlineExceeded))
	require.Equal(t, codes.DeadlineExceeded, st.Code())

	st, _ = status.FromError(ToGRPCError(errSentinel))
	require.Equal(t, codes.Internal, st.Code())

	st, _ = status.FromError(ToGRPCError(fmt.Errorf("approve: %w", Conflict("already resolved", errSentinel))))
	require.Equal(t, codes.FailedPrecondition, st.Code())
}

func TestBaseErrorGRPCStatus(t *testing.T) {
	st, ok := status.FromError(TooManyRequest("slow down", nil))
	require.True(t, ok)
	require.Equal(t, codes.ResourceExhausted, st.Code())
	require.Equal(t, "slow down", st.Message())

	require.Equal(t, codes.Unknown, StatusUnknown.GRPCCode())
}
