package audit

import (
	"context"
	"testing"
	"time"

	"engagement-controlplane/pkg/db/pagination"
	"engagement-controlplane/pkg/errutil"
	"engagement-controlplane/services/catalog"
	"engagement-controlplane/services/marketplace"
	"engagement-controlplane/services/testutil"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{DB: testutil.NewTestDB(t), Node: node})
	require.NoError(t, err)
	return svc
}

func TestRecordAndList(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.Record(ctx, marketplace.Adjudication{
			EngagerID: 7,
			OrderID:   "o1",
			TaskType:  catalog.Like,
			Outcome:   marketplace.OutcomeRejected,
			Reason:    marketplace.ReasonDwellTime,
			Elapsed:   time.Duration(i+1) * 10 * time.Second,
			ProofRef:  "proofs/x.jpg",
			At:        at.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, svc.Record(ctx, marketplace.Adjudication{
		EngagerID: 8,
		OrderID:   "o2",
		TaskType:  catalog.Follow,
		Outcome:   marketplace.OutcomeAccepted,
		Credited:  20,
		At:        at.Add(time.Hour),
	}))

	rows, info, err := svc.List(ctx, Filter{EngagerID: 7}, pagination.Pagination{Limit: 2})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.True(t, info.HasMore)
	require.Equal(t, int64(30000), rows[0].ElapsedMs)
	require.False(t, rows[0].Accepted)
	require.Equal(t, "dwell_time", rows[0].Reason)

	rest, info, err := svc.List(ctx, Filter{EngagerID: 7}, pagination.Pagination{Limit: 2, Cursor: info.NextCursor})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	require.False(t, info.HasMore)
	require.Equal(t, int64(10000), rest[0].ElapsedMs)

	all, _, err := svc.List(ctx, Filter{}, pagination.Pagination{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	require.True(t, all[0].Accepted)
	require.Equal(t, int64(20), all[0].Credited)
}

func TestListRejectsBadCursor(t *testing.T) {
	svc := newTestService(t)
	_, _, err := svc.List(context.Background(), Filter{}, pagination.Pagination{Cursor: "not base64!"})
	require.ErrorIs(t, err, pagination.ErrInvalidCursor)
	require.Equal(t, errutil.StatusBadRequest, errutil.StatusOf(err))
}
