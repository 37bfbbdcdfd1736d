package marketplace

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"engagement-controlplane/pkg/config"
	"engagement-controlplane/pkg/snapshot"
	"engagement-controlplane/services/catalog"
	"engagement-controlplane/services/ratelimit"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

const (
	adminID  int64 = 999
	clientID int64 = 100
)

var t0 = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type notifierMock struct {
	mu   sync.Mutex
	msgs []Message
	err  error
}

func (n *notifierMock) Notify(ctx context.Context, msgs []Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msgs...)
	return n.err
}

func (n *notifierMock) To(id int64) []Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []Message
	for _, m := range n.msgs {
		if m.To == id {
			out = append(out, m)
		}
	}
	return out
}

func (n *notifierMock) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.msgs)
}

type auditorMock struct {
	mu      sync.Mutex
	records []Adjudication
}

func (a *auditorMock) Record(ctx context.Context, adj Adjudication) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, adj)
	return nil
}

type harness struct {
	svc    *Service
	clock  *fakeClock
	store  *snapshot.Memory
	notes  *notifierMock
	audits *auditorMock
}

func rules() config.Marketplace {
	r := config.DefaultMarketplace()
	r.AdminID = adminID
	return r
}

func newHarness(t *testing.T, seed *State) *harness {
	t.Helper()

	store := snapshot.NewMemory()
	if seed != nil {
		raw, err := seed.Encode()
		require.NoError(t, err)
		require.NoError(t, store.Save(context.Background(), raw))
	}

	h := &harness{
		clock:  &fakeClock{t: t0},
		store:  store,
		notes:  &notifierMock{},
		audits: &auditorMock{},
	}

	svc, err := New(context.Background(), store, catalog.Default(), rules(),
		WithClock(h.clock.Now),
		WithNotifier(h.notes),
		WithAuditor(h.audits),
	)
	require.NoError(t, err)
	h.svc = svc
	return h
}

// tick moves past the cooldown.
func (h *harness) tick() { h.clock.Advance(3 * time.Second) }

func (h *harness) fund(t *testing.T, client int64, orderType catalog.OrderType, details, urls string) Order {
	t.Helper()
	ctx := context.Background()

	_, err := h.svc.SelectPackage(ctx, client, orderType)
	require.NoError(t, err)
	h.tick()

	sess, err := h.svc.SubmitOrderDetails(ctx, client, details)
	require.NoError(t, err)
	if urls != "" {
		h.tick()
		sess, err = h.svc.SubmitURLs(ctx, client, urls)
		require.NoError(t, err)
	}
	require.Equal(t, StepAwaitingPayment, sess.Step)
	h.tick()

	p, err := h.svc.SubmitPayment(ctx, client, "proofs/payment.jpg")
	require.NoError(t, err)

	order, err := h.svc.ApprovePayment(ctx, p.PaymentID, adminID)
	require.NoError(t, err)
	h.tick()
	return order
}

func (h *harness) join(t *testing.T, engager int64) {
	t.Helper()
	_, err := h.svc.Join(context.Background(), engager)
	require.NoError(t, err)
	h.tick()
}

func liveOrder(id string, follows, likes, comments int) *Order {
	return &Order{
		OrderID:      id,
		ClientID:     clientID,
		Handle:       "@shop",
		Platform:     catalog.Instagram,
		OrderType:    catalog.Bundle,
		Package:      "starter",
		FollowsLeft:  follows,
		LikesLeft:    likes,
		CommentsLeft: comments,
		LikeURL:      "https://instagram.com/p/likes",
		CommentURL:   "https://instagram.com/p/comments",
		Price:        2500,
		CreatedAt:    t0.Add(-time.Hour),
	}
}

func joinedEngager(id int64, earnings int64) *EngagerProfile {
	return &EngagerProfile{
		EngagerID:      id,
		Joined:         true,
		Earnings:       earnings,
		DailyResetTime: t0.Add(-time.Hour),
		TasksPerOrder:  map[string]int{},
	}
}

func seedState(orders []*Order, engagers ...*EngagerProfile) *State {
	st := NewState()
	st.Orders = orders
	for _, e := range engagers {
		st.Engagers[e.EngagerID] = e
	}
	return st
}

func TestFollowersOrderGoesLiveAfterApproval(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	_, err := h.svc.StartClient(ctx, clientID)
	require.NoError(t, err)
	_, err = h.svc.SelectPackage(ctx, clientID, catalog.Followers)
	require.NoError(t, err)
	h.tick()

	draftedAt := h.clock.Now()
	sess, err := h.svc.SubmitOrderDetails(ctx, clientID, "@shop instagram 10")
	require.NoError(t, err)
	require.Equal(t, StepAwaitingPayment, sess.Step)
	require.Equal(t, int64(1200), sess.Amount)
	require.Equal(t, fmt.Sprintf("%d_%d", clientID, draftedAt.Unix()), sess.OrderID)
	h.tick()

	p, err := h.svc.SubmitPayment(ctx, clientID, "proofs/payment.jpg")
	require.NoError(t, err)

	review := h.notes.To(adminID)
	require.Len(t, review, 1)
	require.Equal(t, "proofs/payment.jpg", review[0].PhotoRef)
	require.Equal(t, "approve_payment_"+p.PaymentID, review[0].Buttons[0].Callback)
	require.Empty(t, h.svc.Orders())

	order, err := h.svc.ApprovePayment(ctx, p.PaymentID, adminID)
	require.NoError(t, err)
	require.Equal(t, 10, order.FollowsLeft)
	require.Zero(t, order.LikesLeft)
	require.Zero(t, order.CommentsLeft)

	orders := h.svc.Orders()
	require.Len(t, orders, 1)
	require.Equal(t, sess.OrderID, orders[0].OrderID)

	sess, ok := h.svc.Session(clientID)
	require.True(t, ok)
	require.Equal(t, StepCompleted, sess.Step)
	require.Nil(t, sess.OrderDetails)
	require.True(t, h.svc.PendingSummary().Empty())
	require.Len(t, h.notes.To(clientID), 1)
}

func TestFollowProofAcceptedWithoutDwell(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	order := h.fund(t, clientID, catalog.Followers, "@shop instagram 10", "")

	h.join(t, 7)
	_, err := h.svc.Claim(ctx, 7, order.OrderID, catalog.Follow)
	require.NoError(t, err)
	h.tick()

	a, err := h.svc.SubmitProof(ctx, 7, "proofs/follow.jpg")
	require.NoError(t, err)
	require.True(t, a.Accepted())
	require.Equal(t, int64(20), a.Credited)
	require.Equal(t, int64(20), a.Earnings)

	orders := h.svc.Orders()
	require.Len(t, orders, 1)
	require.Equal(t, 9, orders[0].FollowsLeft)

	bal, err := h.svc.Balance(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, int64(20), bal.Earnings)
	require.Equal(t, 1, bal.DailyTaskCount)
	require.Equal(t, 1, bal.TasksPerOrder[order.OrderID])
	require.Empty(t, bal.TaskTimers)
}

func TestLikeProofDwellGate(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	order := h.fund(t, clientID, catalog.Likes, "@shop instagram 10", "https://instagram.com/p/abc")
	require.Equal(t, 10, order.LikesLeft)

	h.join(t, 7)
	_, err := h.svc.Claim(ctx, 7, order.OrderID, catalog.Like)
	require.NoError(t, err)
	adminBefore := len(h.notes.To(adminID))

	h.clock.Advance(10 * time.Second)
	a, err := h.svc.SubmitProof(ctx, 7, "proofs/like-1.jpg")
	require.NoError(t, err)
	require.False(t, a.Accepted())
	require.Equal(t, ReasonDwellTime, a.Reason)
	require.Equal(t, 10*time.Second, a.Elapsed)
	require.Equal(t, 10, h.svc.Orders()[0].LikesLeft)
	require.Len(t, h.notes.To(adminID), adminBefore+1)

	h.clock.Advance(55 * time.Second)
	a, err = h.svc.SubmitProof(ctx, 7, "proofs/like-2.jpg")
	require.NoError(t, err)
	require.True(t, a.Accepted())
	require.Equal(t, 65*time.Second, a.Elapsed)
	require.Equal(t, 9, h.svc.Orders()[0].LikesLeft)
	require.Equal(t, int64(10), a.Earnings)

	require.Len(t, h.audits.records, 2)
	require.Equal(t, OutcomeRejected, h.audits.records[0].Outcome)
	require.Equal(t, OutcomeAccepted, h.audits.records[1].Outcome)
}

func TestOrderDeletedWhenCountersReachZero(t *testing.T) {
	h := newHarness(t, seedState([]*Order{liveOrder("o1", 1, 0, 0)}, joinedEngager(7, 0)))
	ctx := context.Background()

	_, err := h.svc.Claim(ctx, 7, "o1", catalog.Follow)
	require.NoError(t, err)
	h.tick()

	a, err := h.svc.SubmitProof(ctx, 7, "proofs/f.jpg")
	require.NoError(t, err)
	require.True(t, a.Accepted())
	require.True(t, a.OrderCompleted)
	require.Empty(t, h.svc.Orders())
	require.Len(t, h.notes.To(clientID), 1)

	h.tick()
	_, err = h.svc.Claim(ctx, 7, "o1", catalog.Follow)
	require.ErrorIs(t, err, ErrOrderNotFound)
}

func TestFirstSubmissionWins(t *testing.T) {
	h := newHarness(t, seedState([]*Order{liveOrder("o1", 1, 5, 0)}, joinedEngager(7, 0), joinedEngager(8, 0)))
	ctx := context.Background()

	_, err := h.svc.Claim(ctx, 7, "o1", catalog.Follow)
	require.NoError(t, err)
	_, err = h.svc.Claim(ctx, 8, "o1", catalog.Follow)
	require.NoError(t, err)
	h.tick()

	a, err := h.svc.SubmitProof(ctx, 7, "proofs/a.jpg")
	require.NoError(t, err)
	require.True(t, a.Accepted())

	b, err := h.svc.SubmitProof(ctx, 8, "proofs/b.jpg")
	require.NoError(t, err)
	require.False(t, b.Accepted())
	require.Equal(t, ReasonUnitExhausted, b.Reason)
	require.Zero(t, b.Earnings)

	snap := h.svc.Snapshot()
	require.Empty(t, snap.Engagers[8].TaskTimers)
	o, ok := snap.Order("o1")
	require.True(t, ok)
	require.Zero(t, o.FollowsLeft)
	require.Equal(t, 5, o.LikesLeft)

	h.tick()
	_, err = h.svc.Claim(ctx, 8, "o1", catalog.Follow)
	require.ErrorIs(t, err, ErrOrderNotFound)
}

func TestPerOrderCap(t *testing.T) {
	o := liveOrder("o1", 10, 0, 0)
	o.OrderType = catalog.Followers
	h := newHarness(t, seedState([]*Order{o}, joinedEngager(7, 0)))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := h.svc.Claim(ctx, 7, "o1", catalog.Follow)
		require.NoError(t, err)
		h.tick()
		a, err := h.svc.SubmitProof(ctx, 7, "proofs/f.jpg")
		require.NoError(t, err)
		require.True(t, a.Accepted())
		h.tick()
	}

	offers, err := h.svc.ListTasks(ctx, 7)
	require.NoError(t, err)
	require.Empty(t, offers)
	h.tick()

	_, err = h.svc.Claim(ctx, 7, "o1", catalog.Follow)
	require.NoError(t, err)
	h.tick()

	a, err := h.svc.SubmitProof(ctx, 7, "proofs/f.jpg")
	require.NoError(t, err)
	require.False(t, a.Accepted())
	require.Equal(t, ReasonOrderCap, a.Reason)
	require.Equal(t, int64(100), a.Earnings)

	snap := h.svc.Snapshot()
	require.Equal(t, 5, snap.Orders[0].FollowsLeft)
	require.Equal(t, 5, snap.Engagers[7].TasksPerOrder["o1"])
	require.Empty(t, snap.Engagers[7].TaskTimers)
}

func TestDailyCapAndWindowReset(t *testing.T) {
	e := joinedEngager(7, 0)
	e.DailyTaskCount = 25
	h := newHarness(t, seedState([]*Order{liveOrder("o1", 10, 0, 0)}, e))
	ctx := context.Background()

	offers, err := h.svc.ListTasks(ctx, 7)
	require.NoError(t, err)
	require.Empty(t, offers)
	h.tick()

	_, err = h.svc.Claim(ctx, 7, "o1", catalog.Follow)
	require.NoError(t, err)
	h.tick()

	a, err := h.svc.SubmitProof(ctx, 7, "proofs/f.jpg")
	require.NoError(t, err)
	require.Equal(t, ReasonDailyCap, a.Reason)
	require.Len(t, h.svc.Snapshot().Engagers[7].TaskTimers, 1)

	h.clock.Advance(24 * time.Hour)
	offers, err = h.svc.ListTasks(ctx, 7)
	require.NoError(t, err)
	require.Len(t, offers, 1)
	h.tick()

	a, err = h.svc.SubmitProof(ctx, 7, "proofs/f.jpg")
	require.NoError(t, err)
	require.True(t, a.Accepted())

	bal, err := h.svc.Balance(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, 1, bal.DailyTaskCount)
}

func TestListTasks(t *testing.T) {
	o2 := liveOrder("o2", 4, 0, 0)
	o2.OrderType = catalog.Followers
	h := newHarness(t, seedState([]*Order{liveOrder("o1", 2, 3, 1), o2}, joinedEngager(7, 0)))

	offers, err := h.svc.ListTasks(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, offers, 4)

	require.Equal(t, "o1", offers[0].OrderID)
	require.Equal(t, catalog.Follow, offers[0].TaskType)
	require.Equal(t, int64(20), offers[0].Reward)
	require.Equal(t, "task_f_o1", offers[0].Callback())

	require.Equal(t, catalog.Like, offers[1].TaskType)
	require.Equal(t, "https://instagram.com/p/likes", offers[1].Target)
	require.Equal(t, 3, offers[1].Remaining)
	require.Equal(t, int64(10), offers[1].Reward)

	require.Equal(t, catalog.Comment, offers[2].TaskType)
	require.Equal(t, int64(30), offers[2].Reward)

	require.Equal(t, "o2", offers[3].OrderID)
}

func TestListTasksRequiresJoin(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.svc.ListTasks(context.Background(), 7)
	require.ErrorIs(t, err, ErrNotJoined)
}

func TestSubmitProofWithoutClaim(t *testing.T) {
	h := newHarness(t, seedState(nil, joinedEngager(7, 0)))
	saves := h.store.Saves()

	_, err := h.svc.SubmitProof(context.Background(), 7, "proofs/x.jpg")
	require.ErrorIs(t, err, ErrNoActiveClaim)
	require.Empty(t, h.audits.records)
	require.Equal(t, saves, h.store.Saves())
}

func TestSubmitProofSkipsClaimsOnVanishedOrders(t *testing.T) {
	e := joinedEngager(7, 0)
	e.TaskTimers = []Claim{
		{OrderID: "gone", TaskType: catalog.Follow, ClaimedAt: t0.Add(-time.Minute)},
		{OrderID: "o1", TaskType: catalog.Comment, ClaimedAt: t0.Add(-2 * time.Minute)},
	}
	h := newHarness(t, seedState([]*Order{liveOrder("o1", 0, 0, 2)}, e))

	a, err := h.svc.SubmitProof(context.Background(), 7, "proofs/c.jpg")
	require.NoError(t, err)
	require.True(t, a.Accepted())
	require.Equal(t, "o1", a.OrderID)
	require.Equal(t, int64(30), a.Credited)
}

func TestRateLimiting(t *testing.T) {
	h := newHarness(t, seedState([]*Order{liveOrder("o1", 3, 0, 0)}, joinedEngager(7, 0)))
	ctx := context.Background()

	_, err := h.svc.Claim(ctx, 7, "o1", catalog.Follow)
	require.NoError(t, err)

	h.clock.Advance(time.Second)
	_, err = h.svc.SubmitProof(ctx, 7, "proofs/f.jpg")
	require.ErrorIs(t, err, ErrRateLimited)
	var cooldown *ratelimit.CooldownError
	require.True(t, errors.As(err, &cooldown))
	require.Equal(t, time.Second, cooldown.Wait)

	// a refused attempt does not extend the cooldown
	h.clock.Advance(time.Second)
	_, err = h.svc.SubmitProof(ctx, 7, "proofs/f.jpg")
	require.NoError(t, err)

	// exempt operations pass but still refresh the timestamp
	_, err = h.svc.SelectPackage(ctx, 7, catalog.Likes)
	require.NoError(t, err)
	_, err = h.svc.SelectPackage(ctx, 7, catalog.Likes)
	require.NoError(t, err)
	_, err = h.svc.ListTasks(ctx, 7)
	require.ErrorIs(t, err, ErrRateLimited)
}

func TestOrderDetailsRePrompt(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	_, err := h.svc.SelectPackage(ctx, clientID, catalog.Bundle)
	require.NoError(t, err)

	for _, tc := range []struct {
		input string
		want  error
	}{
		{input: "@shop myspace pro", want: ErrValidation},
		{input: "@shop instagram platinum", want: ErrInvalidCatalogEntry},
		{input: "@shop instagram", want: ErrValidation},
		{input: "@shop instagram 10", want: ErrInvalidCatalogEntry},
	} {
		h.tick()
		_, err := h.svc.SubmitOrderDetails(ctx, clientID, tc.input)
		require.ErrorIs(t, err, tc.want, tc.input)
		sess, _ := h.svc.Session(clientID)
		require.Equal(t, StepAwaitingOrderDetails, sess.Step, tc.input)
	}

	h.tick()
	sess, err := h.svc.SubmitOrderDetails(ctx, clientID, "@shop Instagram PRO")
	require.NoError(t, err)
	require.Equal(t, StepAwaitingURLs, sess.Step)
	require.Equal(t, int64(11000), sess.Amount)
	require.Equal(t, 50, sess.OrderDetails.FollowsLeft)

	h.tick()
	_, err = h.svc.SubmitOrderDetails(ctx, clientID, "@shop instagram pro")
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestSubmitURLs(t *testing.T) {
	tests := []struct {
		name      string
		orderType catalog.OrderType
		details   string
		urls      string
		wantErr   error
		check     func(t *testing.T, o *Order)
	}{
		{
			name: "likes single url", orderType: catalog.Likes, details: "@shop tiktok 25",
			urls: "https://www.TikTok.com/@shop/video/1",
			check: func(t *testing.T, o *Order) {
				require.Equal(t, "https://www.TikTok.com/@shop/video/1", o.LikeURL)
				require.Empty(t, o.CommentURL)
			},
		},
		{
			name: "comments wrong platform", orderType: catalog.Comments, details: "@shop instagram 10",
			urls: "https://facebook.com/post/1", wantErr: ErrValidation,
		},
		{
			name: "likes non http scheme", orderType: catalog.Likes, details: "@shop instagram 10",
			urls: "ftp://instagram.com/p/1", wantErr: ErrValidation,
		},
		{
			name: "likes two urls", orderType: catalog.Likes, details: "@shop instagram 10",
			urls: "https://instagram.com/p/1 https://instagram.com/p/2", wantErr: ErrValidation,
		},
		{
			name: "bundle recent posts", orderType: catalog.Bundle, details: "@shop instagram starter",
			urls: "Recent",
			check: func(t *testing.T, o *Order) {
				require.True(t, o.UseRecentPosts)
				require.Equal(t, "latest 3 posts of @shop", o.Target(catalog.Like))
			},
		},
		{
			name: "bundle one url", orderType: catalog.Bundle, details: "@shop instagram starter",
			urls: "https://instagram.com/p/1",
			check: func(t *testing.T, o *Order) {
				require.Equal(t, o.LikeURL, o.CommentURL)
			},
		},
		{
			name: "bundle two urls", orderType: catalog.Bundle, details: "@shop instagram starter",
			urls: "https://instagram.com/p/1 https://instagram.com/p/2",
			check: func(t *testing.T, o *Order) {
				require.Equal(t, "https://instagram.com/p/1", o.LikeURL)
				require.Equal(t, "https://instagram.com/p/2", o.CommentURL)
			},
		},
		{
			name: "bundle three urls", orderType: catalog.Bundle, details: "@shop instagram starter",
			urls: "https://instagram.com/p/1 https://instagram.com/p/2 https://instagram.com/p/3", wantErr: ErrValidation,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, nil)
			ctx := context.Background()

			_, err := h.svc.SelectPackage(ctx, clientID, tc.orderType)
			require.NoError(t, err)
			h.tick()
			_, err = h.svc.SubmitOrderDetails(ctx, clientID, tc.details)
			require.NoError(t, err)
			h.tick()

			sess, err := h.svc.SubmitURLs(ctx, clientID, tc.urls)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				sess, _ = h.svc.Session(clientID)
				require.Equal(t, StepAwaitingURLs, sess.Step)
				return
			}
			require.NoError(t, err)
			require.Equal(t, StepAwaitingPayment, sess.Step)
			tc.check(t, sess.OrderDetails)
		})
	}
}

func TestSelectPackageDiscardsDraft(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	_, err := h.svc.SelectPackage(ctx, clientID, catalog.Likes)
	require.NoError(t, err)
	h.tick()
	_, err = h.svc.SubmitOrderDetails(ctx, clientID, "@shop instagram 10")
	require.NoError(t, err)

	sess, err := h.svc.SelectPackage(ctx, clientID, catalog.Followers)
	require.NoError(t, err)
	require.Equal(t, StepAwaitingOrderDetails, sess.Step)
	require.Nil(t, sess.OrderDetails)
	require.Empty(t, sess.OrderID)
}

func TestPaymentApprovalGuards(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	_, err := h.svc.SelectPackage(ctx, clientID, catalog.Followers)
	require.NoError(t, err)
	h.tick()
	_, err = h.svc.SubmitOrderDetails(ctx, clientID, "@shop facebook 25")
	require.NoError(t, err)
	h.tick()
	p, err := h.svc.SubmitPayment(ctx, clientID, "proofs/p.jpg")
	require.NoError(t, err)
	h.tick()

	_, err = h.svc.SubmitPayment(ctx, clientID, "proofs/p2.jpg")
	require.ErrorIs(t, err, ErrPaymentPending)
	h.tick()
	require.ErrorIs(t, h.svc.Cancel(ctx, clientID), ErrPaymentPending)
	_, err = h.svc.SelectPackage(ctx, clientID, catalog.Likes)
	require.ErrorIs(t, err, ErrPaymentPending)
	sess, ok := h.svc.Session(clientID)
	require.True(t, ok)
	require.Equal(t, p.PaymentID, sess.PaymentID)
	require.False(t, sess.AwaitingPaymentProof())

	_, err = h.svc.ApprovePayment(ctx, p.PaymentID, 12345)
	require.ErrorIs(t, err, ErrUnauthorized)
	require.Len(t, h.svc.PendingSummary().Payments, 1)

	_, err = h.svc.ApprovePayment(ctx, p.PaymentID, adminID)
	require.NoError(t, err)
	_, err = h.svc.ApprovePayment(ctx, p.PaymentID, adminID)
	require.ErrorIs(t, err, ErrAlreadyResolved)
	require.ErrorIs(t, h.svc.RejectPayment(ctx, p.PaymentID, adminID), ErrAlreadyResolved)
	require.Len(t, h.svc.Orders(), 1)
}

func TestPaymentRejectionDiscardsDraft(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	_, err := h.svc.SelectPackage(ctx, clientID, catalog.Followers)
	require.NoError(t, err)
	h.tick()
	_, err = h.svc.SubmitOrderDetails(ctx, clientID, "@shop twitter 50")
	require.NoError(t, err)
	h.tick()
	p, err := h.svc.SubmitPayment(ctx, clientID, "proofs/p.jpg")
	require.NoError(t, err)

	require.NoError(t, h.svc.RejectPayment(ctx, p.PaymentID, adminID))

	_, ok := h.svc.Session(clientID)
	require.False(t, ok)
	require.Empty(t, h.svc.Orders())
	require.True(t, h.svc.PendingSummary().Empty())
	require.Len(t, h.notes.To(clientID), 1)
}

func TestSubmitPaymentRequiresCompleteDraft(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	_, err := h.svc.SubmitPayment(ctx, clientID, "proofs/p.jpg")
	require.ErrorIs(t, err, ErrInvalidState)

	_, err = h.svc.SelectPackage(ctx, clientID, catalog.Comments)
	require.NoError(t, err)
	h.tick()
	_, err = h.svc.SubmitOrderDetails(ctx, clientID, "@shop instagram 10")
	require.NoError(t, err)
	h.tick()

	_, err = h.svc.SubmitPayment(ctx, clientID, "proofs/p.jpg")
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestCancel(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	_, err := h.svc.SelectPackage(ctx, clientID, catalog.Followers)
	require.NoError(t, err)
	require.NoError(t, h.svc.Cancel(ctx, clientID))

	sess, ok := h.svc.Session(clientID)
	require.True(t, ok)
	require.Equal(t, StepCancelled, sess.Step)
	require.Equal(t, 0, h.notes.Len())
}

func TestWithdrawalApproved(t *testing.T) {
	h := newHarness(t, seedState(nil, joinedEngager(7, 1500)))
	ctx := context.Background()

	earnings, err := h.svc.BeginWithdrawal(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, int64(1500), earnings)
	h.tick()

	payout, err := h.svc.RequestWithdrawal(ctx, 7, "0123456789")
	require.NoError(t, err)
	require.Equal(t, int64(1500), payout.Amount)

	bal, err := h.svc.Balance(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, int64(1500), bal.Earnings)
	require.False(t, bal.AwaitingPayout)

	approved, err := h.svc.ApprovePayout(ctx, payout.PayoutID, adminID)
	require.NoError(t, err)
	require.Equal(t, payout, approved)

	bal, err = h.svc.Balance(ctx, 7)
	require.NoError(t, err)
	require.Zero(t, bal.Earnings)
	require.Equal(t, int64(1500), bal.TotalPaidOut)
	require.Len(t, h.notes.To(7), 1)

	_, err = h.svc.ApprovePayout(ctx, payout.PayoutID, adminID)
	require.ErrorIs(t, err, ErrAlreadyResolved)
}

func TestWithdrawalBelowFloor(t *testing.T) {
	h := newHarness(t, seedState(nil, joinedEngager(7, 999)))
	saves := h.store.Saves()

	_, err := h.svc.BeginWithdrawal(context.Background(), 7)
	require.ErrorIs(t, err, ErrInsufficientEarnings)
	h.tick()
	_, err = h.svc.RequestWithdrawal(context.Background(), 7, "0123456789")
	require.ErrorIs(t, err, ErrInsufficientEarnings)

	require.Equal(t, saves, h.store.Saves())
	require.True(t, h.svc.PendingSummary().Empty())
}

func TestWithdrawalValidation(t *testing.T) {
	h := newHarness(t, seedState(nil, joinedEngager(7, 2000)))
	ctx := context.Background()

	_, err := h.svc.BeginWithdrawal(ctx, 7)
	require.NoError(t, err)

	for _, account := range []string{"12345", "01234567890", "01234abcde", "０１２３４５６７８９"} {
		h.tick()
		_, err := h.svc.RequestWithdrawal(ctx, 7, account)
		require.ErrorIs(t, err, ErrValidation, account)
	}

	bal, err := h.svc.Balance(ctx, 7)
	require.NoError(t, err)
	require.True(t, bal.AwaitingPayout)
}

func TestWithdrawalPendingAndRejected(t *testing.T) {
	h := newHarness(t, seedState(nil, joinedEngager(7, 1200)))
	ctx := context.Background()

	payout, err := h.svc.RequestWithdrawal(ctx, 7, "9876543210")
	require.NoError(t, err)
	h.tick()

	_, err = h.svc.RequestWithdrawal(ctx, 7, "9876543210")
	require.ErrorIs(t, err, ErrPayoutPending)
	h.tick()

	require.ErrorIs(t, h.svc.RejectPayout(ctx, payout.PayoutID, 1), ErrUnauthorized)
	require.NoError(t, h.svc.RejectPayout(ctx, payout.PayoutID, adminID))

	bal, err := h.svc.Balance(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, int64(1200), bal.Earnings)
	h.tick()

	_, err = h.svc.RequestWithdrawal(ctx, 7, "9876543210")
	require.NoError(t, err)
}

func TestPersistenceFailureRollsBack(t *testing.T) {
	h := newHarness(t, seedState([]*Order{liveOrder("o1", 2, 0, 0)}, joinedEngager(7, 0)))
	ctx := context.Background()

	_, err := h.svc.Claim(ctx, 7, "o1", catalog.Follow)
	require.NoError(t, err)
	h.tick()

	h.store.FailSave = errors.New("disk full")
	_, err = h.svc.SubmitProof(ctx, 7, "proofs/f.jpg")
	require.ErrorIs(t, err, ErrPersistence)

	snap := h.svc.Snapshot()
	require.Equal(t, 2, snap.Orders[0].FollowsLeft)
	require.Zero(t, snap.Engagers[7].Earnings)
	require.Len(t, snap.Engagers[7].TaskTimers, 1)
	require.Empty(t, h.audits.records)
	require.Zero(t, h.notes.Len())

	h.store.FailSave = nil
	h.tick()
	a, err := h.svc.SubmitProof(ctx, 7, "proofs/f.jpg")
	require.NoError(t, err)
	require.True(t, a.Accepted())
}

func TestStateSurvivesRestart(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	order := h.fund(t, clientID, catalog.Followers, "@shop instagram 10", "")

	h.join(t, 7)
	_, err := h.svc.Claim(ctx, 7, order.OrderID, catalog.Follow)
	require.NoError(t, err)
	h.tick()
	_, err = h.svc.SubmitProof(ctx, 7, "proofs/f.jpg")
	require.NoError(t, err)

	reloaded, err := New(ctx, h.store, catalog.Default(), rules())
	require.NoError(t, err)
	require.Equal(t, h.svc.Orders(), reloaded.Orders())

	bal, err := reloaded.Balance(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, int64(20), bal.Earnings)
}

func TestNewRequiresAdmin(t *testing.T) {
	_, err := New(context.Background(), snapshot.NewMemory(), nil, config.DefaultMarketplace())
	require.ErrorIs(t, err, config.ErrMissingAdmin)
}

func TestConcurrentProofsNeverOverdraw(t *testing.T) {
	const engagers = 20

	st := seedState([]*Order{liveOrder("o1", 5, 0, 0)})
	for i := int64(1); i <= engagers; i++ {
		e := joinedEngager(i, 0)
		e.TaskTimers = []Claim{{OrderID: "o1", TaskType: catalog.Follow, ClaimedAt: t0}}
		st.Engagers[i] = e
	}
	h := newHarness(t, st)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		noClaim  int
	)
	for i := int64(1); i <= engagers; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			a, err := h.svc.SubmitProof(context.Background(), id, "proofs/f.jpg")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil && a.Accepted():
				accepted++
			case errors.Is(err, ErrNoActiveClaim):
				noClaim++
			}
		}(i)
	}
	wg.Wait()

	require.Equal(t, 5, accepted)
	require.Equal(t, engagers-5, noClaim)
	require.Empty(t, h.svc.Orders())

	var total int64
	for _, e := range h.svc.Snapshot().Engagers {
		total += e.Earnings
	}
	require.Equal(t, int64(5*20), total)
}

func TestConcurrentPayoutApprovalDebitsOnce(t *testing.T) {
	h := newHarness(t, seedState(nil, joinedEngager(7, 3000)))
	ctx := context.Background()

	payout, err := h.svc.RequestWithdrawal(ctx, 7, "0123456789")
	require.NoError(t, err)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		oks  int
		dups int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.svc.ApprovePayout(ctx, payout.PayoutID, adminID)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				oks++
			} else if errors.Is(err, ErrAlreadyResolved) {
				dups++
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, oks)
	require.Equal(t, 9, dups)
	require.Zero(t, h.svc.Snapshot().Engagers[7].Earnings)
}
