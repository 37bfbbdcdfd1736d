package marketplace

import (
	"fmt"
	"strings"
	"time"

	"engagement-controlplane/services/catalog"
)

type Step string

const (
	StepSelectingPackage     Step = "selecting_package"
	StepAwaitingOrderDetails Step = "awaiting_order_details"
	StepAwaitingURLs         Step = "awaiting_urls"
	StepAwaitingPayment      Step = "awaiting_payment"
	StepCompleted            Step = "completed"
	StepCancelled            Step = "cancelled"
	StepRejected             Step = "rejected"
)

// Terminal reports whether the draft pipeline has finished.
func (s Step) Terminal() bool {
	return s == StepCompleted || s == StepCancelled || s == StepRejected
}

// Order is a funded unit of work. It stays in State.Orders only while one of its counters is positive.
type Order struct {
	OrderID        string            `json:"order_id"`
	ClientID       int64             `json:"client_id"`
	Handle         string            `json:"handle"`
	Platform       catalog.Platform  `json:"platform"`
	OrderType      catalog.OrderType `json:"order_type"`
	Package        string            `json:"package"`
	FollowsLeft    int               `json:"follows_left"`
	LikesLeft      int               `json:"likes_left"`
	CommentsLeft   int               `json:"comments_left"`
	LikeURL        string            `json:"like_url,omitempty"`
	CommentURL     string            `json:"comment_url,omitempty"`
	UseRecentPosts bool              `json:"use_recent_posts"`
	Price          int64             `json:"price"`
	CreatedAt      time.Time         `json:"created_at"`
}

type OrderParams struct {
	OrderID   string
	ClientID  int64
	Handle    string
	Platform  catalog.Platform
	OrderType catalog.OrderType
	Package   string
	Quote     catalog.Quote
	CreatedAt time.Time
}

// NewOrder builds a draft order from a resolved quote.
func NewOrder(p OrderParams) (*Order, error) {
	if p.OrderID == "" {
		return nil, fmt.Errorf("order id is required")
	}
	if strings.TrimSpace(p.Handle) == "" {
		return nil, fmt.Errorf("handle is required")
	}
	if _, err := catalog.ParsePlatform(string(p.Platform)); err != nil {
		return nil, err
	}
	q := p.Quote
	if q.FollowUnits < 0 || q.LikeUnits < 0 || q.CommentUnits < 0 {
		return nil, fmt.Errorf("unit counts must not be negative")
	}
	if q.FollowUnits+q.LikeUnits+q.CommentUnits == 0 {
		return nil, fmt.Errorf("order has no units")
	}

	return &Order{
		OrderID:      p.OrderID,
		ClientID:     p.ClientID,
		Handle:       p.Handle,
		Platform:     p.Platform,
		OrderType:    p.OrderType,
		Package:      p.Package,
		FollowsLeft:  q.FollowUnits,
		LikesLeft:    q.LikeUnits,
		CommentsLeft: q.CommentUnits,
		Price:        q.Price,
		CreatedAt:    p.CreatedAt,
	}, nil
}

// Active reports whether the order is still visible to the marketplace.
func (o *Order) Active() bool {
	return o.FollowsLeft > 0 || o.LikesLeft > 0 || o.CommentsLeft > 0
}

func (o *Order) Remaining(t catalog.TaskType) int {
	switch t {
	case catalog.Follow:
		return o.FollowsLeft
	case catalog.Like:
		return o.LikesLeft
	case catalog.Comment:
		return o.CommentsLeft
	default:
		return 0
	}
}

func (o *Order) decrement(t catalog.TaskType) {
	switch t {
	case catalog.Follow:
		if o.FollowsLeft > 0 {
			o.FollowsLeft--
		}
	case catalog.Like:
		if o.LikesLeft > 0 {
			o.LikesLeft--
		}
	case catalog.Comment:
		if o.CommentsLeft > 0 {
			o.CommentsLeft--
		}
	}
}

// Target is the URL or hint an engager acts on for the given task type.
func (o *Order) Target(t catalog.TaskType) string {
	switch t {
	case catalog.Like:
		if o.UseRecentPosts {
			return "latest 3 posts of " + o.Handle
		}
		return o.LikeURL
	case catalog.Comment:
		if o.UseRecentPosts {
			return "latest 3 posts of " + o.Handle
		}
		return o.CommentURL
	default:
		return o.Handle
	}
}

// complete reports whether every field the pipeline collects is present.
func (o *Order) complete() bool {
	if o == nil || o.OrderID == "" || o.Handle == "" || !o.Active() {
		return false
	}
	if o.UseRecentPosts {
		return true
	}
	if o.LikesLeft > 0 && o.LikeURL == "" {
		return false
	}
	if o.CommentsLeft > 0 && o.CommentURL == "" {
		return false
	}
	return true
}

// ClientSession is the per-client draft pipeline.
type ClientSession struct {
	ClientID     int64             `json:"client_id"`
	Step         Step              `json:"step"`
	OrderType    catalog.OrderType `json:"order_type,omitempty"`
	Platform     catalog.Platform  `json:"platform,omitempty"`
	Package      string            `json:"package,omitempty"`
	Handle       string            `json:"handle,omitempty"`
	OrderDetails *Order            `json:"order_details,omitempty"`
	OrderID      string            `json:"order_id,omitempty"`
	Amount       int64             `json:"amount,omitempty"`
	PaymentID    string            `json:"payment_id,omitempty"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// AwaitingPaymentProof reports whether the draft still needs its payment screenshot.
// Once a payment is under review the step stays put but no further screenshot is taken.
func (s ClientSession) AwaitingPaymentProof() bool {
	return s.Step == StepAwaitingPayment && s.PaymentID == ""
}

func (s *ClientSession) paymentUnderReview(st *State) bool {
	if s.PaymentID == "" {
		return false
	}
	_, ok := st.PendingPayments[s.PaymentID]
	return ok
}

// Claim is an outstanding task claim. Timers are kept in claim order.
type Claim struct {
	OrderID   string           `json:"order_id"`
	TaskType  catalog.TaskType `json:"task_type"`
	ClaimedAt time.Time        `json:"claimed_at"`
}

func (c Claim) Key() string {
	return c.OrderID + ":" + string(c.TaskType)
}

type EngagerProfile struct {
	EngagerID      int64          `json:"engager_id"`
	Joined         bool           `json:"joined"`
	Earnings       int64          `json:"earnings"`
	TaskTimers     []Claim        `json:"task_timers"`
	DailyTaskCount int            `json:"daily_task_count"`
	DailyResetTime time.Time      `json:"daily_reset_time"`
	TasksPerOrder  map[string]int `json:"tasks_per_order"`
	AwaitingPayout bool           `json:"awaiting_payout"`
	TotalCompleted int            `json:"total_completed"`
	TotalPaidOut   int64          `json:"total_paid_out"`
}

func (p *EngagerProfile) claimIndex(orderID string, t catalog.TaskType) int {
	for i, c := range p.TaskTimers {
		if c.OrderID == orderID && c.TaskType == t {
			return i
		}
	}
	return -1
}

// upsertClaim records a claim, keeping the original position when the key already exists.
func (p *EngagerProfile) upsertClaim(orderID string, t catalog.TaskType, now time.Time) Claim {
	c := Claim{OrderID: orderID, TaskType: t, ClaimedAt: now}
	if i := p.claimIndex(orderID, t); i >= 0 {
		p.TaskTimers[i] = c
		return c
	}
	p.TaskTimers = append(p.TaskTimers, c)
	return c
}

func (p *EngagerProfile) dropClaim(orderID string, t catalog.TaskType) {
	if i := p.claimIndex(orderID, t); i >= 0 {
		p.TaskTimers = append(p.TaskTimers[:i], p.TaskTimers[i+1:]...)
	}
}

// rollWindow resets the daily counter when the window has elapsed. It reports whether it changed anything.
func (p *EngagerProfile) rollWindow(now time.Time, window time.Duration) bool {
	if now.Sub(p.DailyResetTime) >= window {
		p.DailyTaskCount = 0
		p.DailyResetTime = now
		return true
	}
	return false
}

type PendingPayment struct {
	PaymentID    string    `json:"payment_id"`
	ClientID     int64     `json:"client_id"`
	OrderID      string    `json:"order_id"`
	OrderDetails Order     `json:"order_details"`
	ProofRef     string    `json:"proof_ref"`
	SubmittedAt  time.Time `json:"submitted_at"`
}

type PendingPayout struct {
	PayoutID           string    `json:"payout_id"`
	EngagerID          int64     `json:"engager_id"`
	Amount             int64     `json:"amount"`
	DestinationAccount string    `json:"destination_account"`
	RequestedAt        time.Time `json:"requested_at"`
}

// TaskOffer is one claimable task unit as shown to an engager.
type TaskOffer struct {
	OrderID   string           `json:"order_id"`
	Handle    string           `json:"handle"`
	Platform  catalog.Platform `json:"platform"`
	TaskType  catalog.TaskType `json:"task_type"`
	Target    string           `json:"target"`
	Remaining int              `json:"remaining"`
	Reward    int64            `json:"reward"`
}

// Callback is the tag a chat button carries to claim this offer.
func (o TaskOffer) Callback() string {
	return "task_" + o.TaskType.Code() + "_" + o.OrderID
}

type Outcome string

const (
	OutcomeAccepted Outcome = "accepted"
	OutcomeRejected Outcome = "rejected"
)

type RejectReason string

const (
	ReasonDwellTime     RejectReason = "dwell_time"
	ReasonUnitExhausted RejectReason = "unit_exhausted"
	ReasonOrderCap      RejectReason = "order_cap"
	ReasonDailyCap      RejectReason = "daily_cap"
)

// Adjudication is the result of one proof submission.
type Adjudication struct {
	EngagerID      int64            `json:"engager_id"`
	OrderID        string           `json:"order_id"`
	TaskType       catalog.TaskType `json:"task_type"`
	Outcome        Outcome          `json:"outcome"`
	Reason         RejectReason     `json:"reason,omitempty"`
	Elapsed        time.Duration    `json:"elapsed"`
	Credited       int64            `json:"credited"`
	Earnings       int64            `json:"earnings"`
	OrderCompleted bool             `json:"order_completed"`
	ProofRef       string           `json:"proof_ref"`
	At             time.Time        `json:"at"`
}

func (a *Adjudication) Accepted() bool { return a.Outcome == OutcomeAccepted }

// Message is an outbound chat message produced by an operation.
type Message struct {
	To       int64    `json:"to"`
	Text     string   `json:"text"`
	PhotoRef string   `json:"photo_ref,omitempty"`
	Buttons  []Button `json:"buttons,omitempty"`
}

type Button struct {
	Label    string `json:"label"`
	Callback string `json:"callback"`
}

// Summary is the administrator's view of both approval queues.
type Summary struct {
	Payments []PendingPayment `json:"payments"`
	Payouts  []PendingPayout  `json:"payouts"`
}

func (s Summary) Empty() bool {
	return len(s.Payments) == 0 && len(s.Payouts) == 0
}
