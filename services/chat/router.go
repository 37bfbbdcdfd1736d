package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"engagement-controlplane/pkg/config"
	"engagement-controlplane/services/catalog"
	"engagement-controlplane/services/intent"
	"engagement-controlplane/services/marketplace"

	"go.uber.org/zap"
)

// Engine is the part of the marketplace the chat surface drives.
type Engine interface {
	StartClient(ctx context.Context, clientID int64) (marketplace.ClientSession, error)
	StartEngager(ctx context.Context, engagerID int64) (marketplace.EngagerProfile, bool, error)
	Join(ctx context.Context, engagerID int64) (marketplace.EngagerProfile, error)
	SelectPackage(ctx context.Context, clientID int64, orderType catalog.OrderType) (marketplace.ClientSession, error)
	SubmitOrderDetails(ctx context.Context, clientID int64, text string) (marketplace.ClientSession, error)
	SubmitURLs(ctx context.Context, clientID int64, text string) (marketplace.ClientSession, error)
	SubmitPayment(ctx context.Context, clientID int64, proofRef string) (marketplace.PendingPayment, error)
	Cancel(ctx context.Context, clientID int64) error
	ListTasks(ctx context.Context, engagerID int64) ([]marketplace.TaskOffer, error)
	Claim(ctx context.Context, engagerID int64, orderID string, taskType catalog.TaskType) (marketplace.Claim, error)
	SubmitProof(ctx context.Context, engagerID int64, proofRef string) (marketplace.Adjudication, error)
	Balance(ctx context.Context, engagerID int64) (marketplace.EngagerProfile, error)
	BeginWithdrawal(ctx context.Context, engagerID int64) (int64, error)
	RequestWithdrawal(ctx context.Context, engagerID int64, account string) (marketplace.PendingPayout, error)
	ApprovePayment(ctx context.Context, paymentID string, adminID int64) (marketplace.Order, error)
	RejectPayment(ctx context.Context, paymentID string, adminID int64) error
	ApprovePayout(ctx context.Context, payoutID string, adminID int64) (marketplace.PendingPayout, error)
	RejectPayout(ctx context.Context, payoutID string, adminID int64) error
	Session(clientID int64) (marketplace.ClientSession, bool)
	Profile(engagerID int64) (marketplace.EngagerProfile, bool)
	PendingSummary() marketplace.Summary
	Authorized(actor int64, resource, action string) bool
	Rules() config.Marketplace
	Catalog() *catalog.Catalog
}

// Reply is what the caller sees in response to its own event.
type Reply struct {
	Text    string               `json:"text,omitempty"`
	Buttons []marketplace.Button `json:"buttons,omitempty"`
}

type Router struct {
	engine Engine
}

func NewRouter(engine Engine) *Router {
	return &Router{engine: engine}
}

var (
	roleButtons = []marketplace.Button{
		{Label: "I want engagement", Callback: "role_client"},
		{Label: "I want to earn", Callback: "role_engager"},
	}
	packageButtons = []marketplace.Button{
		{Label: "Followers", Callback: "package_followers"},
		{Label: "Likes", Callback: "package_likes"},
		{Label: "Comments", Callback: "package_comments"},
		{Label: "Bundle", Callback: "package_bundle"},
	}
	engagerButtons = []marketplace.Button{
		{Label: "Tasks", Callback: "tasks"},
		{Label: "Balance", Callback: "balance"},
		{Label: "Withdraw", Callback: "withdraw"},
	}
)

// Handle routes one decoded intent. Approval attempts by anyone but the administrator,
// and approvals of already resolved requests, produce an empty reply.
func (r *Router) Handle(ctx context.Context, in intent.Intent) (Reply, error) {
	reply, err := r.route(ctx, in)
	if errors.Is(err, marketplace.ErrUnauthorized) || errors.Is(err, marketplace.ErrAlreadyResolved) {
		zap.L().Debug("approval dropped", zap.Int64("actor", in.Actor), zap.String("intent", in.Kind.String()), zap.Error(err))
		return Reply{}, nil
	}
	return reply, err
}

func (r *Router) route(ctx context.Context, in intent.Intent) (Reply, error) {
	switch in.Kind {
	case intent.KindStart:
		return Reply{Text: "Welcome! What would you like to do?", Buttons: roleButtons}, nil

	case intent.KindRoleClient:
		if _, err := r.engine.StartClient(ctx, in.Actor); err != nil {
			return Reply{}, err
		}
		return Reply{Text: "Choose a package.", Buttons: packageButtons}, nil

	case intent.KindRoleEngager:
		_, joined, err := r.engine.StartEngager(ctx, in.Actor)
		if err != nil {
			return Reply{}, err
		}
		if !joined {
			return Reply{
				Text:    "Earn by following, liking and commenting. Join to get started.",
				Buttons: []marketplace.Button{{Label: "Join", Callback: "join"}},
			}, nil
		}
		return Reply{Text: "Welcome back.", Buttons: engagerButtons}, nil

	case intent.KindJoin:
		if _, err := r.engine.Join(ctx, in.Actor); err != nil {
			return Reply{}, err
		}
		return Reply{Text: "You're in. Pick a task to start earning.", Buttons: engagerButtons}, nil

	case intent.KindSelectPackage:
		if _, err := r.engine.SelectPackage(ctx, in.Actor, in.OrderType); err != nil {
			return Reply{}, err
		}
		return Reply{Text: r.packagePrompt(in.OrderType)}, nil

	case intent.KindListTasks:
		offers, err := r.engine.ListTasks(ctx, in.Actor)
		if err != nil {
			return Reply{}, err
		}
		return renderOffers(offers), nil

	case intent.KindClaimTask:
		if _, err := r.engine.Claim(ctx, in.Actor, in.OrderID, in.TaskType); err != nil {
			return Reply{}, err
		}
		return r.claimInstructions(in), nil

	case intent.KindBalance:
		p, err := r.engine.Balance(ctx, in.Actor)
		if err != nil {
			return Reply{}, err
		}
		return Reply{Text: fmt.Sprintf("Balance: %d\nCompleted tasks: %d\nTasks today: %d", p.Earnings, p.TotalCompleted, p.DailyTaskCount)}, nil

	case intent.KindWithdraw:
		earnings, err := r.engine.BeginWithdrawal(ctx, in.Actor)
		if err != nil {
			return Reply{}, err
		}
		return Reply{Text: fmt.Sprintf("You can withdraw %d. Send your %d-digit account number.", earnings, r.engine.Rules().AccountDigits)}, nil

	case intent.KindCancel:
		if err := r.engine.Cancel(ctx, in.Actor); err != nil {
			return Reply{}, err
		}
		return Reply{Text: "Order cancelled.", Buttons: packageButtons}, nil

	case intent.KindPending:
		if !r.engine.Authorized(in.Actor, "summary", "read") {
			return Reply{}, marketplace.ErrUnauthorized
		}
		return renderSummary(r.engine.PendingSummary()), nil

	case intent.KindApprovePayment:
		order, err := r.engine.ApprovePayment(ctx, in.RequestID, in.Actor)
		if err != nil {
			return Reply{}, err
		}
		return Reply{Text: fmt.Sprintf("Order %s is live.", order.OrderID)}, nil

	case intent.KindRejectPayment:
		if err := r.engine.RejectPayment(ctx, in.RequestID, in.Actor); err != nil {
			return Reply{}, err
		}
		return Reply{Text: "Payment rejected."}, nil

	case intent.KindApprovePayout:
		p, err := r.engine.ApprovePayout(ctx, in.RequestID, in.Actor)
		if err != nil {
			return Reply{}, err
		}
		return Reply{Text: fmt.Sprintf("Payout of %d to %s approved.", p.Amount, p.DestinationAccount)}, nil

	case intent.KindRejectPayout:
		if err := r.engine.RejectPayout(ctx, in.RequestID, in.Actor); err != nil {
			return Reply{}, err
		}
		return Reply{Text: "Payout rejected."}, nil

	case intent.KindText:
		return r.handleText(ctx, in)

	case intent.KindPhoto:
		return r.handlePhoto(ctx, in)

	default:
		return Reply{}, fmt.Errorf("%w: %s", intent.ErrUnknownIntent, in.Kind)
	}
}

// handleText routes free text by what the actor was last asked for.
// An account number goes to a pending withdrawal even while the same actor has a client draft open.
func (r *Router) handleText(ctx context.Context, in intent.Intent) (Reply, error) {
	profile, ok := r.engine.Profile(in.Actor)
	awaiting := ok && profile.AwaitingPayout

	account := strings.TrimSpace(in.Text)
	if awaiting && marketplace.ValidAccount(account, r.engine.Rules().AccountDigits) {
		return r.requestWithdrawal(ctx, in.Actor, account)
	}

	if sess, ok := r.engine.Session(in.Actor); ok {
		switch sess.Step {
		case marketplace.StepAwaitingOrderDetails:
			sess, err := r.engine.SubmitOrderDetails(ctx, in.Actor, in.Text)
			if err != nil {
				return Reply{}, err
			}
			if sess.Step == marketplace.StepAwaitingURLs {
				return Reply{Text: urlPrompt(sess.OrderType)}, nil
			}
			return paymentPrompt(sess), nil
		case marketplace.StepAwaitingURLs:
			sess, err := r.engine.SubmitURLs(ctx, in.Actor, in.Text)
			if err != nil {
				return Reply{}, err
			}
			return paymentPrompt(sess), nil
		}
	}

	if awaiting {
		return r.requestWithdrawal(ctx, in.Actor, in.Text)
	}

	return Reply{Text: "Use /start to open the menu.", Buttons: roleButtons}, nil
}

func (r *Router) requestWithdrawal(ctx context.Context, actor int64, account string) (Reply, error) {
	payout, err := r.engine.RequestWithdrawal(ctx, actor, account)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Text: fmt.Sprintf("Withdrawal of %d requested. You'll be notified once it's reviewed.", payout.Amount)}, nil
}

// handlePhoto treats a screenshot as payment proof while a draft awaits payment, otherwise as task proof.
func (r *Router) handlePhoto(ctx context.Context, in intent.Intent) (Reply, error) {
	if sess, ok := r.engine.Session(in.Actor); ok && sess.AwaitingPaymentProof() {
		if _, err := r.engine.SubmitPayment(ctx, in.Actor, in.ProofRef); err != nil {
			return Reply{}, err
		}
		return Reply{Text: "Payment received. We'll notify you once it's confirmed."}, nil
	}

	a, err := r.engine.SubmitProof(ctx, in.Actor, in.ProofRef)
	if err != nil {
		return Reply{}, err
	}
	if a.Accepted() {
		return Reply{Text: fmt.Sprintf("Task approved! +%d. Balance: %d", a.Credited, a.Earnings), Buttons: engagerButtons}, nil
	}

	switch a.Reason {
	case marketplace.ReasonDwellTime:
		wait := r.engine.Rules().DwellTime - a.Elapsed
		return Reply{Text: fmt.Sprintf("Too fast. Keep the %s for at least %s more, then send the screenshot again.", a.TaskType, wait.Round(time.Second))}, nil
	case marketplace.ReasonDailyCap:
		return Reply{Text: "You've reached today's task limit. Come back later."}, nil
	default:
		return Reply{Text: "This task is no longer available.", Buttons: engagerButtons}, nil
	}
}

func (r *Router) packagePrompt(t catalog.OrderType) string {
	if t == catalog.Bundle {
		return fmt.Sprintf("Send: @handle platform tier\nTiers: %s",
			strings.Join(r.engine.Catalog().Packages(t, catalog.Instagram), ", "))
	}
	return "Send: @handle platform quantity\nExample: @shop instagram 10"
}

func urlPrompt(t catalog.OrderType) string {
	if t == catalog.Bundle {
		return fmt.Sprintf("Send %q to use your latest 3 posts, one link for likes and comments, or two links (likes then comments).", marketplace.RecentPostsToken)
	}
	return "Send the link of the post."
}

func paymentPrompt(sess marketplace.ClientSession) Reply {
	return Reply{
		Text:    fmt.Sprintf("Order %s\nTotal: %d\nSend the payment screenshot to continue.", sess.OrderID, sess.Amount),
		Buttons: []marketplace.Button{{Label: "Cancel", Callback: "cancel"}},
	}
}

func (r *Router) claimInstructions(in intent.Intent) Reply {
	text := fmt.Sprintf("Task started: %s on order %s. Send a screenshot when done.", in.TaskType, in.OrderID)
	if in.TaskType.NeedsDwell() {
		text += fmt.Sprintf(" Screenshots sent before %s are rejected.", r.engine.Rules().DwellTime)
	}
	return Reply{Text: text}
}

func renderOffers(offers []marketplace.TaskOffer) Reply {
	if len(offers) == 0 {
		return Reply{Text: "No tasks available right now."}
	}
	reply := Reply{Text: fmt.Sprintf("%d tasks available:", len(offers))}
	for _, o := range offers {
		reply.Buttons = append(reply.Buttons, marketplace.Button{
			Label:    fmt.Sprintf("%s %s (+%d)", o.TaskType, o.Target, o.Reward),
			Callback: o.Callback(),
		})
	}
	return reply
}

func renderSummary(s marketplace.Summary) Reply {
	if s.Empty() {
		return Reply{Text: "Nothing pending."}
	}
	reply := Reply{Text: fmt.Sprintf("%d payments and %d payouts pending.", len(s.Payments), len(s.Payouts))}
	for _, p := range s.Payments {
		reply.Buttons = append(reply.Buttons,
			marketplace.Button{Label: fmt.Sprintf("Approve payment %s (%d)", p.PaymentID, p.OrderDetails.Price), Callback: "approve_payment_" + p.PaymentID},
		)
	}
	for _, p := range s.Payouts {
		reply.Buttons = append(reply.Buttons,
			marketplace.Button{Label: fmt.Sprintf("Approve payout %s (%d)", p.PayoutID, p.Amount), Callback: "approve_payout_" + p.PayoutID},
		)
	}
	return reply
}
