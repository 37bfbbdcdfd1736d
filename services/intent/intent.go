package intent

import (
	"errors"
	"fmt"
	"strings"

	"engagement-controlplane/services/catalog"
)

var ErrUnknownIntent = errors.New("intent: unknown event")

type EventKind string

const (
	EventCommand  EventKind = "command"
	EventCallback EventKind = "callback"
	EventText     EventKind = "text"
	EventPhoto    EventKind = "photo"
)

// Event is an inbound chat event as delivered by the transport.
type Event struct {
	Actor    int64     `json:"actor" binding:"required"`
	Kind     EventKind `json:"kind" binding:"required"`
	Command  string    `json:"command,omitempty"`
	Data     string    `json:"data,omitempty"`
	Text     string    `json:"text,omitempty"`
	ProofRef string    `json:"proof_ref,omitempty"`
}

type Kind int

const (
	KindUnknown Kind = iota
	KindStart
	KindRoleClient
	KindRoleEngager
	KindJoin
	KindSelectPackage
	KindListTasks
	KindClaimTask
	KindBalance
	KindWithdraw
	KindCancel
	KindPending
	KindApprovePayment
	KindRejectPayment
	KindApprovePayout
	KindRejectPayout
	KindText
	KindPhoto
)

var kindNames = map[Kind]string{
	KindStart:          "start",
	KindRoleClient:     "role_client",
	KindRoleEngager:    "role_engager",
	KindJoin:           "join",
	KindSelectPackage:  "select_package",
	KindListTasks:      "list_tasks",
	KindClaimTask:      "claim_task",
	KindBalance:        "balance",
	KindWithdraw:       "withdraw",
	KindCancel:         "cancel",
	KindPending:        "pending",
	KindApprovePayment: "approve_payment",
	KindRejectPayment:  "reject_payment",
	KindApprovePayout:  "approve_payout",
	KindRejectPayout:   "reject_payout",
	KindText:           "text",
	KindPhoto:          "photo",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Intent is a decoded event. Only the fields of its Kind are set.
type Intent struct {
	Kind      Kind
	Actor     int64
	OrderType catalog.OrderType
	OrderID   string
	TaskType  catalog.TaskType
	RequestID string
	Text      string
	ProofRef  string
}

var commands = map[string]Kind{
	"start":    KindStart,
	"menu":     KindStart,
	"client":   KindRoleClient,
	"engager":  KindRoleEngager,
	"join":     KindJoin,
	"tasks":    KindListTasks,
	"balance":  KindBalance,
	"withdraw": KindWithdraw,
	"cancel":   KindCancel,
	"pending":  KindPending,
}

// callbacks maps tags without payload. Tags with payload are matched by prefix in decodeCallback.
var callbacks = map[string]Kind{
	"role_client":  KindRoleClient,
	"role_engager": KindRoleEngager,
	"join":         KindJoin,
	"tasks":        KindListTasks,
	"balance":      KindBalance,
	"withdraw":     KindWithdraw,
	"cancel":       KindCancel,
	"menu":         KindStart,
}

var requestPrefixes = []struct {
	prefix string
	kind   Kind
}{
	{"approve_payment_", KindApprovePayment},
	{"reject_payment_", KindRejectPayment},
	{"approve_payout_", KindApprovePayout},
	{"reject_payout_", KindRejectPayout},
}

// Decode turns an event into an intent.
func Decode(e Event) (Intent, error) {
	in := Intent{Actor: e.Actor}
	if e.Actor == 0 {
		return in, fmt.Errorf("%w: missing actor", ErrUnknownIntent)
	}

	switch e.Kind {
	case EventCommand:
		name := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(e.Command), "/"))
		kind, ok := commands[name]
		if !ok {
			return in, fmt.Errorf("%w: command %q", ErrUnknownIntent, e.Command)
		}
		in.Kind = kind
		return in, nil
	case EventCallback:
		return decodeCallback(in, strings.TrimSpace(e.Data))
	case EventText:
		in.Kind = KindText
		in.Text = strings.TrimSpace(e.Text)
		return in, nil
	case EventPhoto:
		if e.ProofRef == "" {
			return in, fmt.Errorf("%w: photo without proof reference", ErrUnknownIntent)
		}
		in.Kind = KindPhoto
		in.ProofRef = e.ProofRef
		return in, nil
	default:
		return in, fmt.Errorf("%w: kind %q", ErrUnknownIntent, e.Kind)
	}
}

func decodeCallback(in Intent, data string) (Intent, error) {
	if kind, ok := callbacks[data]; ok {
		in.Kind = kind
		return in, nil
	}

	for _, p := range requestPrefixes {
		if id, ok := strings.CutPrefix(data, p.prefix); ok && id != "" {
			in.Kind = p.kind
			in.RequestID = id
			return in, nil
		}
	}

	if rest, ok := strings.CutPrefix(data, "package_"); ok {
		t, err := catalog.ParseOrderType(rest)
		if err != nil {
			return in, fmt.Errorf("%w: %s", ErrUnknownIntent, data)
		}
		in.Kind = KindSelectPackage
		in.OrderType = t
		return in, nil
	}

	if rest, ok := strings.CutPrefix(data, "task_"); ok {
		code, orderID, found := strings.Cut(rest, "_")
		if !found || orderID == "" {
			return in, fmt.Errorf("%w: %s", ErrUnknownIntent, data)
		}
		t, err := catalog.ParseTaskType(code)
		if err != nil {
			return in, fmt.Errorf("%w: %s", ErrUnknownIntent, data)
		}
		in.Kind = KindClaimTask
		in.TaskType = t
		in.OrderID = orderID
		return in, nil
	}

	return in, fmt.Errorf("%w: callback %q", ErrUnknownIntent, data)
}
