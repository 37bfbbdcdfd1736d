package marketplace

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"engagement-controlplane/pkg/config"
	"engagement-controlplane/pkg/errutil"
	"engagement-controlplane/pkg/snapshot"
	"engagement-controlplane/services/catalog"
	"engagement-controlplane/services/ratelimit"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Notifier delivers the messages produced by a committed operation.
type Notifier interface {
	Notify(ctx context.Context, msgs []Message) error
}

// Auditor keeps the trail of proof adjudications.
type Auditor interface {
	Record(ctx context.Context, a Adjudication) error
}

// Authorizer decides whether actor may perform action on resource ("payment" or "payout").
type Authorizer interface {
	Authorize(actor int64, resource, action string) bool
}

type adminOnly int64

func (a adminOnly) Authorize(actor int64, _, _ string) bool {
	return actor != 0 && actor == int64(a)
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, []Message) error { return nil }

type nopAuditor struct{}

func (nopAuditor) Record(context.Context, Adjudication) error { return nil }

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

func WithAuditor(a Auditor) Option {
	return func(s *Service) {
		if a != nil {
			s.auditor = a
		}
	}
}

func WithAuthorizer(a Authorizer) Option {
	return func(s *Service) {
		if a != nil {
			s.authorizer = a
		}
	}
}

func WithNode(node *snowflake.Node) Option {
	return func(s *Service) { s.node = node }
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) {
		if tp != nil {
			s.tracer = tp.Tracer("engagement-controlplane/services/marketplace")
		}
	}
}

// Service is the order and task lifecycle engine. Every operation runs under one lock that covers
// the whole State and the rate limiter; mutations are applied to a clone which replaces the live
// state only after the snapshot has been saved.
type Service struct {
	mu      sync.Mutex
	state   *State
	limiter *ratelimit.Limiter

	catalog *catalog.Catalog
	store   snapshot.Store
	rules   config.Marketplace

	now        func() time.Time
	notifier   Notifier
	auditor    Auditor
	authorizer Authorizer
	node       *snowflake.Node
	tracer     trace.Tracer
}

// New loads the last snapshot from store, or starts from an empty state when none exists.
func New(ctx context.Context, store snapshot.Store, cat *catalog.Catalog, rules config.Marketplace, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("marketplace: snapshot store is required")
	}
	if cat == nil {
		cat = catalog.Default()
	}
	if rules.AdminID == 0 {
		return nil, config.ErrMissingAdmin
	}

	s := &Service{
		limiter:    ratelimit.New(rules.Cooldown),
		catalog:    cat,
		store:      store,
		rules:      rules,
		now:        time.Now,
		notifier:   nopNotifier{},
		auditor:    nopAuditor{},
		authorizer: adminOnly(rules.AdminID),
		tracer:     otel.Tracer("engagement-controlplane/services/marketplace"),
	}
	for _, opt := range opts {
		opt(s)
	}

	raw, err := store.Load(ctx)
	switch {
	case errors.Is(err, snapshot.ErrNotFound):
		zap.L().Info("[Marketplace] no snapshot found, starting empty")
		s.state = NewState()
	case err != nil:
		return nil, fmt.Errorf("load snapshot: %w", err)
	default:
		st, err := DecodeState(raw)
		if err != nil {
			return nil, err
		}
		s.state = st
		zap.L().Info("[Marketplace] snapshot loaded",
			zap.Int("orders", len(st.Orders)),
			zap.Int("engagers", len(st.Engagers)),
			zap.Int("pending_payments", len(st.PendingPayments)),
			zap.Int("pending_payouts", len(st.PendingPayouts)),
		)
	}

	return s, nil
}

type ServiceParams struct {
	fx.In
	Config     *config.Config
	Store      snapshot.Store
	Catalog    *catalog.Catalog
	Node       *snowflake.Node      `optional:"true"`
	Tracer     trace.TracerProvider `optional:"true"`
	Notifier   Notifier             `optional:"true"`
	Auditor    Auditor              `optional:"true"`
	Authorizer Authorizer           `optional:"true"`
}

func NewService(p ServiceParams) (*Service, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return New(ctx, p.Store, p.Catalog, p.Config.Marketplace,
		WithNode(p.Node),
		WithTracerProvider(p.Tracer),
		WithNotifier(p.Notifier),
		WithAuditor(p.Auditor),
		WithAuthorizer(p.Authorizer),
	)
}

var Module = fx.Module("marketplace.service",
	fx.Provide(NewService),
)

// Rules returns the tunables the engine runs with.
func (s *Service) Rules() config.Marketplace {
	return s.rules
}

func (s *Service) Catalog() *catalog.Catalog {
	return s.catalog
}

type gate int

const (
	// gateAdmit applies the cooldown.
	gateAdmit gate = iota
	// gateTouch refreshes the cooldown without checking it.
	gateTouch
	gateNone
)

// txn is one operation in flight. state is a private clone until commit.
type txn struct {
	state  *State
	now    time.Time
	dirty  bool
	outbox []Message
	audits []Adjudication
	hooks  []func()
}

func (tx *txn) changed() { tx.dirty = true }

func (tx *txn) send(msgs ...Message) { tx.outbox = append(tx.outbox, msgs...) }

// onCommit defers fn until the state it describes has been saved.
func (tx *txn) onCommit(fn func()) { tx.hooks = append(tx.hooks, fn) }

func (s *Service) logger(ctx context.Context) *zap.Logger {
	sc := trace.SpanFromContext(ctx).SpanContext()
	return zap.L().With(
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	)
}

// update runs fn against a clone of the state and commits it when fn marked it dirty.
// Messages and audits are handed off only after the lock is released.
func (s *Service) update(ctx context.Context, op string, actor int64, g gate, fn func(tx *txn) error) error {
	ctx, span := s.tracer.Start(ctx, "marketplace."+op)
	defer span.End()

	tx, err := s.apply(ctx, op, actor, g, fn)
	if err != nil {
		return err
	}

	s.flush(ctx, tx)
	return nil
}

func (s *Service) apply(ctx context.Context, op string, actor int64, g gate, fn func(tx *txn) error) (*txn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.logger(ctx).With(zap.String("op", op), zap.Int64("actor", actor))
	now := s.now()

	switch g {
	case gateAdmit:
		if err := s.limiter.Admit(actor, now); err != nil {
			log.Debug("rate limited", zap.Error(err))
			return nil, errutil.TooManyRequest(err.Error(), err)
		}
	case gateTouch:
		s.limiter.Touch(actor, now)
	}

	tx := &txn{state: s.state.Clone(), now: now}
	if err := fn(tx); err != nil {
		return nil, err
	}

	if !tx.dirty {
		return tx, nil
	}

	raw, err := tx.state.Encode()
	if err != nil {
		log.Error("failed to encode snapshot", zap.Error(err))
		return nil, persistenceFailure(err)
	}

	if err := s.store.Save(context.WithoutCancel(ctx), raw); err != nil {
		persistFailures.Inc()
		log.Error("failed to save snapshot", zap.Error(err))
		return nil, persistenceFailure(err)
	}

	s.state = tx.state
	return tx, nil
}

// view runs a read-only fn against the live state.
func (s *Service) view(fn func(st *State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.state)
}

func (s *Service) flush(ctx context.Context, tx *txn) {
	ctx = context.WithoutCancel(ctx)
	log := s.logger(ctx)

	for _, fn := range tx.hooks {
		fn()
	}

	if len(tx.outbox) > 0 {
		if err := s.notifier.Notify(ctx, tx.outbox); err != nil {
			log.Error("failed to dispatch notifications", zap.Int("messages", len(tx.outbox)), zap.Error(err))
		}
	}

	for _, a := range tx.audits {
		if err := s.auditor.Record(ctx, a); err != nil {
			log.Error("failed to record audit",
				zap.Int64("engager_id", a.EngagerID),
				zap.String("order_id", a.OrderID),
				zap.Error(err),
			)
		}
	}
}

// authorize reports whether actor may act as administrator. Refusals are logged and dropped by callers.
func (s *Service) authorize(ctx context.Context, actor int64, resource, action string) error {
	if s.authorizer.Authorize(actor, resource, action) {
		return nil
	}
	s.logger(ctx).Warn("unauthorized approval attempt",
		zap.Int64("actor", actor),
		zap.String("resource", resource),
		zap.String("action", action),
	)
	return unauthorized()
}

// engager returns the joined profile of id.
func (tx *txn) engager(id int64) (*EngagerProfile, error) {
	p, ok := tx.state.Engager(id)
	if !ok || !p.Joined {
		return nil, notJoined()
	}
	if p.TasksPerOrder == nil {
		p.TasksPerOrder = make(map[string]int)
	}
	return p, nil
}

// session returns the draft of clientID, creating an idle one on first contact.
func (tx *txn) session(clientID int64) *ClientSession {
	sess, ok := tx.state.Session(clientID)
	if !ok {
		sess = &ClientSession{ClientID: clientID, Step: StepSelectingPackage, UpdatedAt: tx.now}
		tx.state.Sessions[clientID] = sess
		tx.changed()
	}
	return sess
}

// ForgetIdle drops rate limiter entries that can no longer block anyone.
func (s *Service) ForgetIdle() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.limiter.Forget(s.now())
}

func (s *Service) payoutID(engagerID int64, now time.Time) string {
	if s.node != nil {
		return s.node.Generate().String()
	}
	return fmt.Sprintf("%d_%d", engagerID, now.UnixNano())
}
