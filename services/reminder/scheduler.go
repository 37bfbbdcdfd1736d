package reminder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"engagement-controlplane/pkg/config"
	"engagement-controlplane/services/marketplace"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("reminder",
	fx.Provide(
		func(svc *marketplace.Service) Source { return svc },
		NewScheduler,
	),
	fx.Invoke(StartScheduler),
)

// Source is the engine view the reminder needs.
type Source interface {
	PendingSummary() marketplace.Summary
	ForgetIdle() int
}

// Scheduler periodically nudges the administrator about requests waiting for review.
type Scheduler struct {
	source   Source
	notifier marketplace.Notifier
	adminID  int64
	interval time.Duration
}

type SchedulerParams struct {
	fx.In
	Config   *config.Config
	Source   Source
	Notifier marketplace.Notifier
}

func NewScheduler(p SchedulerParams) *Scheduler {
	return &Scheduler{
		source:   p.Source,
		notifier: p.Notifier,
		adminID:  p.Config.Marketplace.AdminID,
		interval: p.Config.Marketplace.ReminderInterval,
	}
}

func StartScheduler(lc fx.Lifecycle, s *Scheduler) {
	if s.interval <= 0 {
		zap.L().Info("[Reminder] disabled")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				s.run(ctx)
			}()
			return nil
		},
		OnStop: func(stop context.Context) error {
			cancel()
			select {
			case <-done:
			case <-stop.Done():
			}
			return nil
		},
	})
}

func (s *Scheduler) run(ctx context.Context) {
	zap.L().Info("[Reminder] started", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				zap.L().Error("[Reminder] failed to send reminder", zap.Error(err))
			}
		case <-ctx.Done():
			zap.L().Info("[Reminder] stopped")
			return
		}
	}
}

// RunOnce sends one reminder when either approval queue is non-empty.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if n := s.source.ForgetIdle(); n > 0 {
		zap.L().Debug("[Reminder] forgot idle actors", zap.Int("count", n))
	}

	summary := s.source.PendingSummary()
	if summary.Empty() {
		return nil
	}

	zap.L().Info("[Reminder] pending requests",
		zap.Int("payments", len(summary.Payments)),
		zap.Int("payouts", len(summary.Payouts)),
	)
	return s.notifier.Notify(ctx, []marketplace.Message{{
		To:   s.adminID,
		Text: reminderText(summary),
	}})
}

func reminderText(s marketplace.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Waiting for review: %d payments, %d payouts", len(s.Payments), len(s.Payouts))
	for _, p := range s.Payments {
		fmt.Fprintf(&b, "\npayment %s: order %s, %d", p.PaymentID, p.OrderID, p.OrderDetails.Price)
	}
	for _, p := range s.Payouts {
		fmt.Fprintf(&b, "\npayout %s: engager %d, %d", p.PayoutID, p.EngagerID, p.Amount)
	}
	b.WriteString("\nSend /pending to review.")
	return b.String()
}
