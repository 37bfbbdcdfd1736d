package marketplace

import (
	"context"

	"engagement-controlplane/services/catalog"

	"go.uber.org/zap"
)

var taskTypes = []catalog.TaskType{catalog.Follow, catalog.Like, catalog.Comment}

// ListTasks returns the task units the engager may take, in the order the orders went live.
// Units on orders where the engager hit the per-order cap are hidden; nothing is listed once the daily cap is hit.
func (s *Service) ListTasks(ctx context.Context, engagerID int64) ([]TaskOffer, error) {
	var out []TaskOffer
	err := s.update(ctx, "list_tasks", engagerID, gateAdmit, func(tx *txn) error {
		p, err := tx.engager(engagerID)
		if err != nil {
			return err
		}

		if p.rollWindow(tx.now, s.rules.DailyWindow) {
			tx.changed()
		}
		if pruneStale(tx.state, p) {
			tx.changed()
		}

		if p.DailyTaskCount >= s.rules.DailyTaskCap {
			return nil
		}

		for _, o := range tx.state.Orders {
			if p.TasksPerOrder[o.OrderID] >= s.rules.OrderTaskCap {
				continue
			}
			for _, t := range taskTypes {
				left := o.Remaining(t)
				if left <= 0 {
					continue
				}
				reward, err := s.catalog.Reward(o.Platform, t)
				if err != nil {
					zap.L().Warn("no reward configured", zap.String("order_id", o.OrderID), zap.String("task_type", string(t)), zap.Error(err))
					continue
				}
				out = append(out, TaskOffer{
					OrderID:   o.OrderID,
					Handle:    o.Handle,
					Platform:  o.Platform,
					TaskType:  t,
					Target:    o.Target(t),
					Remaining: left,
					Reward:    reward,
				})
			}
		}
		return nil
	})
	return out, err
}

// Claim starts the dwell clock for one task unit. Claiming again resets the clock; it reserves nothing.
func (s *Service) Claim(ctx context.Context, engagerID int64, orderID string, taskType catalog.TaskType) (Claim, error) {
	var out Claim
	err := s.update(ctx, "claim", engagerID, gateAdmit, func(tx *txn) error {
		p, err := tx.engager(engagerID)
		if err != nil {
			return err
		}
		if taskType.Code() == "" {
			return validationError("unknown task type")
		}

		o, ok := tx.state.Order(orderID)
		if !ok || o.Remaining(taskType) <= 0 {
			return orderNotFound()
		}

		out = p.upsertClaim(orderID, taskType, tx.now)
		tx.changed()

		zap.L().Info("task claimed",
			zap.Int64("engager_id", engagerID),
			zap.String("order_id", orderID),
			zap.String("task_type", string(taskType)),
		)
		return nil
	})
	return out, err
}

// pruneStale drops claims and per-order counters that point at orders no longer in the marketplace.
func pruneStale(st *State, p *EngagerProfile) bool {
	changed := false
	kept := p.TaskTimers[:0]
	for _, c := range p.TaskTimers {
		if _, ok := st.Order(c.OrderID); ok {
			kept = append(kept, c)
			continue
		}
		changed = true
	}
	p.TaskTimers = kept

	for id := range p.TasksPerOrder {
		if _, ok := st.Order(id); !ok {
			delete(p.TasksPerOrder, id)
			changed = true
		}
	}
	return changed
}
