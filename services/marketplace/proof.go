package marketplace

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// SubmitProof adjudicates the engager's oldest claim that still points at a live order.
// A rejection is a normal outcome, not an error; only a missing claim is an error.
func (s *Service) SubmitProof(ctx context.Context, engagerID int64, proofRef string) (Adjudication, error) {
	var out Adjudication
	err := s.update(ctx, "submit_proof", engagerID, gateAdmit, func(tx *txn) error {
		p, err := tx.engager(engagerID)
		if err != nil {
			return err
		}
		if strings.TrimSpace(proofRef) == "" {
			return validationError("send the proof screenshot")
		}

		idx := -1
		for i, c := range p.TaskTimers {
			if _, ok := tx.state.Order(c.OrderID); ok {
				idx = i
				break
			}
		}
		if idx < 0 {
			return errNoActiveClaim()
		}

		claim := p.TaskTimers[idx]
		order, _ := tx.state.Order(claim.OrderID)

		if p.rollWindow(tx.now, s.rules.DailyWindow) {
			tx.changed()
		}

		a := Adjudication{
			EngagerID: engagerID,
			OrderID:   claim.OrderID,
			TaskType:  claim.TaskType,
			Elapsed:   tx.now.Sub(claim.ClaimedAt),
			ProofRef:  proofRef,
			At:        tx.now,
		}

		switch {
		case claim.TaskType.NeedsDwell() && a.Elapsed < s.rules.DwellTime:
			a.reject(ReasonDwellTime)
		case order.Remaining(claim.TaskType) <= 0:
			a.reject(ReasonUnitExhausted)
			p.dropClaim(claim.OrderID, claim.TaskType)
			tx.changed()
		case p.TasksPerOrder[claim.OrderID] >= s.rules.OrderTaskCap:
			a.reject(ReasonOrderCap)
			p.dropClaim(claim.OrderID, claim.TaskType)
			tx.changed()
		case p.DailyTaskCount >= s.rules.DailyTaskCap:
			a.reject(ReasonDailyCap)
		default:
			reward, err := s.catalog.Reward(order.Platform, claim.TaskType)
			if err != nil {
				return catalogError("no reward configured for this task", err)
			}

			order.decrement(claim.TaskType)
			p.Earnings += reward
			p.DailyTaskCount++
			p.TasksPerOrder[claim.OrderID]++
			p.TotalCompleted++
			p.dropClaim(claim.OrderID, claim.TaskType)

			a.Outcome = OutcomeAccepted
			a.Credited = reward

			if !order.Active() {
				tx.state.removeOrder(order.OrderID)
				a.OrderCompleted = true
				tx.send(Message{To: order.ClientID, Text: fmt.Sprintf("Order %s is complete. Thank you!", order.OrderID)})
			}
			tx.changed()
		}
		a.Earnings = p.Earnings

		tx.send(Message{To: s.rules.AdminID, Text: auditText(a), PhotoRef: proofRef})
		tx.audits = append(tx.audits, a)

		tx.onCommit(func() {
			proofsTotal.WithLabelValues(string(a.Outcome), string(a.Reason)).Inc()
			if a.Accepted() {
				creditedTotal.Add(float64(a.Credited))
			}
			if a.OrderCompleted {
				ordersCompleted.Inc()
			}
		})

		zap.L().Info("proof adjudicated",
			zap.Int64("engager_id", engagerID),
			zap.String("order_id", a.OrderID),
			zap.String("task_type", string(a.TaskType)),
			zap.String("outcome", string(a.Outcome)),
			zap.String("reason", string(a.Reason)),
			zap.Duration("elapsed", a.Elapsed),
		)

		out = a
		return nil
	})
	return out, err
}

func (a *Adjudication) reject(reason RejectReason) {
	a.Outcome = OutcomeRejected
	a.Reason = reason
}

func auditText(a Adjudication) string {
	status := "ACCEPTED"
	if !a.Accepted() {
		status = "REJECTED (" + string(a.Reason) + ")"
	}
	return fmt.Sprintf("Proof %s\nEngager: %d\nTask: %s\nOrder: %s\nElapsed: %s",
		status, a.EngagerID, a.TaskType, a.OrderID, a.Elapsed.Round(time.Second))
}
