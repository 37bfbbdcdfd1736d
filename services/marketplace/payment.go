package marketplace

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

const resourcePayment = "payment"

// SubmitPayment queues the client's complete draft for administrator review.
func (s *Service) SubmitPayment(ctx context.Context, clientID int64, proofRef string) (PendingPayment, error) {
	var out PendingPayment
	err := s.update(ctx, "submit_payment", clientID, gateAdmit, func(tx *txn) error {
		sess := tx.session(clientID)
		if sess.Step != StepAwaitingPayment || !sess.OrderDetails.complete() {
			return invalidState("there is no order waiting for payment")
		}
		if strings.TrimSpace(proofRef) == "" {
			return validationError("send the payment screenshot")
		}
		if sess.paymentUnderReview(tx.state) {
			return paymentPending()
		}

		id := fmt.Sprintf("%d_%d", clientID, tx.now.Unix())
		for n := 1; ; n++ {
			if _, taken := tx.state.PendingPayments[id]; !taken {
				break
			}
			id = fmt.Sprintf("%d_%d_%d", clientID, tx.now.Unix(), n)
		}

		p := &PendingPayment{
			PaymentID:    id,
			ClientID:     clientID,
			OrderID:      sess.OrderID,
			OrderDetails: *sess.OrderDetails,
			ProofRef:     proofRef,
			SubmittedAt:  tx.now,
		}
		tx.state.PendingPayments[id] = p
		sess.PaymentID = id
		sess.UpdatedAt = tx.now
		tx.changed()

		tx.send(Message{
			To:       s.rules.AdminID,
			Text:     paymentReviewText(p),
			PhotoRef: proofRef,
			Buttons: []Button{
				{Label: "Approve", Callback: "approve_payment_" + id},
				{Label: "Reject", Callback: "reject_payment_" + id},
			},
		})

		zap.L().Info("payment submitted",
			zap.Int64("client_id", clientID),
			zap.String("payment_id", id),
			zap.String("order_id", p.OrderID),
			zap.Int64("amount", p.OrderDetails.Price),
		)

		out = *p
		return nil
	})
	return out, err
}

// ApprovePayment turns the escrowed draft into a live order.
// A payment that was already resolved yields ErrAlreadyResolved and changes nothing.
func (s *Service) ApprovePayment(ctx context.Context, paymentID string, adminID int64) (Order, error) {
	var out Order
	err := s.update(ctx, "approve_payment", adminID, gateNone, func(tx *txn) error {
		if err := s.authorize(ctx, adminID, resourcePayment, "approve"); err != nil {
			return err
		}

		p, ok := tx.state.PendingPayments[paymentID]
		if !ok {
			return alreadyResolved()
		}

		order := p.OrderDetails
		if _, live := tx.state.Order(order.OrderID); live {
			return invalidState(fmt.Sprintf("order %s is already live", order.OrderID))
		}
		if !order.Active() {
			return invalidState(fmt.Sprintf("order %s has no units", order.OrderID))
		}

		tx.state.Orders = append(tx.state.Orders, &order)
		delete(tx.state.PendingPayments, paymentID)
		if sess, ok := tx.state.Session(p.ClientID); ok && sess.PaymentID == paymentID {
			tx.state.Sessions[p.ClientID] = &ClientSession{
				ClientID:  p.ClientID,
				Step:      StepCompleted,
				OrderID:   order.OrderID,
				UpdatedAt: tx.now,
			}
		}
		tx.changed()

		tx.send(
			Message{To: p.ClientID, Text: fmt.Sprintf("Payment approved. Order %s is now live.", order.OrderID)},
			Message{To: s.rules.AdminID, Text: fmt.Sprintf("Payment %s approved, order %s is live.", paymentID, order.OrderID)},
		)
		tx.onCommit(paymentsTotal.WithLabelValues("approved").Inc)

		zap.L().Info("payment approved",
			zap.String("payment_id", paymentID),
			zap.String("order_id", order.OrderID),
			zap.Int64("client_id", p.ClientID),
		)

		out = order
		return nil
	})
	return out, err
}

// RejectPayment discards the escrowed draft together with the client's session.
func (s *Service) RejectPayment(ctx context.Context, paymentID string, adminID int64) error {
	return s.update(ctx, "reject_payment", adminID, gateNone, func(tx *txn) error {
		if err := s.authorize(ctx, adminID, resourcePayment, "reject"); err != nil {
			return err
		}

		p, ok := tx.state.PendingPayments[paymentID]
		if !ok {
			return alreadyResolved()
		}

		delete(tx.state.PendingPayments, paymentID)
		if sess, ok := tx.state.Session(p.ClientID); ok && sess.PaymentID == paymentID {
			delete(tx.state.Sessions, p.ClientID)
		}
		tx.changed()

		tx.send(
			Message{To: p.ClientID, Text: fmt.Sprintf("Payment for order %s was rejected. Start a new order to try again.", p.OrderID)},
			Message{To: s.rules.AdminID, Text: fmt.Sprintf("Payment %s rejected.", paymentID)},
		)
		tx.onCommit(paymentsTotal.WithLabelValues("rejected").Inc)

		zap.L().Info("payment rejected",
			zap.String("payment_id", paymentID),
			zap.String("order_id", p.OrderID),
			zap.Int64("client_id", p.ClientID),
		)
		return nil
	})
}

func paymentReviewText(p *PendingPayment) string {
	o := p.OrderDetails
	var b strings.Builder
	fmt.Fprintf(&b, "Payment %s from client %d\n", p.PaymentID, p.ClientID)
	fmt.Fprintf(&b, "Order %s: %s %s on %s (%s)\n", o.OrderID, o.OrderType, o.Package, o.Platform, o.Handle)
	fmt.Fprintf(&b, "Follows %d, likes %d, comments %d\n", o.FollowsLeft, o.LikesLeft, o.CommentsLeft)
	fmt.Fprintf(&b, "Amount %d", o.Price)
	return b.String()
}
